package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds connection details for an OpenAI-compatible endpoint,
// shared by the embedder and reasoner clients.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OllamaConfig holds connection details for a local Ollama server.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Type   string        `yaml:"type"` // tfidf, openai, ollama
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// ReasonerConfig selects and configures the reasoning provider.
// Type "rules" disables the semantic paths entirely; the structurer and
// evaluator then always use their deterministic fallbacks.
type ReasonerConfig struct {
	Type   string        `yaml:"type"` // rules, openai, ollama
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama *OllamaConfig `yaml:"ollama,omitempty"`
}

// SegmenterConfig configures how document text is split into clauses.
type SegmenterConfig struct {
	WindowWords  int `yaml:"window_words"`
	OverlapWords int `yaml:"overlap_words"`
	MaxChars     int `yaml:"max_chars"`
}

// QdrantConfig contains connection details for a Qdrant index backend.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SQLiteConfig contains the database path for the sqlite index backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// IndexConfig selects and configures the clause index backend.
type IndexConfig struct {
	Type   string        `yaml:"type"` // memory, sqlite, qdrant
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// RetrieverConfig configures similarity retrieval.
type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

// PipelineConfig configures the request orchestrator.
type PipelineConfig struct {
	BudgetSecs         int `yaml:"budget_secs"`
	MaxCachedDocuments int `yaml:"max_cached_documents"` // 0 = unbounded
	BatchConcurrency   int `yaml:"batch_concurrency"`
}

// SummarizerConfig configures the ingest summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Reasoner   ReasonerConfig   `yaml:"reasoner"`
	Segmenter  SegmenterConfig  `yaml:"segmenter"`
	Index      IndexConfig      `yaml:"index"`
	Retriever  RetrieverConfig  `yaml:"retriever"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/policyqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/policyqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "policyqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Embedder:   EmbedderConfig{Type: "tfidf"},
		Reasoner:   ReasonerConfig{Type: "rules"},
		Segmenter:  SegmenterConfig{WindowWords: 250, OverlapWords: 62, MaxChars: 2000},
		Index:      IndexConfig{Type: "memory"},
		Retriever:  RetrieverConfig{TopK: 5},
		Pipeline:   PipelineConfig{BudgetSecs: 30, MaxCachedDocuments: 0, BatchConcurrency: 3},
		Summarizer: SummarizerConfig{MaxSentences: 5},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Segmenter.WindowWords == 0 {
		cfg.Segmenter.WindowWords = 250
	}
	if cfg.Segmenter.OverlapWords == 0 {
		cfg.Segmenter.OverlapWords = cfg.Segmenter.WindowWords / 4
	}
	if cfg.Segmenter.MaxChars == 0 {
		cfg.Segmenter.MaxChars = 2000
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 5
	}
	if cfg.Pipeline.BudgetSecs == 0 {
		cfg.Pipeline.BudgetSecs = 30
	}
	if cfg.Pipeline.BatchConcurrency == 0 {
		cfg.Pipeline.BatchConcurrency = 3
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	}
	if cfg.Reasoner.Type == "openai" && cfg.Reasoner.OpenAI != nil {
		applyOpenAIDefaults(cfg.Reasoner.OpenAI, "gpt-4o-mini")
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}
