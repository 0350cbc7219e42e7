package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"policyqa/internal/config"
	"policyqa/internal/domain"
	ollamaembed "policyqa/internal/embedding/ollama"
	openaiembed "policyqa/internal/embedding/openai"
	"policyqa/internal/embedding/tfidf"
	"policyqa/internal/evaluator"
	"policyqa/internal/fetch"
	"policyqa/internal/index/memory"
	"policyqa/internal/index/qdrant"
	"policyqa/internal/index/sqlite"
	"policyqa/internal/logger"
	"policyqa/internal/pipeline"
	"policyqa/internal/query"
	ollamareason "policyqa/internal/reasoner/ollama"
	openaireason "policyqa/internal/reasoner/openai"
	"policyqa/internal/retriever"
	"policyqa/internal/segmenter"
	"policyqa/internal/summarizer"
	"policyqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var verbose bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/policyqa/config.yaml if not provided)")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()
	logger.SetVerbose(verbose)

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println("Usage: policyqa [--config=config.yaml] [--verbose] <document> [question ...]")
		fmt.Println("  <document>  path or URL of a policy document (.txt, .md, .json, .csv, .pdf)")
		fmt.Println("  Without questions an interactive prompt is started.")
		os.Exit(1)
	}
	ref, questions := args[0], args[1:]

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	reasoner := buildReasoner(cfg)

	p := pipeline.New(pipeline.Options{
		Fetcher:            fetch.New(),
		Segmenter:          segmenter.New(cfg.Segmenter.WindowWords, cfg.Segmenter.OverlapWords, cfg.Segmenter.MaxChars),
		Structurer:         query.NewStructurer(reasoner),
		Retriever:          retriever.New(),
		Evaluator:          evaluator.New(reasoner),
		NewEmbedder:        buildEmbedderFactory(cfg),
		NewIndex:           buildIndexFactory(cfg),
		TopK:               cfg.Retriever.TopK,
		Budget:             time.Duration(cfg.Pipeline.BudgetSecs) * time.Second,
		MaxCachedDocuments: cfg.Pipeline.MaxCachedDocuments,
		BatchConcurrency:   cfg.Pipeline.BatchConcurrency,
	})

	ctx := context.Background()
	if len(questions) > 0 {
		runBatch(ctx, p, ref, questions)
		return
	}

	di, err := p.Ingest(ctx, ref)
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
	sum := summarizer.New(cfg.Summarizer.MaxSentences)
	summary := fmt.Sprintf("%s (%d clauses)  %s", di.Document.Ref, len(di.Clauses), sum.Summarize(di.Document.Content))

	m := tui.New(p, ref, summary)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

// runBatch answers all questions and prints the decisions as a JSON array in
// question order.
func runBatch(ctx context.Context, p *pipeline.Pipeline, ref string, questions []string) {
	decisions := p.AnswerBatch(ctx, ref, questions)
	out, err := json.MarshalIndent(decisions, "", "  ")
	if err != nil {
		log.Fatalf("encode decisions: %v", err)
	}
	fmt.Println(string(out))
}

func buildReasoner(cfg *config.AppConfig) domain.Reasoner {
	switch cfg.Reasoner.Type {
	case "rules", "":
		return nil
	case "openai":
		if cfg.Reasoner.OpenAI == nil {
			log.Fatalf("openai reasoner config missing")
		}
		client, err := openaireason.NewClient(openaireason.Config{
			BaseURL:   cfg.Reasoner.OpenAI.BaseURL,
			APIKeyEnv: cfg.Reasoner.OpenAI.APIKeyEnv,
			Model:     cfg.Reasoner.OpenAI.Model,
			Timeout:   time.Duration(cfg.Reasoner.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("openai reasoner init failed: %v", err)
		}
		return client
	case "ollama":
		if cfg.Reasoner.Ollama == nil {
			log.Fatalf("ollama reasoner config missing")
		}
		client, err := ollamareason.NewClient(cfg.Reasoner.Ollama.Host, cfg.Reasoner.Ollama.Model)
		if err != nil {
			log.Fatalf("ollama reasoner init failed: %v", err)
		}
		return client
	default:
		log.Fatalf("unknown reasoner: %s", cfg.Reasoner.Type)
		return nil
	}
}

// buildEmbedderFactory returns a per-document embedder factory. The TF-IDF
// embedder is stateful per document; the API-backed clients are stateless and
// shared across documents.
func buildEmbedderFactory(cfg *config.AppConfig) func() domain.Embedder {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return func() domain.Embedder { return tfidf.NewEmbedder() }
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatalf("openai embedder config missing")
		}
		client, err := openaiembed.NewClient(openaiembed.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		return func() domain.Embedder { return client }
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			log.Fatalf("ollama embedder config missing")
		}
		client, err := ollamaembed.NewEmbedder(cfg.Embedder.Ollama.Host, cfg.Embedder.Ollama.Model)
		if err != nil {
			log.Fatalf("ollama embedder init failed: %v", err)
		}
		return func() domain.Embedder { return client }
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
		return nil
	}
}

func buildIndexFactory(cfg *config.AppConfig) domain.IndexFactory {
	switch cfg.Index.Type {
	case "memory", "":
		return memory.Factory()
	case "sqlite":
		path := ""
		if cfg.Index.SQLite != nil {
			path = cfg.Index.SQLite.Path
		}
		store, err := sqlite.NewStore(path)
		if err != nil {
			log.Fatalf("sqlite index init failed: %v", err)
		}
		return store.Factory()
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		store := qdrant.NewStore(qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
		return store.Factory()
	default:
		log.Fatalf("unknown index: %s", cfg.Index.Type)
		return nil
	}
}
