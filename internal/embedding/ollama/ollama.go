package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// Embedder generates embeddings using a local Ollama server.
type Embedder struct {
	client        *api.Client
	model         string
	maxRetries    int
	timeout       time.Duration
	maxConcurrent int

	// dimension is set lazily on first embed; EmbedBatch workers reach it
	// concurrently, so access goes through the mutex.
	mu        sync.Mutex
	dimension int
}

// NewEmbedder creates an Ollama embedder. An empty host uses the
// OLLAMA_HOST environment configuration.
func NewEmbedder(host, model string) (*Embedder, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	return &Embedder{
		client:        api.NewClient(hostURL, http.DefaultClient),
		model:         model,
		maxRetries:    3,
		timeout:       30 * time.Second,
		maxConcurrent: 3,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama" }

// Prepare is not required; dimension is set lazily on first embed.
func (e *Embedder) Prepare(ctx context.Context, corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *Embedder) setDimension(n int) {
	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = n
	}
	e.mu.Unlock()
}

// Embed generates an embedding for a text, retrying transient failures.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var embedding []float64
	var err error
	for retries := 0; retries <= e.maxRetries; retries++ {
		if retries > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(retries) * time.Second):
			}
		}
		embedding, err = e.createEmbedding(ctx, text)
		if err == nil {
			e.setDimension(len(embedding))
			return embedding, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("failed to create embedding after %d retries: %w", e.maxRetries, err)
}

func (e *Embedder) createEmbedding(ctx context.Context, text string) ([]float64, error) {
	req := api.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Embeddings(ctxWithTimeout, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	return resp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts in parallel, bounded by
// a small semaphore to avoid overloading the local server.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.maxConcurrent)
	errChan := make(chan error, len(texts))

	for i := range texts {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-semaphore }()
			v, err := e.Embed(ctx, texts[i])
			if err != nil {
				errChan <- fmt.Errorf("failed to embed text %d: %w", i, err)
				return
			}
			vectors[i] = v
		}(i)
	}

	wg.Wait()
	close(errChan)
	if err := <-errChan; err != nil {
		return nil, err
	}
	return vectors, nil
}
