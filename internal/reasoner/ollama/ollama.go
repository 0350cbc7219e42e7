package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// Client is a reasoning provider backed by a local Ollama server.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates an Ollama reasoner. An empty host uses the OLLAMA_HOST
// environment configuration.
func NewClient(host, model string) (*Client, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	return &Client{
		client: api.NewClient(hostURL, http.DefaultClient),
		model:  model,
	}, nil
}

// Name returns the identifier of this reasoner implementation.
func (c *Client) Name() string { return "ollama" }

// Complete generates a completion for the prompt pair, accumulating the
// streamed response.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	req := api.GenerateRequest{
		Model:  c.model,
		System: system,
		Prompt: user,
		Options: map[string]any{
			"temperature": 0.1,
			"num_predict": 1024,
		},
	}

	var responseBuilder strings.Builder
	err := c.client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	return responseBuilder.String(), nil
}
