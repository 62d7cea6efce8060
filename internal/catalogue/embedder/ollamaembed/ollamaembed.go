// Package ollamaembed is an embedder.Provider backed by a local Ollama
// server, used when the process should index tool descriptions without a
// network dependency on a commercial embedding API.
package ollamaembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder"
)

// Provider implements embedder.Provider against Ollama's /api/embeddings.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

var _ embedder.Provider = (*Provider)(nil)

// Config configures a Provider.
type Config struct {
	BaseURL string // defaults to http://localhost:11434
	Model   string // defaults to "nomic-embed-text"
}

// New constructs a Provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	return &Provider{baseURL: cfg.BaseURL, model: cfg.Model, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *Provider) Name() string { return "ollama" }

// Dimension returns nomic-embed-text's dimension; override via Config.Model
// if a different local model is used, in which case callers should not
// rely on this default.
func (p *Provider) Dimension() int { return 768 }

// MaxBatchSize is 1: Ollama's embeddings endpoint takes one prompt per
// call, so EmbedBatch issues requests sequentially.
func (p *Provider) MaxBatchSize() int { return 1 }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("ollamaembed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollamaembed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollamaembed: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollamaembed: http %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollamaembed: decode response: %w", err)
	}
	return out.Embedding, nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
