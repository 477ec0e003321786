// Package store provides the vector-backed ragflow.DocumentStore and the
// embedders it queries with.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/randalmurphal/newsrag/pkg/ragflow/retry"
)

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrEmbeddingCount is returned when a backend answers with a different
// number of vectors than texts sent.
var ErrEmbeddingCount = errors.New("embedding count mismatch")

// OllamaEmbedder calls Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
	retry   retry.Config
	logger  *slog.Logger
}

// OllamaOption configures an OllamaEmbedder.
type OllamaOption func(*OllamaEmbedder)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(e *OllamaEmbedder) { e.client = c }
}

// WithEmbedRetry sets the retry policy.
func WithEmbedRetry(cfg retry.Config) OllamaOption {
	return func(e *OllamaEmbedder) { e.retry = cfg }
}

// WithEmbedLogger sets the logger.
func WithEmbedLogger(logger *slog.Logger) OllamaOption {
	return func(e *OllamaEmbedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewOllamaEmbedder creates an embedder for model served at baseURL.
func NewOllamaEmbedder(baseURL, model string, opts ...OllamaOption) *OllamaEmbedder {
	e := &OllamaEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   retry.Default,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the embedding model name.
func (e *OllamaEmbedder) Model() string {
	return e.model
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements Embedder.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	start := time.Now()
	vectors, err := retry.Do(ctx, e.retry, "ollama embed", func(ctx context.Context) ([][]float32, error) {
		return e.post(ctx, body)
	})
	if err != nil {
		e.logger.Error("embed failed",
			slog.String("model", e.model),
			slog.Int("text_count", len(texts)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d vectors", ErrEmbeddingCount, len(texts), len(vectors))
	}

	e.logger.Debug("embed completed",
		slog.String("model", e.model),
		slog.Int("text_count", len(texts)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return vectors, nil
}

func (e *OllamaEmbedder) post(ctx context.Context, body []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err), "ollama embed")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode embed response: %w", err), "ollama embed")
	}
	return out.Embeddings, nil
}
