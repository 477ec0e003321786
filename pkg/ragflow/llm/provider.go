package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petal-labs/iris/core"

	"github.com/randalmurphal/newsrag/pkg/ragflow/retry"
)

// ErrEmptyResponse is returned when a provider answers with no choices.
var ErrEmptyResponse = errors.New("provider returned an empty response")

// Provider is a Client backed by an iris provider. Transient failures are
// retried.
type Provider struct {
	provider core.Provider
	model    string
	retry    retry.Config
	timeout  time.Duration
	logger   *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithRetry sets the retry policy. Defaults to retry.Default.
func WithRetry(cfg retry.Config) ProviderOption {
	return func(p *Provider) { p.retry = cfg }
}

// WithRequestTimeout bounds each attempt. Zero means no per-attempt bound.
func WithRequestTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) { p.timeout = d }
}

// WithLogger sets the logger for retries and failures.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider wraps an iris provider with a default model.
func NewProvider(provider core.Provider, model string, opts ...ProviderOption) *Provider {
	p := &Provider{
		provider: provider,
		model:    model,
		retry:    retry.Default,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the provider id, e.g. "openai".
func (p *Provider) ID() string {
	return p.provider.ID()
}

// Complete implements Client.
func (p *Provider) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	chatReq := p.chatRequest(req)
	op := p.provider.ID() + " chat"

	attempt := 0
	resp, err := retry.Do(ctx, p.retry, op, func(ctx context.Context) (*core.ChatResponse, error) {
		attempt++
		if attempt > 1 {
			p.logger.Warn("retrying completion", "provider", p.provider.ID(), "attempt", attempt)
		}
		if p.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		resp, err := p.provider.Chat(ctx, chatReq)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, retry.Permanent(ErrEmptyResponse, op)
		}
		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Response{
		Content: resp.Output,
		Model:   string(resp.Model),
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}

func (p *Provider) chatRequest(req Request) *core.ChatRequest {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	temp := float32(req.Temperature)
	chatReq := &core.ChatRequest{
		Model: core.ModelID(model),
		Messages: []core.Message{
			{Role: core.RoleUser, Content: req.Prompt},
		},
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		chatReq.MaxTokens = &maxTokens
	}
	return chatReq
}
