package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/newsrag/pkg/ragflow/retry"
)

// Retrying retries a Client whose errors carry their own retry category,
// such as ClaudeCLI. Provider retries internally and needs no wrapper.
type Retrying struct {
	client Client
	cfg    retry.Config
	op     string
	logger *slog.Logger
}

var _ Client = (*Retrying)(nil)

// NewRetrying wraps client. op names the call in errors and logs.
func NewRetrying(client Client, cfg retry.Config, op string, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{client: client, cfg: cfg, op: op, logger: logger}
}

// Complete implements Client.
func (r *Retrying) Complete(ctx context.Context, req Request) (*Response, error) {
	attempt := 0
	resp, err := retry.Do(ctx, r.cfg, r.op, func(ctx context.Context) (*Response, error) {
		attempt++
		if attempt > 1 {
			r.logger.Warn("retrying completion", "op", r.op, "attempt", attempt)
		}
		return r.client.Complete(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	return resp, nil
}
