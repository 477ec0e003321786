package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to a Client with a token bucket. Concurrent
// cleaner workers and evaluation runs share one limiter.
type RateLimited struct {
	client  Client
	limiter *rate.Limiter
}

var _ Client = (*RateLimited)(nil)

// NewRateLimited allows rps calls per second with the given burst. A
// non-positive rps disables limiting.
func NewRateLimited(client Client, rps float64, burst int) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{client: client, limiter: rate.NewLimiter(limit, burst)}
}

// Complete waits for a token, then delegates.
func (r *RateLimited) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.client.Complete(ctx, req)
}
