package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/petal-labs/iris/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryPermanent},
		{"unknown", errors.New("model not found"), CategoryPermanent},
		{"explicit transient", Transient(errors.New("x"), "op"), CategoryTransient},
		{"explicit permanent", Permanent(errors.New("rate limit"), "op"), CategoryPermanent},
		{"wrapped categorized", fmt.Errorf("outer: %w", Transient(errors.New("x"), "op")), CategoryTransient},
		{"429", &HTTPError{StatusCode: 429}, CategoryTransient},
		{"502", &HTTPError{StatusCode: 502}, CategoryTransient},
		{"500", &HTTPError{StatusCode: 500}, CategoryTransient},
		{"401", &HTTPError{StatusCode: 401}, CategoryPermanent},
		{"404", &HTTPError{StatusCode: 404}, CategoryPermanent},
		{"400", &HTTPError{StatusCode: 400}, CategoryInvalidRequest},
		{"413", &HTTPError{StatusCode: 413}, CategoryInvalidRequest},
		{"418", &HTTPError{StatusCode: 418}, CategoryPermanent},
		{"wrapped http", fmt.Errorf("embed: %w", &HTTPError{StatusCode: 503}), CategoryTransient},
		{"canceled", context.Canceled, CategoryPermanent},
		{"deadline", fmt.Errorf("chat: %w", context.DeadlineExceeded), CategoryTransient},
		{"net timeout", timeoutErr{}, CategoryTransient},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, CategoryTransient},
		{"rate limit wording", errors.New("openai: Rate limit reached for requests"), CategoryTransient},
		{"overloaded wording", errors.New("anthropic: Overloaded"), CategoryTransient},
		{"iris server error", &core.ProviderError{Provider: "openai", Status: 503, Err: core.ErrServer}, CategoryTransient},
		{"iris status only", &core.ProviderError{Provider: "openai", Status: 500}, CategoryTransient},
		{"iris rate limited", &core.ProviderError{Provider: "anthropic", Status: 429, Err: core.ErrRateLimited}, CategoryTransient},
		{"iris network", fmt.Errorf("chat: %w", &core.ProviderError{Provider: "ollama", Err: core.ErrNetwork}), CategoryTransient},
		{"iris unauthorized", &core.ProviderError{Provider: "openai", Status: 401, Err: core.ErrUnauthorized}, CategoryPermanent},
		{"iris not found", &core.ProviderError{Provider: "ollama", Status: 404, Err: core.ErrNotFound}, CategoryPermanent},
		{"iris bad request", &core.ProviderError{Provider: "openai", Status: 400, Err: core.ErrBadRequest}, CategoryInvalidRequest},
		{"iris decode", &core.ProviderError{Provider: "openai", Status: 200, Err: core.ErrDecode}, CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "transient", CategoryTransient.String())
	assert.Equal(t, "permanent", CategoryPermanent.String())
	assert.Equal(t, "invalid_request", CategoryInvalidRequest.String())
	assert.Equal(t, "unknown", Category(99).String())
}

func TestHTTPError_Error(t *testing.T) {
	assert.Equal(t, "http 429 Too Many Requests", (&HTTPError{StatusCode: 429}).Error())
	assert.Equal(t, "http 500 Internal Server Error: boom", (&HTTPError{StatusCode: 500, Body: "boom"}).Error())
}

func fastConfig(opts ...Option) Config {
	base := []Option{WithInitialBackoff(time.Millisecond), WithMaxBackoff(2 * time.Millisecond), WithJitter(0)}
	return NewConfig(append(base, opts...)...)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(), "chat", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &HTTPError{StatusCode: 429}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	cause := &HTTPError{StatusCode: 401}
	_, err := Do(context.Background(), fastConfig(), "chat", func(context.Context) (int, error) {
		calls++
		return 0, cause
	})

	assert.Equal(t, 1, calls)
	var catErr *CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, CategoryPermanent, catErr.Category)
	assert.Equal(t, 1, catErr.Attempts)
	assert.Equal(t, "chat", catErr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(WithMaxAttempts(4)), "embed", func(context.Context) (int, error) {
		calls++
		return 0, &HTTPError{StatusCode: 503}
	})

	assert.Equal(t, 4, calls)
	var catErr *CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, 4, catErr.Attempts)
	assert.Contains(t, err.Error(), "embed")
}

func TestDo_CustomRetryable(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(WithRetryable(func(error) bool { return false })), "op",
		func(context.Context) (int, error) {
			calls++
			return 0, &HTTPError{StatusCode: 503}
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastConfig(), "op", func(context.Context) (int, error) {
		calls++
		return 0, nil
	})

	assert.Zero(t, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := NewConfig(WithInitialBackoff(time.Hour), WithMaxBackoff(time.Hour), WithJitter(0))

	calls := 0
	_, err := Do(ctx, cfg, "op", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, &HTTPError{StatusCode: 429}
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_NoneMakesOneAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), None, "op", func(context.Context) (int, error) {
		calls++
		return 0, &HTTPError{StatusCode: 429}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
