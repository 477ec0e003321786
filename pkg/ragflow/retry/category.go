// Package retry classifies collaborator errors and retries the transient
// ones with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/petal-labs/iris/core"
)

// Category says how an error should be handled.
type Category int

const (
	// CategoryTransient errors are likely to succeed on retry: rate limits,
	// timeouts, overloaded backends.
	CategoryTransient Category = iota

	// CategoryPermanent errors will fail again: bad credentials, unknown
	// models, cancelled contexts.
	CategoryPermanent

	// CategoryInvalidRequest errors come from the request itself, usually
	// an oversized prompt.
	CategoryInvalidRequest
)

func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// CategorizedError is the error returned once retrying stops.
type CategorizedError struct {
	Err      error
	Category Category
	// Attempts is the number of calls made.
	Attempts int
	// Op names the operation, e.g. "openai chat".
	Op string
}

func (e *CategorizedError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)", e.Op, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)", e.Err, e.Category, e.Attempts)
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable.
func Transient(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Op: op}
}

// Permanent marks err as not retryable.
func Permanent(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Op: op}
}

// HTTPError is a non-2xx response from an HTTP backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Categorize decides how err should be handled. Unknown errors are
// permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return categorizeStatus(httpErr.StatusCode)
	}

	if cat, ok := categorizeProvider(err); ok {
		return cat
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryTransient
	}

	return categorizeMessage(err.Error())
}

// categorizeProvider classifies iris provider failures by their sentinel,
// then by the HTTP status the provider saw.
func categorizeProvider(err error) (Category, bool) {
	switch {
	case errors.Is(err, core.ErrRateLimited), errors.Is(err, core.ErrServer), errors.Is(err, core.ErrNetwork):
		return CategoryTransient, true
	case errors.Is(err, core.ErrBadRequest):
		return CategoryInvalidRequest, true
	case errors.Is(err, core.ErrUnauthorized), errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrDecode):
		return CategoryPermanent, true
	}
	var pe *core.ProviderError
	if errors.As(err, &pe) && pe.Status != 0 {
		return categorizeStatus(pe.Status), true
	}
	return 0, false
}

func categorizeStatus(code int) Category {
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway:
		return CategoryTransient
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return CategoryPermanent
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return CategoryInvalidRequest
	}
	if code >= 500 {
		return CategoryTransient
	}
	return CategoryPermanent
}

// Provider SDKs do not share an error type, so fall back on the wording
// they use for throttling and overload.
var transientMarkers = []string{
	"rate limit",
	"too many requests",
	"overloaded",
	"status 429",
	"status 503",
	"connection reset",
	"timeout",
}

func categorizeMessage(msg string) Category {
	msg = strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return CategoryTransient
		}
	}
	return CategoryPermanent
}

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
