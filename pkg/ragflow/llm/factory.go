package llm

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/petal-labs/iris/core"
	"github.com/petal-labs/iris/providers/anthropic"
	"github.com/petal-labs/iris/providers/ollama"
	"github.com/petal-labs/iris/providers/openai"

	"github.com/randalmurphal/newsrag/pkg/ragflow/config"
	"github.com/randalmurphal/newsrag/pkg/ragflow/retry"
)

// ErrMissingAPIKey is returned when a hosted provider has no key.
var ErrMissingAPIKey = errors.New("api key required")

// FromSettings builds the general-purpose completion client, rate limited
// and retried as configured.
func FromSettings(s config.LLMSettings, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	retryCfg := retry.NewConfig(retry.WithMaxAttempts(s.MaxRetries))

	var client Client
	switch s.Provider {
	case config.ProviderCLI:
		if _, err := LookClaude(""); err != nil {
			return nil, err
		}
		client = NewRetrying(NewClaudeCLI(WithModel(s.Model), WithTimeout(s.Timeout)),
			retryCfg, "claude complete", logger)
	default:
		provider, err := irisProvider(s.Provider, s.APIKey, s.BaseURL)
		if err != nil {
			return nil, err
		}
		client = NewProvider(provider, s.Model,
			WithRetry(retryCfg),
			WithRequestTimeout(s.Timeout),
			WithLogger(logger),
		)
	}

	return NewRateLimited(client, s.RequestsPerSecond, s.Burst), nil
}

// FineTunedFromSettings builds the client for the fine-tuned analysis
// model served by Ollama.
func FineTunedFromSettings(s config.FineTunedSettings, logger *slog.Logger) Client {
	provider := ollama.New(ollama.WithBaseURL(s.BaseURL))
	return NewProvider(provider, s.Model, WithLogger(logger))
}

func irisProvider(name, apiKey, baseURL string) (core.Provider, error) {
	switch name {
	case config.ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
		}
		return openai.New(apiKey), nil
	case config.ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
		}
		return anthropic.New(apiKey), nil
	case config.ProviderOllama:
		if baseURL == "" {
			return ollama.New(), nil
		}
		return ollama.New(ollama.WithBaseURL(baseURL)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}
