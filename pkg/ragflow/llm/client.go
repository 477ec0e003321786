// Package llm adapts language model backends to the ragflow collaborator
// interfaces.
//
// Backends implement Client. Completer and Generator wrap a Client as a
// ragflow.Completer or ragflow.Generator:
//
//	provider := llm.NewProvider(openai.New(key), "gpt-3.5-turbo")
//	completer := llm.NewCompleter(llm.NewRateLimited(provider, 5, 5))
package llm

import (
	"context"
	"time"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
)

// Request is a single-prompt completion call.
type Request struct {
	Prompt      string
	Temperature float64
	// MaxTokens caps the response; zero leaves it to the backend.
	MaxTokens int
	// Model overrides the client's default model.
	Model string
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Response is the output of a completion call.
type Response struct {
	Content  string        `json:"content"`
	Model    string        `json:"model"`
	Usage    TokenUsage    `json:"usage"`
	Duration time.Duration `json:"duration"`
}

// Client is a language model backend.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Completer adapts a Client to ragflow.Completer.
type Completer struct {
	client Client
}

var _ ragflow.Completer = (*Completer)(nil)

// NewCompleter wraps client.
func NewCompleter(client Client) *Completer {
	return &Completer{client: client}
}

// Complete sends prompt at temperature.
func (c *Completer) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	resp, err := c.client.Complete(ctx, Request{Prompt: prompt, Temperature: temperature})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// fineTunedTemperature is the sampling temperature of the fine-tuned
// analysis model.
const fineTunedTemperature = 0.3

// Generator adapts a Client serving the fine-tuned analysis model to
// ragflow.Generator.
type Generator struct {
	client Client
}

var _ ragflow.Generator = (*Generator)(nil)

// NewGenerator wraps client.
func NewGenerator(client Client) *Generator {
	return &Generator{client: client}
}

// Generate produces at most maxNewTokens tokens for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error) {
	resp, err := g.client.Complete(ctx, Request{
		Prompt:      prompt,
		Temperature: fineTunedTemperature,
		MaxTokens:   maxNewTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
