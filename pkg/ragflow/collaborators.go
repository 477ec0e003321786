package ragflow

import "context"

// DocumentStore performs nearest-neighbour search over the corpus.
type DocumentStore interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// Completer is a general text-completion backend.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Generator is the fine-tuned local model used by the query analyzer.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, temperature float64) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	return f(ctx, prompt, temperature)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, maxNewTokens int) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error) {
	return f(ctx, prompt, maxNewTokens)
}

// SearchFunc adapts a function to DocumentStore.
type SearchFunc func(ctx context.Context, query string, k int) ([]Document, error)

// Search calls f.
func (f SearchFunc) Search(ctx context.Context, query string, k int) ([]Document, error) {
	return f(ctx, query, k)
}
