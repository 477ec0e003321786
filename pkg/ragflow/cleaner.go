package ragflow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultCleanerConcurrency bounds parallel cleaning calls.
const DefaultCleanerConcurrency = 4

// DocumentCleaner strips noise from each retrieved document independently.
type DocumentCleaner struct {
	completer   Completer
	concurrency int
}

// NewDocumentCleaner builds the cleaner. concurrency <= 0 selects
// DefaultCleanerConcurrency; 1 cleans sequentially.
func NewDocumentCleaner(completer Completer, concurrency int) (*DocumentCleaner, error) {
	if completer == nil {
		return nil, ErrMissingCollaborator
	}
	if concurrency <= 0 {
		concurrency = DefaultCleanerConcurrency
	}
	return &DocumentCleaner{completer: completer, concurrency: concurrency}, nil
}

// Run writes CleanedDocs in RetrievedDocs order. The first failed call
// cancels the rest and the error propagates.
func (c *DocumentCleaner) Run(ctx Context, s State) (State, error) {
	next := s.Clone()

	if len(next.RetrievedDocs) == 0 {
		next.CleanedDocs = []Document{}
		next.record("No documents found to clean")
		return next, nil
	}

	cleaned, err := c.clean(ctx, s.Query, next.RetrievedDocs)
	if err != nil {
		return s, err
	}

	next.CleanedDocs = cleaned
	next.record("Cleaned %d documents", len(cleaned))

	ctx.Logger().Debug("documents cleaned",
		"before_runes", TotalLength(next.RetrievedDocs),
		"after_runes", TotalLength(cleaned),
	)
	return next, nil
}

func (c *DocumentCleaner) clean(ctx context.Context, query string, docs []Document) ([]Document, error) {
	out := make([]Document, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			prompt, err := render(cleaningPrompt, struct{ Query, Content string }{query, doc.Content})
			if err != nil {
				return err
			}
			content, err := c.completer.Complete(gctx, prompt, 0)
			if err != nil {
				return &CollaboratorError{Stage: Cleaning, Op: "complete", Err: err}
			}
			out[i] = doc.WithContent(content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
