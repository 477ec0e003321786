package ragflow

import (
	"fmt"
	"strings"
)

// QueryAnalyzer rewrites the user's question into a search query. It uses
// the fine-tuned Generator unless disabled, in which case it falls back to
// the general Completer.
type QueryAnalyzer struct {
	completer Completer
	generator Generator
	fineTuned bool
}

// NewQueryAnalyzer builds the analyzer. The strategy is fixed at
// construction: disableFineTuned selects the Completer. Returns
// ErrMissingCollaborator when the selected collaborator is nil.
func NewQueryAnalyzer(completer Completer, generator Generator, disableFineTuned bool) (*QueryAnalyzer, error) {
	if disableFineTuned && completer == nil {
		return nil, fmt.Errorf("%w: query analyzer needs a completer", ErrMissingCollaborator)
	}
	if !disableFineTuned && generator == nil {
		return nil, fmt.Errorf("%w: query analyzer needs a fine-tuned generator", ErrMissingCollaborator)
	}
	return &QueryAnalyzer{
		completer: completer,
		generator: generator,
		fineTuned: !disableFineTuned,
	}, nil
}

// FineTuned reports whether the fine-tuned generator is in use.
func (a *QueryAnalyzer) FineTuned() bool {
	return a.fineTuned
}

// Run writes AnalyzedQuery.
func (a *QueryAnalyzer) Run(ctx Context, s State) (State, error) {
	prompt, err := render(analysisPrompt, struct{ Query string }{s.Query})
	if err != nil {
		return s, err
	}

	next := s.Clone()
	var out string
	if a.fineTuned {
		out, err = a.generator.Generate(ctx, prompt, FineTunedMaxNewTokens)
		if err != nil {
			return s, &CollaboratorError{Stage: Analyzing, Op: "generate", Err: err}
		}
		next.record("Fine-tuned model used for query analysis")
	} else {
		out, err = a.completer.Complete(ctx, prompt, 0)
		if err != nil {
			return s, &CollaboratorError{Stage: Analyzing, Op: "complete", Err: err}
		}
		next.record("Standard LLM used for query analysis (fine-tuned model disabled)")
	}

	next.AnalyzedQuery = strings.TrimSpace(out)
	next.record("Query analysis: original query refined to: %s", next.AnalyzedQuery)

	ctx.Logger().Debug("query analyzed",
		"fine_tuned", a.fineTuned,
		"analyzed_query", next.AnalyzedQuery,
	)
	return next, nil
}
