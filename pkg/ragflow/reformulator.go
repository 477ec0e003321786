package ragflow

import "strings"

// reformulationTemperature leaves room for a query that differs from the
// previous attempt.
const reformulationTemperature = 0.3

// Reformulator rewrites the search query after a low-confidence evaluation.
type Reformulator struct {
	completer Completer
}

// NewReformulator builds the reformulator.
func NewReformulator(completer Completer) (*Reformulator, error) {
	if completer == nil {
		return nil, ErrMissingCollaborator
	}
	return &Reformulator{completer: completer}, nil
}

// Run increments ReformulationCount. Below MaxReformulations it writes a new
// AnalyzedQuery and resets all document sets to nil; at the cap it only
// records that the limit was hit. Query is never modified.
func (r *Reformulator) Run(ctx Context, s State) (State, error) {
	next := s.Clone()
	next.ReformulationCount++
	next.record("Starting reformulation attempt %d", next.ReformulationCount)

	if next.ReformulationCount >= MaxReformulations {
		next.record("Maximum reformulation attempts reached")
		return next, nil
	}

	prompt, err := render(reformulationPrompt, struct {
		Query   string
		Summary string
		Attempt int
	}{s.Query, SummarizeDocuments(s.RelevantDocs), next.ReformulationCount})
	if err != nil {
		return s, err
	}

	out, err := r.completer.Complete(ctx, prompt, reformulationTemperature)
	if err != nil {
		return s, &CollaboratorError{Stage: Reformulating, Op: "complete", Err: err}
	}

	next.AnalyzedQuery = strings.TrimSpace(out)
	next.record("Reformulated query: %s", next.AnalyzedQuery)
	next.RetrievedDocs = nil
	next.CleanedDocs = nil
	next.RelevantDocs = nil

	ctx.Logger().Debug("query reformulated",
		"attempt", next.ReformulationCount,
		"analyzed_query", next.AnalyzedQuery,
	)
	return next, nil
}
