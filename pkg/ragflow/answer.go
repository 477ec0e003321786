package ragflow

import "strings"

const answerTemperature = 0.3

// AnswerGenerator synthesizes the final answer from the best available
// documents.
type AnswerGenerator struct {
	completer Completer
}

// NewAnswerGenerator builds the answer generator.
func NewAnswerGenerator(completer Completer) (*AnswerGenerator, error) {
	if completer == nil {
		return nil, ErrMissingCollaborator
	}
	return &AnswerGenerator{completer: completer}, nil
}

// Run writes Answer. Documents come from the first non-empty of relevant,
// cleaned and retrieved. With none, a fixed message is used and no
// collaborator call is made.
func (g *AnswerGenerator) Run(ctx Context, s State) (State, error) {
	next := s.Clone()

	docs := next.BestDocuments()
	if len(docs) == 0 {
		if next.ReformulationCount > 0 {
			next.Answer = ExhaustedAnswer(next.ReformulationCount)
		} else {
			next.Answer = NotFoundAnswer
		}
		next.record("No documents available, answered without sources")
		return next, nil
	}

	prompt, err := render(answerPrompt, struct{ Query, Caveat, Sources string }{
		s.Query,
		ConfidenceCaveat(next.Confidence()),
		FormatSources(docs),
	})
	if err != nil {
		return s, err
	}

	out, err := g.completer.Complete(ctx, prompt, answerTemperature)
	if err != nil {
		return s, &CollaboratorError{Stage: Answering, Op: "complete", Err: err}
	}

	next.Answer = strings.TrimSpace(out)
	if next.Answer == "" {
		ctx.Logger().Warn("completion returned an empty answer", "sources", len(docs))
		next.Answer = NotFoundAnswer
	}
	next.record("Generated answer from %d sources", len(docs))
	return next, nil
}
