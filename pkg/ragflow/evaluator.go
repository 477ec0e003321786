package ragflow

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"
)

// Scoring is the structured response of the relevance collaborator.
type Scoring struct {
	Evaluation              []DocumentScore `json:"evaluation"`
	RetainedDocumentIndices []int           `json:"retained_document_indices"`
}

// DocumentScore is one entry of Scoring.Evaluation.
type DocumentScore struct {
	DocumentIndex  int      `json:"document_index"`
	RelevanceScore *float64 `json:"relevance_score"`
	Retain         bool     `json:"retain"`
}

// Confidence is the mean relevance score. Entries without a score count as
// 0; an empty evaluation yields 0.
func (sc Scoring) Confidence() float64 {
	if len(sc.Evaluation) == 0 {
		return 0
	}
	var sum float64
	for _, e := range sc.Evaluation {
		if e.RelevanceScore != nil {
			sum += *e.RelevanceScore
		}
	}
	return sum / float64(len(sc.Evaluation))
}

// Select returns the candidates at the retained indices, in the listed
// order. Out-of-range and negative indices are dropped; duplicates are kept.
func (sc Scoring) Select(candidates []Document) []Document {
	out := make([]Document, 0, len(sc.RetainedDocumentIndices))
	for _, i := range sc.RetainedDocumentIndices {
		if i >= 0 && i < len(candidates) {
			out = append(out, candidates[i])
		}
	}
	return out
}

var errNoJSONObject = errors.New("no JSON object in response")

// maxQuotedResponse bounds the response text kept on MalformedScoringError.
const maxQuotedResponse = 200

// ParseScoring extracts the scoring object from a collaborator response.
// Text before the first '{' and after the last '}' is ignored, which strips
// code fences and commentary. Strict JSON is tried first, then the same
// text with single quotes normalised to double quotes.
func ParseScoring(response string) (Scoring, error) {
	start := strings.IndexByte(response, '{')
	end := strings.LastIndexByte(response, '}')
	if start < 0 || end < start {
		return Scoring{}, malformed(response, errNoJSONObject)
	}
	body := response[start : end+1]

	var sc Scoring
	err := json.Unmarshal([]byte(body), &sc)
	if err != nil {
		sc = Scoring{}
		if retryErr := json.Unmarshal([]byte(strings.ReplaceAll(body, "'", `"`)), &sc); retryErr != nil {
			return Scoring{}, malformed(response, err)
		}
	}
	return sc, nil
}

func malformed(response string, err error) *MalformedScoringError {
	if utf8.RuneCountInString(response) > maxQuotedResponse {
		response = string([]rune(response)[:maxQuotedResponse]) + "..."
	}
	return &MalformedScoringError{Response: response, Err: err}
}

// RelevanceEvaluator scores candidate documents in one batched call and
// keeps the retained ones.
type RelevanceEvaluator struct {
	completer Completer
}

// NewRelevanceEvaluator builds the evaluator.
func NewRelevanceEvaluator(completer Completer) (*RelevanceEvaluator, error) {
	if completer == nil {
		return nil, ErrMissingCollaborator
	}
	return &RelevanceEvaluator{completer: completer}, nil
}

// Run writes RelevantDocs and ConfidenceScore.
//
// An unusable scoring response does not fail the run: every candidate is
// retained and confidence is set to NeutralConfidence.
func (e *RelevanceEvaluator) Run(ctx Context, s State) (State, error) {
	next := s.Clone()

	candidates := next.CandidateDocuments()
	if len(candidates) == 0 {
		next.RelevantDocs = []Document{}
		next.record("No relevant documents found")
		return next, nil
	}

	prompt, err := render(evaluationPrompt, struct{ Query, Documents string }{s.Query, formatCandidates(candidates)})
	if err != nil {
		return s, err
	}
	resp, err := e.completer.Complete(ctx, prompt, 0)
	if err != nil {
		return s, &CollaboratorError{Stage: Evaluating, Op: "complete", Err: err}
	}

	scoring, err := ParseScoring(resp)
	if err != nil {
		ctx.Logger().Warn("retaining all candidates",
			"error", err,
			"candidates", len(candidates),
			"confidence", NeutralConfidence,
		)
		next.RelevantDocs = slices.Clone(candidates)
		next.setConfidence(NeutralConfidence)
		next.record("Evaluation response unreadable, retained all %d documents", len(candidates))
		return next, nil
	}

	next.RelevantDocs = scoring.Select(candidates)
	next.setConfidence(scoring.Confidence())
	next.record("Evaluation completed, retained %d relevant documents", len(next.RelevantDocs))

	ctx.Logger().Debug("documents evaluated",
		"candidates", len(candidates),
		"retained", len(next.RelevantDocs),
		"confidence", next.Confidence(),
	)
	return next, nil
}
