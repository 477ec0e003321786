package ragflow

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Document is a retrieved unit of text plus the metadata needed to cite it.
// Documents are never modified in place; cleaning produces a new Document
// through WithContent.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// sourceKeys are the metadata keys tried, in order, when labelling a source.
var sourceKeys = []string{"title", "source", "url", "id"}

// WithContent returns a copy of d with replaced content and copied metadata.
func (d Document) WithContent(content string) Document {
	return Document{
		Content:  content,
		Metadata: maps.Clone(d.Metadata),
	}
}

// Source returns a display label for citations, or "" when the metadata
// carries nothing usable.
func (d Document) Source() string {
	for _, key := range sourceKeys {
		v, ok := d.Metadata[key]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	return ""
}

// State is the record threaded through every stage of a run.
//
// A nil document slice means "absent" and an empty non-nil slice means
// "looked, found nothing". The distinction survives JSON round trips, which
// matters for snapshots and resume.
type State struct {
	// Query is the user's original question. It is never rewritten.
	Query string `json:"query"`

	// AnalyzedQuery is the current effective search query, written by the
	// analyzer and the reformulator.
	AnalyzedQuery string `json:"analyzed_query,omitempty"`

	RetrievedDocs []Document `json:"retrieved_docs"`
	CleanedDocs   []Document `json:"cleaned_docs"`
	RelevantDocs  []Document `json:"relevant_docs"`

	// ConfidenceScore is the mean relevance score, nil until evaluated.
	ConfidenceScore *float64 `json:"confidence_score"`

	ReformulationCount int `json:"reformulation_count"`

	// IntermediateSteps is an append-only human-readable trace.
	IntermediateSteps []string `json:"intermediate_steps"`

	Answer string `json:"answer,omitempty"`
}

// NewState returns the initial state for a question.
func NewState(query string) State {
	return State{
		Query:             query,
		IntermediateSteps: []string{},
	}
}

// Clone returns a deep copy of s. Nil slices stay nil.
func (s State) Clone() State {
	c := s
	c.RetrievedDocs = cloneDocs(s.RetrievedDocs)
	c.CleanedDocs = cloneDocs(s.CleanedDocs)
	c.RelevantDocs = cloneDocs(s.RelevantDocs)
	c.IntermediateSteps = slices.Clone(s.IntermediateSteps)
	if s.ConfidenceScore != nil {
		score := *s.ConfidenceScore
		c.ConfidenceScore = &score
	}
	return c
}

// Confidence returns the confidence score, treating nil as 0.
func (s State) Confidence() float64 {
	if s.ConfidenceScore == nil {
		return 0
	}
	return *s.ConfidenceScore
}

// EffectiveQuery returns the query the retriever should use:
// AnalyzedQuery when set, otherwise Query. Returns "" when both are blank.
func (s State) EffectiveQuery() string {
	if q := strings.TrimSpace(s.AnalyzedQuery); q != "" {
		return q
	}
	return strings.TrimSpace(s.Query)
}

// CandidateDocuments returns the documents to score: cleaned when present,
// otherwise retrieved.
func (s State) CandidateDocuments() []Document {
	if len(s.CleanedDocs) > 0 {
		return s.CleanedDocs
	}
	return s.RetrievedDocs
}

// BestDocuments returns the first non-empty set among relevant, cleaned and
// retrieved documents.
func (s State) BestDocuments() []Document {
	switch {
	case len(s.RelevantDocs) > 0:
		return s.RelevantDocs
	case len(s.CleanedDocs) > 0:
		return s.CleanedDocs
	default:
		return s.RetrievedDocs
	}
}

// HasPartialDocuments reports whether the run got far enough to hold
// retrieved or cleaned documents.
func (s State) HasPartialDocuments() bool {
	return len(s.RetrievedDocs) > 0 || len(s.CleanedDocs) > 0
}

// record appends a trace entry. The clip forces a fresh backing array so a
// caller holding an earlier State never sees the append.
func (s *State) record(format string, args ...any) {
	step := format
	if len(args) > 0 {
		step = fmt.Sprintf(format, args...)
	}
	s.IntermediateSteps = append(slices.Clip(s.IntermediateSteps), step)
}

func (s *State) setConfidence(score float64) {
	s.ConfidenceScore = &score
}

func cloneDocs(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document{Content: d.Content, Metadata: maps.Clone(d.Metadata)}
	}
	return out
}
