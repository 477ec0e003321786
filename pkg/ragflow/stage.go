package ragflow

import "fmt"

// Stage identifies one step of the question-answering machine.
// The set is closed; Done is the only terminal stage.
type Stage int

const (
	// Analyzing rewrites the raw question into a search query.
	Analyzing Stage = iota + 1
	// Retrieving queries the document store.
	Retrieving
	// Cleaning strips noise from oversized retrieval results.
	Cleaning
	// Evaluating scores candidate documents and computes confidence.
	Evaluating
	// Reformulating rewrites the query after a low-confidence retrieval.
	Reformulating
	// Answering synthesizes the final answer.
	Answering
	// Done ends the run.
	Done
)

var stageNames = map[Stage]string{
	Analyzing:     "analyzing",
	Retrieving:    "retrieving",
	Cleaning:      "cleaning",
	Evaluating:    "evaluating",
	Reformulating: "reformulating",
	Answering:     "answering",
	Done:          "done",
}

var stageLabels = map[Stage]string{
	Analyzing:     "Query Analysis",
	Retrieving:    "Document Retrieval",
	Cleaning:      "Document Cleaning",
	Evaluating:    "Relevance Evaluation",
	Reformulating: "Query Reformulation",
	Answering:     "Answer Generation",
	Done:          "End",
}

// AllStages lists every non-terminal stage in pipeline order.
var AllStages = []Stage{Analyzing, Retrieving, Cleaning, Evaluating, Reformulating, Answering}

// String returns the stable lowercase name used in logs, metrics and snapshots.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Label returns a human-readable title.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return s.String()
}

// Valid reports whether s is a declared stage.
func (s Stage) Valid() bool {
	_, ok := stageNames[s]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStage, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStage converts a stage name back to a Stage.
func ParseStage(name string) (Stage, error) {
	for stage, n := range stageNames {
		if n == name {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}
