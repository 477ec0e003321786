package snapshot

import (
	"encoding/json"
	"time"
)

// Version is the snapshot format version. Bump on breaking changes.
const Version = 1

// Snapshot is the persisted record written after a stage completes.
type Snapshot struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	State     json.RawMessage `json:"state"`
	NextStage string          `json:"next_stage"`
	PrevStage string          `json:"prev_stage,omitempty"`
}

// New creates a snapshot. state must already be JSON.
func New(runID, stage string, sequence int, state []byte, nextStage string) *Snapshot {
	return &Snapshot{
		Version:   Version,
		RunID:     runID,
		Stage:     stage,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextStage: nextStage,
	}
}

// WithPrevStage records the stage that ran before this one.
func (s *Snapshot) WithPrevStage(stage string) *Snapshot {
	s.PrevStage = stage
	return s
}

// Marshal serializes the snapshot to JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal decodes a snapshot.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
