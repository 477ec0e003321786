// Package snapshot persists per-stage state snapshots of ragflow runs.
//
// A run that loops through retrieval more than once visits the same stage
// repeatedly, so snapshots are keyed by (run ID, sequence) rather than by
// stage. The full history of a run is kept for tracing and debugging, and the
// latest snapshot is the resume point.
package snapshot

import (
	"errors"
	"time"
)

// Store persists snapshots. Implementations must be safe for concurrent use.
type Store interface {
	// Save stores the snapshot taken after stage at position sequence.
	// Overwrites an existing (runID, sequence) entry.
	Save(runID string, sequence int, stage string, data []byte) error

	// Load retrieves one snapshot. Returns ErrNotFound when absent.
	Load(runID string, sequence int) ([]byte, error)

	// List returns a run's snapshots ordered by sequence.
	// Returns an empty slice, not an error, for unknown runs.
	List(runID string) ([]Info, error)

	// Runs returns every run ID with at least one snapshot, most recent first.
	Runs() ([]string, error)

	// DeleteAfter removes a run's snapshots with sequence greater than
	// sequence. Used to drop a superseded branch before resuming.
	DeleteAfter(runID string, sequence int) error

	// DeleteRun removes every snapshot of a run.
	DeleteRun(runID string) error

	// Close releases resources.
	Close() error
}

// Info describes a snapshot without loading it.
type Info struct {
	RunID     string
	Sequence  int
	Stage     string
	Timestamp time.Time
	Size      int64
}

var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")
)

// Latest loads the highest-sequence snapshot of a run.
// Returns ErrNotFound when the run has none.
func Latest(store Store, runID string) (Info, []byte, error) {
	infos, err := store.List(runID)
	if err != nil {
		return Info{}, nil, err
	}
	if len(infos) == 0 {
		return Info{}, nil, ErrNotFound
	}
	info := infos[len(infos)-1]
	data, err := store.Load(runID, info.Sequence)
	if err != nil {
		return Info{}, nil, err
	}
	return info, data, nil
}
