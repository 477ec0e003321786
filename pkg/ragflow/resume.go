package ragflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/newsrag/pkg/ragflow/snapshot"
)

// Resume continues a run from its latest snapshot. Execution starts at the
// stage recorded as next; a snapshot taken after Answering resumes straight
// to Done and returns the stored state.
//
// opts apply as for Run; the store and run ID are fixed to the arguments and
// the step cap counts only the stages executed by this call.
//
//	// Process crashed after evaluating
//	result, err := compiled.Resume(ctx, store, "run-123")
func (cm *CompiledMachine) Resume(ctx Context, store snapshot.Store, runID string, opts ...RunOption) (State, error) {
	if ctx == nil {
		return State{}, ErrNilContext
	}

	info, data, err := snapshot.Latest(store, runID)
	if errors.Is(err, snapshot.ErrNotFound) {
		return State{}, fmt.Errorf("%w: %s", ErrNoSnapshots, runID)
	}
	if err != nil {
		return State{}, fmt.Errorf("load latest snapshot: %w", err)
	}
	return cm.resume(ctx, store, runID, info.Sequence, data, opts)
}

// ResumeFrom continues a run from the snapshot at sequence rather than the
// latest one. Snapshots after sequence are discarded first, so the history
// only ever describes the branch the run actually took.
func (cm *CompiledMachine) ResumeFrom(ctx Context, store snapshot.Store, runID string, sequence int, opts ...RunOption) (State, error) {
	if ctx == nil {
		return State{}, ErrNilContext
	}

	data, err := store.Load(runID, sequence)
	if errors.Is(err, snapshot.ErrNotFound) {
		return State{}, fmt.Errorf("%w: %s at sequence %d", ErrNoSnapshots, runID, sequence)
	}
	if err != nil {
		return State{}, fmt.Errorf("load snapshot: %w", err)
	}
	if err := store.DeleteAfter(runID, sequence); err != nil {
		return State{}, fmt.Errorf("truncate snapshots: %w", err)
	}
	return cm.resume(ctx, store, runID, sequence, data, opts)
}

func (cm *CompiledMachine) resume(ctx Context, store snapshot.Store, runID string, sequence int, data []byte, opts []RunOption) (State, error) {
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	if snap.Version != snapshot.Version {
		return State{}, fmt.Errorf("%w: got %d, expected %d",
			ErrSnapshotVersion, snap.Version, snapshot.Version)
	}

	var state State
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	start, err := ParseStage(snap.NextStage)
	if err != nil {
		return state, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	if start == Done {
		return state, nil
	}
	if !cm.HasStage(start) {
		return state, fmt.Errorf("%w: resume stage %s", ErrStageNotFound, start)
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.snapshots = store
	cfg.runID = runID
	cfg.sequence = sequence

	return cm.run(ctx, state, start, &cfg)
}
