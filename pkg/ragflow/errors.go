package ragflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for building and compiling a machine.
var (
	// ErrNoEntry indicates SetEntry was not called before Compile.
	ErrNoEntry = errors.New("entry stage not set")

	// ErrEntryNotFound indicates the entry stage has no registered function.
	ErrEntryNotFound = errors.New("entry stage not registered")

	// ErrStageNotFound indicates a transition or route references an
	// unregistered stage.
	ErrStageNotFound = errors.New("stage not registered")

	// ErrNoOutgoing indicates a registered stage has neither a transition nor a route.
	ErrNoOutgoing = errors.New("stage has no outgoing transition")

	// ErrAmbiguousTransition indicates a stage has more than one outgoing
	// transition, or both a transition and a route.
	ErrAmbiguousTransition = errors.New("stage has more than one outgoing transition")

	// ErrNoPathToDone indicates Done cannot be reached from the entry stage.
	ErrNoPathToDone = errors.New("no path to done from entry")

	// ErrUnknownStage indicates a value outside the Stage enum.
	ErrUnknownStage = errors.New("unknown stage")
)

// Sentinel errors for execution.
var (
	// ErrStepOverrun indicates the run exceeded its step cap.
	ErrStepOverrun = errors.New("exceeded maximum steps")

	// ErrNilContext indicates Run was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrUndeclaredRoute indicates a route function returned a stage that was
	// not declared as one of its targets.
	ErrUndeclaredRoute = errors.New("route returned undeclared stage")
)

// Sentinel errors for snapshots and resume.
var (
	// ErrRunIDRequired indicates snapshots were enabled without a run ID.
	ErrRunIDRequired = errors.New("run ID required for snapshots")

	// ErrNoSnapshots indicates no snapshots exist for the run.
	ErrNoSnapshots = errors.New("no snapshots found for run")

	// ErrDeserializeState indicates snapshot decoding failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrSnapshotVersion indicates the snapshot format is incompatible.
	ErrSnapshotVersion = errors.New("snapshot version mismatch")
)

// Sentinel errors raised by stages.
var (
	// ErrEmptyQuery indicates the retriever had no usable query. It is
	// recovered inside the retriever and only ever logged.
	ErrEmptyQuery = errors.New("no usable query for retrieval")

	// ErrMalformedScoring indicates the relevance scoring response could not
	// be interpreted. It is recovered inside the evaluator.
	ErrMalformedScoring = errors.New("malformed scoring response")

	// ErrMissingCollaborator indicates a stage was built without a
	// collaborator it needs.
	ErrMissingCollaborator = errors.New("missing collaborator")
)

// StageError wraps an error with the stage that produced it.
type StageError struct {
	// Stage is the stage that failed.
	Stage Stage
	// Op is the operation that failed ("execute", "route").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// CollaboratorError reports a failed call to a document store, completion
// or generation backend. Stages never recover from it.
type CollaboratorError struct {
	Stage Stage
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Stage, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised inside a stage.
type PanicError struct {
	// Stage is the stage that panicked.
	Stage Stage
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.Stage, e.Value)
}

// CancellationError preserves the state at the point a run was cancelled.
type CancellationError struct {
	// Stage is the stage that was about to run.
	Stage Stage
	// State is the state at cancellation.
	State State
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before stage %s: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouteError reports a route function returning a stage it did not declare.
type RouteError struct {
	From     Stage
	Returned Stage
	Err      error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	return fmt.Sprintf("route from %s returned %s: %v", e.From, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouteError) Unwrap() error {
	return e.Err
}

// StepOverrunError is returned when a run exceeds its step cap.
// State holds the partial state so the caller can still produce an answer.
type StepOverrunError struct {
	// Max is the configured step cap.
	Max int
	// Next is the stage that would have run.
	Next Stage
	// State is the state when the cap fired.
	State State
}

// Error implements the error interface.
func (e *StepOverrunError) Error() string {
	return fmt.Sprintf("exceeded maximum steps (%d) before stage %s", e.Max, e.Next)
}

// Unwrap returns ErrStepOverrun for errors.Is support.
func (e *StepOverrunError) Unwrap() error {
	return ErrStepOverrun
}

// SnapshotError wraps a failure to persist a snapshot.
type SnapshotError struct {
	Stage Stage
	// Op is "serialize" or "save".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot %s after stage %s: %v", e.Op, e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// MalformedScoringError describes a scoring response that could not be parsed.
type MalformedScoringError struct {
	// Response is the raw collaborator output, truncated for logging.
	Response string
	Err      error
}

// Error implements the error interface.
func (e *MalformedScoringError) Error() string {
	return fmt.Sprintf("malformed scoring response %q: %v", e.Response, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *MalformedScoringError) Unwrap() error {
	return e.Err
}

// Is matches ErrMalformedScoring.
func (e *MalformedScoringError) Is(target error) bool {
	return target == ErrMalformedScoring
}
