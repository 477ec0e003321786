package ragflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/randalmurphal/newsrag/pkg/ragflow/observability"
	"github.com/randalmurphal/newsrag/pkg/ragflow/snapshot"
)

// Run executes the machine from its entry stage until Done.
//
// On success it returns the state produced by the last stage. On error it
// returns the state at the point of failure:
//   - *StageError wrapping the stage's error (a *CollaboratorError for
//     backend failures)
//   - *PanicError when a stage panics
//   - *RouteError when a route returns an undeclared stage
//   - *CancellationError when ctx is done before a stage starts
//   - *StepOverrunError when the step cap fires
//
// Example:
//
//	ctx := ragflow.NewContext(context.Background())
//	result, err := compiled.Run(ctx, ragflow.NewState(question))
func (cm *CompiledMachine) Run(ctx Context, state State, opts ...RunOption) (State, error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cm.run(ctx, state, cm.entry, &cfg)
}

// RunFrom executes the machine starting at stage instead of the entry.
// Used to re-enter a run with a hand-built state; Pipeline.Ask answers from
// the partial state of a step overrun this way.
func (cm *CompiledMachine) RunFrom(ctx Context, state State, stage Stage, opts ...RunOption) (State, error) {
	if ctx == nil {
		return state, ErrNilContext
	}
	if stage == Done {
		return state, nil
	}
	if !cm.HasStage(stage) {
		return state, fmt.Errorf("%w: %s", ErrStageNotFound, stage)
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cm.run(ctx, state, stage, &cfg)
}

// run wraps the stage loop with run-level logging, metrics and tracing.
func (cm *CompiledMachine) run(ctx Context, state State, start Stage, cfg *runConfig) (result State, runErr error) {
	if cfg.snapshots != nil && cfg.runID == "" {
		return state, ErrRunIDRequired
	}

	ec := asExecutionContext(ctx)
	if cfg.runID == "" {
		cfg.runID = ec.RunID()
	} else if cfg.runID != ec.runID {
		ec = &executionContext{Context: ec.Context, logger: ec.logger, runID: cfg.runID, stage: ec.stage}
	}

	elapsed := observability.TimedOperation()
	startTime := time.Now()
	observability.LogRunStart(cfg.logger, cfg.runID, state.Query)

	spanCtx, runSpan := cfg.spans.StartRunSpan(ec, "ragflow", cfg.runID)
	defer func() {
		cfg.spans.EndSpanWithError(runSpan, runErr)
	}()

	var steps int
	var last Stage
	result, steps, last, runErr = cm.loop(spanCtx, ec, state, start, cfg)

	cfg.metrics.RecordRun(ec, runErr == nil, time.Since(startTime), result.ReformulationCount)

	if runErr != nil {
		observability.LogRunError(cfg.logger, cfg.runID, runErr, elapsed(), last.String())
	} else {
		observability.LogRunComplete(cfg.logger, cfg.runID, elapsed(), steps, result.ReformulationCount)
	}
	return result, runErr
}

// loop executes stages starting at start. tracingCtx carries span context;
// ec carries run metadata. Returns the final state, the number of stages
// executed and the stage that was current when the loop stopped.
func (cm *CompiledMachine) loop(tracingCtx context.Context, ec *executionContext, state State, start Stage, cfg *runConfig) (State, int, Stage, error) {
	current := start
	var prev Stage
	steps := 0

	for current != Done {
		if steps >= cfg.maxSteps {
			return state, steps, current, &StepOverrunError{
				Max:   cfg.maxSteps,
				Next:  current,
				State: state,
			}
		}

		select {
		case <-ec.Done():
			return state, steps, current, &CancellationError{
				Stage: current,
				State: state,
				Cause: ec.Err(),
			}
		default:
		}

		name := current.String()
		observability.LogStageStart(cfg.logger, name)

		stageSpanCtx, span := cfg.spans.StartStageSpan(tracingCtx, name)
		stageCtx := ec.withStage(current).withTracing(stageSpanCtx)

		stageStart := time.Now()
		next, err := cm.execute(stageCtx, current, state)
		duration := time.Since(stageStart)

		cfg.metrics.RecordStage(stageSpanCtx, name, duration, err)
		cfg.spans.EndSpanWithError(span, err)

		if err != nil {
			observability.LogStageError(cfg.logger, name, err)
			return next, steps, current, err
		}
		observability.LogStageComplete(cfg.logger, name, float64(duration.Milliseconds()))
		state = next
		steps++

		if current == Evaluating && state.ConfidenceScore != nil {
			cfg.metrics.RecordConfidence(stageSpanCtx, *state.ConfidenceScore)
		}

		to, err := cm.next(current, state)
		if err != nil {
			return state, steps, current, err
		}
		if cm.IsRouted(current) {
			observability.LogRoute(cfg.logger, name, to.String())
			cfg.metrics.RecordRoute(stageSpanCtx, name, to.String())
		}

		if cfg.snapshots != nil {
			if err := cm.saveSnapshot(stageSpanCtx, cfg, current, prev, to, state); err != nil {
				return state, steps, current, err
			}
		}

		prev = current
		current = to
	}

	return state, steps, Done, nil
}

// execute runs one stage with panic recovery. On failure the input state is
// returned unchanged.
func (cm *CompiledMachine) execute(ctx *executionContext, stage Stage, state State) (result State, err error) {
	fn, ok := cm.stages[stage]
	if !ok {
		return state, &StageError{Stage: stage, Op: "lookup", Err: ErrStageNotFound}
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				Stage: stage,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	out, err := fn(ctx, state)
	if err != nil {
		return state, &StageError{Stage: stage, Op: "execute", Err: err}
	}
	return out, nil
}

// next resolves the stage that follows current.
func (cm *CompiledMachine) next(current Stage, state State) (Stage, error) {
	if r, ok := cm.routes[current]; ok {
		to := r.fn(state)
		if !slices.Contains(r.targets, to) {
			return 0, &RouteError{From: current, Returned: to, Err: ErrUndeclaredRoute}
		}
		return to, nil
	}
	if to, ok := cm.transitions[current]; ok {
		return to, nil
	}
	return 0, &StageError{Stage: current, Op: "route", Err: ErrNoOutgoing}
}

// saveSnapshot persists the state after a completed stage. Failures are
// logged and swallowed unless WithSnapshotFailureFatal is set.
func (cm *CompiledMachine) saveSnapshot(ctx context.Context, cfg *runConfig, stage, prev, next Stage, state State) error {
	fail := func(op string, err error) error {
		if cfg.snapshotFailureFatal {
			return &SnapshotError{Stage: stage, Op: op, Err: err}
		}
		observability.LogSnapshotError(cfg.logger, stage.String(), op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", err)
	}

	cfg.sequence++
	snap := snapshot.New(cfg.runID, stage.String(), cfg.sequence, stateBytes, next.String())
	if prev.Valid() {
		snap = snap.WithPrevStage(prev.String())
	}

	data, err := snap.Marshal()
	if err != nil {
		return fail("marshal", err)
	}
	if err := cfg.snapshots.Save(cfg.runID, cfg.sequence, stage.String(), data); err != nil {
		return fail("save", err)
	}

	observability.LogSnapshot(cfg.logger, stage.String(), cfg.sequence, len(data))
	cfg.metrics.RecordSnapshot(ctx, stage.String(), int64(len(data)))
	return nil
}

// FailedStage extracts the stage an execution error is attributed to.
// Returns false for errors that did not come from a run.
func FailedStage(err error) (Stage, bool) {
	var (
		stageErr  *StageError
		panicErr  *PanicError
		routeErr  *RouteError
		cancelErr *CancellationError
		overrun   *StepOverrunError
		snapErr   *SnapshotError
	)
	switch {
	case errors.As(err, &stageErr):
		return stageErr.Stage, true
	case errors.As(err, &panicErr):
		return panicErr.Stage, true
	case errors.As(err, &routeErr):
		return routeErr.From, true
	case errors.As(err, &cancelErr):
		return cancelErr.Stage, true
	case errors.As(err, &overrun):
		return overrun.Next, true
	case errors.As(err, &snapErr):
		return snapErr.Stage, true
	}
	return 0, false
}
