package ragflow

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/newsrag/pkg/ragflow/observability"
	"github.com/randalmurphal/newsrag/pkg/ragflow/snapshot"
)

const (
	// DefaultMaxSteps caps stage executions per run. The longest legal path,
	// two reformulations with cleaning on every pass, takes 10 steps.
	DefaultMaxSteps = 20

	// MaxStepsLimit is the largest cap WithMaxSteps accepts.
	MaxStepsLimit = 1000
)

// runConfig holds configuration for a single run.
type runConfig struct {
	maxSteps int

	snapshots            snapshot.Store
	runID                string
	sequence             int
	snapshotFailureFatal bool

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	metricsEnabled bool
	spans          observability.SpanManager
	tracingEnabled bool
}

func defaultRunConfig() runConfig {
	return runConfig{
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxSteps sets the maximum number of stage executions.
// Default: DefaultMaxSteps.
//
// A run that would exceed the cap stops with *StepOverrunError carrying the
// partial state.
//
// Panics if n is not in (0, MaxStepsLimit].
func WithMaxSteps(n int) RunOption {
	if n <= 0 || n > MaxStepsLimit {
		panic(fmt.Sprintf("ragflow: max steps must be in (0, %d], got %d", MaxStepsLimit, n))
	}
	return func(c *runConfig) {
		c.maxSteps = n
	}
}

// WithSnapshots persists the state after every completed stage.
// Requires WithRunID.
//
//	store := snapshot.NewMemoryStore()
//	result, err := machine.Run(ctx, state,
//	    ragflow.WithSnapshots(store),
//	    ragflow.WithRunID("run-123"))
func WithSnapshots(store snapshot.Store) RunOption {
	return func(c *runConfig) {
		c.snapshots = store
	}
}

func withoutSnapshots() RunOption {
	return func(c *runConfig) {
		c.snapshots = nil
	}
}

// WithRunID sets the run identifier used for snapshots and observability.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithSnapshotFailureFatal makes a failed snapshot stop the run with
// *SnapshotError. By default failures are logged and the run continues.
func WithSnapshotFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.snapshotFailureFatal = fatal
	}
}

// WithObservabilityLogger sets the logger for run and stage lifecycle events.
// Default: slog.Default().
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		c.metricsEnabled = enabled
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder installs a specific recorder, mainly for tests.
func WithMetricsRecorder(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
			c.metricsEnabled = true
		}
	}
}

// WithTracing enables OpenTelemetry spans through the global tracer provider.
// Spans: ragflow.run > ragflow.stage.{name}.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpanManager installs a specific span manager, mainly for tests.
func WithSpanManager(m observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.spans = m
			c.tracingEnabled = true
		}
	}
}
