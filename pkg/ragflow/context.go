package ragflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context is handed to every stage. It extends context.Context with the run
// logger and run metadata.
//
// The executor derives a new Context per stage; the logger it returns is
// already enriched with run_id and stage.
type Context interface {
	context.Context

	// Logger never returns nil.
	Logger() *slog.Logger

	// RunID identifies the run. Generated when not configured.
	RunID() string

	// Stage is the stage currently executing, zero outside a stage.
	Stage() Stage
}

type executionContext struct {
	context.Context

	logger *slog.Logger
	runID  string
	stage  Stage
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }
func (c *executionContext) RunID() string        { return c.runID }
func (c *executionContext) Stage() Stage         { return c.stage }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger stages log through.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier. For snapshots use the
// WithRunID run option instead.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext wraps ctx for use with a machine.
//
//	ctx := ragflow.NewContext(context.Background(),
//	    ragflow.WithLogger(logger),
//	    ragflow.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// withStage derives the per-stage context.
func (c *executionContext) withStage(stage Stage) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger:  c.logger.With("run_id", c.runID, "stage", stage.String()),
		runID:   c.runID,
		stage:   stage,
	}
}

// withTracing swaps the embedded context, keeping the metadata. Used to
// carry span context into stages.
func (c *executionContext) withTracing(ctx context.Context) *executionContext {
	return &executionContext{
		Context: ctx,
		logger:  c.logger,
		runID:   c.runID,
		stage:   c.stage,
	}
}

// asExecutionContext adapts any Context into the internal implementation.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	logger := ctx.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return &executionContext{
		Context: ctx,
		logger:  logger,
		runID:   ctx.RunID(),
		stage:   ctx.Stage(),
	}
}
