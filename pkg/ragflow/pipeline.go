package ragflow

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/randalmurphal/newsrag/pkg/ragflow/snapshot"
)

// Dependencies are the collaborators a Pipeline is built from. Generator may
// be nil when the fine-tuned analyzer is disabled.
type Dependencies struct {
	Store     DocumentStore
	Completer Completer
	Generator Generator
}

type pipelineConfig struct {
	disableFineTuned   bool
	cleanerConcurrency int
	runOpts            []RunOption
}

// Option configures a Pipeline.
type Option func(*pipelineConfig)

// WithFineTunedAnalyzerDisabled makes the analyzer use the Completer.
func WithFineTunedAnalyzerDisabled(disabled bool) Option {
	return func(c *pipelineConfig) {
		c.disableFineTuned = disabled
	}
}

// WithCleanerConcurrency bounds parallel document cleaning.
func WithCleanerConcurrency(n int) Option {
	return func(c *pipelineConfig) {
		c.cleanerConcurrency = n
	}
}

// WithRunOptions sets run options applied to every Ask, before the
// per-call options.
func WithRunOptions(opts ...RunOption) Option {
	return func(c *pipelineConfig) {
		c.runOpts = append(c.runOpts, opts...)
	}
}

// Pipeline is the assembled question-answering machine. It is immutable and
// safe for concurrent use; every Ask builds its own State.
type Pipeline struct {
	machine  *CompiledMachine
	analyzer *QueryAnalyzer
	runOpts  []RunOption
}

// NewPipeline wires the six stages and three gates into a compiled machine.
func NewPipeline(deps Dependencies, opts ...Option) (*Pipeline, error) {
	var cfg pipelineConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	analyzer, err := NewQueryAnalyzer(deps.Completer, deps.Generator, cfg.disableFineTuned)
	if err != nil {
		return nil, err
	}
	retriever, err := NewRetriever(deps.Store)
	if err != nil {
		return nil, fmt.Errorf("retriever: %w", err)
	}
	cleaner, err := NewDocumentCleaner(deps.Completer, cfg.cleanerConcurrency)
	if err != nil {
		return nil, fmt.Errorf("cleaner: %w", err)
	}
	evaluator, err := NewRelevanceEvaluator(deps.Completer)
	if err != nil {
		return nil, fmt.Errorf("evaluator: %w", err)
	}
	reformulator, err := NewReformulator(deps.Completer)
	if err != nil {
		return nil, fmt.Errorf("reformulator: %w", err)
	}
	answerer, err := NewAnswerGenerator(deps.Completer)
	if err != nil {
		return nil, fmt.Errorf("answer generator: %w", err)
	}

	machine, err := NewMachine().
		AddStage(Analyzing, analyzer.Run).
		AddStage(Retrieving, retriever.Run).
		AddStage(Cleaning, cleaner.Run).
		AddStage(Evaluating, evaluator.Run).
		AddStage(Reformulating, reformulator.Run).
		AddStage(Answering, answerer.Run).
		AddTransition(Analyzing, Retrieving).
		AddRoute(Retrieving, routeRetrieval, Cleaning, Evaluating).
		AddTransition(Cleaning, Evaluating).
		AddRoute(Evaluating, routeEvaluation, Answering, Reformulating).
		AddRoute(Reformulating, routeReformulation, Retrieving, Answering).
		AddTransition(Answering, Done).
		SetEntry(Analyzing).
		Compile()
	if err != nil {
		return nil, fmt.Errorf("compile machine: %w", err)
	}

	return &Pipeline{
		machine:  machine,
		analyzer: analyzer,
		runOpts:  cfg.runOpts,
	}, nil
}

// Machine exposes the compiled machine for introspection and diagrams.
func (p *Pipeline) Machine() *CompiledMachine {
	return p.machine
}

// FineTuned reports whether the analyzer uses the fine-tuned generator.
func (p *Pipeline) FineTuned() bool {
	return p.analyzer.FineTuned()
}

// Run executes the machine for query without host-level recovery.
func (p *Pipeline) Run(ctx Context, query string, opts ...RunOption) (State, error) {
	return p.machine.Run(ctx, NewState(query), p.options(opts)...)
}

// Ask answers query. The returned state always carries a non-empty Answer:
//   - a step overrun with retrieved or cleaned documents is answered from
//     the partial state
//   - any other failure yields FailureAnswer
//
// The underlying error is still returned for logging.
func (p *Pipeline) Ask(ctx Context, query string, opts ...RunOption) (State, error) {
	result, err := p.Run(ctx, query, opts...)
	return p.recover(ctx, NewState(query), result, err, opts)
}

// Resume continues an interrupted run with the same recovery as Ask.
func (p *Pipeline) Resume(ctx Context, store snapshot.Store, runID string, opts ...RunOption) (State, error) {
	result, err := p.machine.Resume(ctx, store, runID, p.options(opts)...)
	return p.recover(ctx, result, result, err, opts)
}

func (p *Pipeline) options(opts []RunOption) []RunOption {
	all := make([]RunOption, 0, len(p.runOpts)+len(opts))
	all = append(all, p.runOpts...)
	return append(all, opts...)
}

// recover applies host-level recovery. fallback is used when the run
// returned no usable state.
//
// The emergency answer re-enters the machine at Answering with the caller's
// options but without snapshots, so the overrun run's history is left as is.
func (p *Pipeline) recover(ctx Context, fallback, result State, err error, opts []RunOption) (State, error) {
	if err == nil {
		return result, nil
	}

	var overrun *StepOverrunError
	if errors.As(err, &overrun) && overrun.State.HasPartialDocuments() {
		partial := overrun.State.Clone()
		partial.record("Step limit reached, generating emergency answer")
		answerOpts := append(p.options(opts), withoutSnapshots())
		answered, answerErr := p.machine.RunFrom(ctx, partial, Answering, answerOpts...)
		if answerErr == nil {
			ctx.Logger().Warn("step limit reached, answered from partial state",
				"max_steps", overrun.Max,
				"next_stage", overrun.Next.String(),
			)
			return answered, err
		}
		err = errors.Join(err, answerErr)
	}

	failed := result
	if failed.Query == "" {
		failed = fallback
	}
	failed = failed.Clone()
	if failed.IntermediateSteps == nil {
		failed.IntermediateSteps = []string{}
	}
	failed.Answer = FailureAnswer(err)
	failed.record("Error: %s", err.Error())
	return failed, err
}

// maxDiagnosticRunes bounds the error text shown to the user.
const maxDiagnosticRunes = 100

// FailureAnswer is the user-facing answer for an unrecoverable run.
func FailureAnswer(err error) string {
	msg := err.Error()
	if utf8.RuneCountInString(msg) > maxDiagnosticRunes {
		msg = string([]rune(msg)[:maxDiagnosticRunes])
	}
	return fmt.Sprintf("An error occurred while processing your query. Please try a more specific or different query.\nError details: %s...", msg)
}
