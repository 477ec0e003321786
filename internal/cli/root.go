// Package cli implements the newsrag command tree.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/newsrag/internal/telemetry"
	"github.com/randalmurphal/newsrag/pkg/ragflow"
	"github.com/randalmurphal/newsrag/pkg/ragflow/config"
)

// telemetryInit installs telemetry providers; telemetry.Init in production.
type telemetryInit func(context.Context, telemetry.Config) (*telemetry.Providers, telemetry.ShutdownFunc, error)

// App is the state shared by all subcommands of one invocation.
type App struct {
	build         Builder
	initTelemetry telemetryInit
	settings      config.Settings
	logger        *slog.Logger
	shutdown      telemetry.ShutdownFunc
}

// NewRootCmd builds the command tree. A nil build uses BuildRuntime.
func NewRootCmd(build Builder) *cobra.Command {
	if build == nil {
		build = BuildRuntime
	}
	return newRootCmd(&App{build: build, initTelemetry: telemetry.Init, logger: slog.Default()})
}

func newRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "newsrag",
		Short: "Multi-step retrieval-augmented question answering over news",
		Long: "newsrag answers questions over a news corpus with a query analyzer, " +
			"retrieval, cleaning, relevance evaluation and query reformulation.",
		SilenceUsage:      true,
		PersistentPreRunE: app.setup,
	}

	root.PersistentFlags().String("config", "", "Path to a YAML or JSON config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	root.PersistentFlags().Bool("disable-fine-tuned-analyzer", false, "Analyze queries with the general model instead of the fine-tuned one")

	root.AddCommand(newAskCmd(app))
	root.AddCommand(newEvaluateCmd(app))
	root.AddCommand(newGraphCmd())
	root.AddCommand(newResumeCmd(app))

	// cobra skips post-run hooks when RunE fails, so telemetry is flushed
	// from the RunE itself.
	for _, cmd := range root.Commands() {
		if cmd.RunE != nil {
			cmd.RunE = app.withTeardown(cmd.RunE)
		}
	}
	return root
}

func (a *App) setup(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	s, err := config.Load(path)
	if err != nil {
		return exitError(exitConfig, "loading config: %s", err)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		s.Telemetry.LogLevel = "debug"
	}
	if disabled, _ := cmd.Flags().GetBool("disable-fine-tuned-analyzer"); disabled {
		s.Pipeline.DisableFineTunedAnalyzer = true
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	_, shutdown, err := a.initTelemetry(ctx, telemetry.Config{
		ServiceName: s.Telemetry.ServiceName,
		Endpoint:    s.Telemetry.OTLPEndpoint,
		Tracing:     s.Telemetry.TracingEnabled,
		Metrics:     s.Telemetry.MetricsEnabled,
	})
	if err != nil {
		return exitError(exitConfig, "telemetry: %s", err)
	}

	a.settings = s
	a.shutdown = shutdown
	a.logger = telemetry.NewLogger(cmd.ErrOrStderr(), telemetry.LoggerConfig{
		ServiceName: s.Telemetry.ServiceName,
		Level:       s.Telemetry.LogLevel,
		Format:      s.Telemetry.LogFormat,
		OTel:        s.Telemetry.OTLPEndpoint != "",
	})
	return nil
}

// withTeardown runs run and then flushes telemetry, whether or not run
// failed.
func (a *App) withTeardown(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.teardown(cmd.Context())
		return run(cmd, args)
	}
}

func (a *App) teardown(ctx context.Context) {
	if a.shutdown == nil {
		return
	}
	shutdown := a.shutdown
	a.shutdown = nil

	if ctx == nil {
		ctx = context.Background()
	}
	// An interrupted run still gets its spans and metrics exported.
	if err := shutdown(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

func (a *App) runtime(cmd *cobra.Command) (*Runtime, error) {
	rt, err := a.build(cmd.Context(), a.settings, a.logger)
	if err != nil {
		return nil, exitError(exitConfig, "initializing: %s", err)
	}
	return rt, nil
}

// pipeline assembles a Pipeline from rt with the configured run options.
func (a *App) pipeline(rt *Runtime, disableFineTuned bool) (*ragflow.Pipeline, error) {
	s := a.settings
	runOpts := []ragflow.RunOption{
		ragflow.WithMaxSteps(s.Pipeline.MaxSteps),
		ragflow.WithObservabilityLogger(a.logger),
		ragflow.WithMetrics(s.Telemetry.MetricsEnabled),
		ragflow.WithTracing(s.Telemetry.TracingEnabled),
	}
	if rt.Snapshots != nil {
		runOpts = append(runOpts, ragflow.WithSnapshots(rt.Snapshots))
	}
	return ragflow.NewPipeline(rt.Deps,
		ragflow.WithFineTunedAnalyzerDisabled(disableFineTuned),
		ragflow.WithCleanerConcurrency(s.Pipeline.CleanerConcurrency),
		ragflow.WithRunOptions(runOpts...),
	)
}
