package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
	"github.com/randalmurphal/newsrag/pkg/ragflow/evaluation"
)

func newEvaluateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Benchmark four configurations on the fixed question set",
		Args:  cobra.NoArgs,
		RunE:  app.runEvaluate,
	}
	cmd.Flags().StringP("output", "o", "", "Report path (default from config: evaluation_results.json)")
	return cmd
}

func (a *App) runEvaluate(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = a.settings.Evaluation.Output
	}

	rt, err := a.runtime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	s := a.settings
	harness, err := evaluation.NewHarness(rt.Deps,
		evaluation.WithConcurrency(s.Evaluation.Concurrency),
		evaluation.WithLogger(a.logger),
		evaluation.WithPipelineOptions(
			ragflow.WithCleanerConcurrency(s.Pipeline.CleanerConcurrency),
			ragflow.WithRunOptions(
				ragflow.WithMaxSteps(s.Pipeline.MaxSteps),
				ragflow.WithObservabilityLogger(a.logger),
				ragflow.WithMetrics(s.Telemetry.MetricsEnabled),
				ragflow.WithTracing(s.Telemetry.TracingEnabled),
			),
		),
	)
	if err != nil {
		return exitError(exitConfig, "building harness: %s", err)
	}

	report, runErr := harness.Run(cmd.Context())
	if err := evaluation.Save(output, report); err != nil {
		return exitError(exitFailure, "saving report: %s", err)
	}
	if runErr != nil {
		return exitError(exitFailure, "evaluation interrupted, partial report saved to %s: %s", output, runErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Evaluation completed. Results saved to %s\n", output)
	return nil
}
