package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
	"github.com/randalmurphal/newsrag/pkg/ragflow/snapshot"
)

func newResumeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [run-id]",
		Short: "Resume an interrupted run from its latest snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE:  app.runResume,
	}
	cmd.Flags().Bool("list", false, "List runs with snapshots instead of resuming")
	return cmd
}

func (a *App) runResume(cmd *cobra.Command, args []string) error {
	list, _ := cmd.Flags().GetBool("list")
	if !list && len(args) == 0 {
		return exitError(exitUsage, "a run id or --list is required")
	}

	rt, err := a.runtime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if rt.Snapshots == nil {
		return exitError(exitConfig, "snapshots are disabled: set NEWSRAG_SNAPSHOT_PATH or pipeline.snapshot_path")
	}

	out := cmd.OutOrStdout()
	if list {
		return listRuns(cmd, rt.Snapshots)
	}

	runID := args[0]
	pipeline, err := a.pipeline(rt, a.settings.Pipeline.DisableFineTunedAnalyzer)
	if err != nil {
		return exitError(exitConfig, "building pipeline: %s", err)
	}

	rctx := ragflow.NewContext(cmd.Context(), ragflow.WithLogger(a.logger), ragflow.WithContextRunID(runID))
	state, err := pipeline.Resume(rctx, rt.Snapshots, runID, ragflow.WithRunID(runID))
	if errors.Is(err, ragflow.ErrNoSnapshots) {
		return exitError(exitUsage, "no snapshots for run %s", runID)
	}
	printResult(out, state)
	if err != nil {
		return exitError(exitFailure, "%s", err)
	}
	return nil
}

func listRuns(cmd *cobra.Command, store snapshot.Store) error {
	runs, err := store.Runs()
	if err != nil {
		return exitError(exitFailure, "listing runs: %s", err)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSNAPSHOTS\tLAST STAGE")
	for _, id := range runs {
		infos, err := store.List(id)
		if err != nil {
			return exitError(exitFailure, "listing %s: %s", id, err)
		}
		last := ""
		if len(infos) > 0 {
			last = infos[len(infos)-1].Stage
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", id, len(infos), last)
	}
	return w.Flush()
}
