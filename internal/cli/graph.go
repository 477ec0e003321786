package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
)

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the state machine as a Mermaid diagram",
		Args:  cobra.NoArgs,
		RunE:  runGraph,
	}
}

// runGraph needs no backends: the topology does not depend on them.
func runGraph(cmd *cobra.Command, _ []string) error {
	p, err := ragflow.NewPipeline(ragflow.Dependencies{
		Store: ragflow.SearchFunc(func(context.Context, string, int) ([]ragflow.Document, error) {
			return nil, nil
		}),
		Completer: ragflow.CompleterFunc(func(context.Context, string, float64) (string, error) {
			return "", nil
		}),
	}, ragflow.WithFineTunedAnalyzerDisabled(true))
	if err != nil {
		return exitError(exitFailure, "building pipeline: %s", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), p.Machine().Mermaid())
	return nil
}
