package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
)

// TestQuery is answered by ask --test.
const TestQuery = "Who represented his/her country to receive the 2021 winner of the Earthshot Protect and Restore Nature Award?"

func newAskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question and print the processing steps",
		Args:  cobra.MaximumNArgs(1),
		RunE:  app.runAsk,
	}
	cmd.Flags().Bool("test", false, "Answer the built-in test query")
	cmd.Flags().BoolP("interactive", "i", false, "Read questions from stdin until 'exit'")
	return cmd
}

func (a *App) runAsk(cmd *cobra.Command, args []string) error {
	test, _ := cmd.Flags().GetBool("test")
	interactive, _ := cmd.Flags().GetBool("interactive")

	var question string
	switch {
	case len(args) == 1:
		question = args[0]
	case test:
		question = TestQuery
	case !interactive:
		return exitError(exitUsage, "a question, --test or --interactive is required")
	}

	rt, err := a.runtime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	pipeline, err := a.pipeline(rt, a.settings.Pipeline.DisableFineTunedAnalyzer)
	if err != nil {
		return exitError(exitConfig, "building pipeline: %s", err)
	}

	out := cmd.OutOrStdout()
	if question != "" {
		if err := a.answer(cmd.Context(), out, pipeline, rt, question); err != nil && !interactive {
			return exitError(exitFailure, "%s", err)
		}
	}
	if !interactive {
		return nil
	}
	return a.interactive(cmd.Context(), cmd.InOrStdin(), out, pipeline, rt)
}

func (a *App) interactive(ctx context.Context, in io.Reader, out io.Writer, p *ragflow.Pipeline, rt *Runtime) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nQuestion (type 'exit' to quit): ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(q) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		// Failures are already reflected in the printed answer.
		_ = a.answer(ctx, out, p, rt, q)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// answer runs one question and prints the result. The returned error is
// for the exit status only.
func (a *App) answer(ctx context.Context, out io.Writer, p *ragflow.Pipeline, rt *Runtime, question string) error {
	runID := uuid.NewString()
	rctx := ragflow.NewContext(ctx, ragflow.WithLogger(a.logger), ragflow.WithContextRunID(runID))

	state, err := p.Ask(rctx, question, ragflow.WithRunID(runID))
	if err != nil {
		a.logger.Error("query failed", "run_id", runID, "error", err)
	}
	printResult(out, state)
	if rt.Snapshots != nil {
		fmt.Fprintf(out, "Run ID: %s\n", runID)
	}
	return err
}

func printResult(out io.Writer, s ragflow.State) {
	fmt.Fprintf(out, "Query: %s\n", s.Query)
	fmt.Fprintf(out, "Answer: %s\n", s.Answer)
	fmt.Fprintln(out, "Processing Steps:")
	for _, step := range s.IntermediateSteps {
		fmt.Fprintf(out, "- %s\n", step)
	}
}
