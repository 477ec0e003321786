/*
Package ragflow answers questions over a news corpus with a multi-step
retrieval-augmented generation machine.

# Overview

A run threads one State through a fixed set of stages:

	Analyzing -> Retrieving -> [cleaning gate] -> (Cleaning ->) Evaluating
	  -> [confidence gate] -> Answering -> Done
	                        -> Reformulating -> [reformulation gate]
	                             -> Retrieving | Answering

Stages call three collaborators: a DocumentStore for nearest-neighbour
search, a Completer for general text completion and, for query analysis, a
fine-tuned Generator. Gates are pure functions of the state.

# Basic Usage

	pipeline, err := ragflow.NewPipeline(ragflow.Dependencies{
	    Store:     store,
	    Completer: completer,
	    Generator: generator,
	})
	if err != nil {
	    log.Fatal(err)
	}

	ctx := ragflow.NewContext(context.Background())
	result, err := pipeline.Ask(ctx, "Who won the 2021 Earthshot Prize?")
	if err != nil {
	    slog.Warn("run failed", "error", err) // result.Answer is still set
	}
	fmt.Println(result.Answer)

Ask always returns an answer. Run returns the raw machine result.

# Reformulation

When the confidence gate sees a low score it sends the run to the
Reformulator, which rewrites the search query and clears all document sets
before looping back to retrieval. MaxReformulations bounds the loop; the
step cap (WithMaxSteps, default 20) is a second, structural bound.

# Custom Machines

The machine is an ordinary builder and can be assembled by hand, e.g. to
drop the cleaning stage in tests:

	m, err := ragflow.NewMachine().
	    AddStage(ragflow.Retrieving, retriever.Run).
	    AddStage(ragflow.Answering, answerer.Run).
	    AddTransition(ragflow.Retrieving, ragflow.Answering).
	    AddTransition(ragflow.Answering, ragflow.Done).
	    SetEntry(ragflow.Retrieving).
	    Compile()

Route functions declare their targets; returning anything else fails the run
with *RouteError.

# Snapshots

	store, _ := snapshot.NewSQLiteStore("./snapshots.db")
	defer store.Close()

	result, err := pipeline.Ask(ctx, question,
	    ragflow.WithSnapshots(store),
	    ragflow.WithRunID("run-123"))

	// After a crash
	result, err = pipeline.Resume(ctx, store, "run-123")

A snapshot is written after every completed stage, keyed by run ID and
sequence, so revisited stages keep their history.

# Observability

	result, err := pipeline.Ask(ctx, question,
	    ragflow.WithObservabilityLogger(logger),
	    ragflow.WithMetrics(true),
	    ragflow.WithTracing(true))

Spans: ragflow.run > ragflow.stage.{name}. Metrics cover stage latency, run
outcome, route decisions, confidence and snapshot size.

# Thread Safety

Machine is not safe for concurrent use during construction. CompiledMachine
and Pipeline are immutable and safe for concurrent runs.
*/
package ragflow
