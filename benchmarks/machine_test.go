package benchmarks

import (
	"context"
	"strings"
	"testing"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
)

// noopStage does minimal work to measure machine overhead.
func noopStage(_ ragflow.Context, s ragflow.State) (ragflow.State, error) {
	return s, nil
}

// BenchmarkNewMachine measures builder creation overhead.
func BenchmarkNewMachine(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ragflow.NewMachine()
	}
}

// BenchmarkCompile_Linear compiles a straight analyze-retrieve-answer machine.
func BenchmarkCompile_Linear(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = buildLinearMachine().Compile()
	}
}

// BenchmarkNewPipeline builds the full question-answering machine.
func BenchmarkNewPipeline(b *testing.B) {
	deps := benchDeps(shortDocs)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ragflow.NewPipeline(deps)
	}
}

// BenchmarkMermaid renders the compiled machine.
func BenchmarkMermaid(b *testing.B) {
	p := mustPipeline(benchDeps(shortDocs))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Machine().Mermaid()
	}
}

// BenchmarkRun_Linear runs a three-stage machine with no-op stages.
func BenchmarkRun_Linear(b *testing.B) {
	compiled, err := buildLinearMachine().Compile()
	if err != nil {
		b.Fatal(err)
	}
	ctx := ragflow.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, ragflow.NewState("q"))
	}
}

// BenchmarkContextCreation measures context creation overhead.
func BenchmarkContextCreation(b *testing.B) {
	bg := context.Background()
	for i := 0; i < b.N; i++ {
		ragflow.NewContext(bg)
	}
}

// Helper functions

var shortDocs = []ragflow.Document{
	{Content: "Colombia received the 2021 Earthshot prize.", Metadata: map[string]any{"title": "Earthshot"}},
	{Content: "The Protect and Restore Nature award went to Costa Rica.", Metadata: map[string]any{"title": "Prize"}},
}

// longDocs together exceed the cleaning threshold.
var longDocs = []ragflow.Document{
	{Content: strings.Repeat("forest restoration ", ragflow.CleaningThreshold/18+1), Metadata: map[string]any{"title": "Long"}},
}

func benchDeps(docs []ragflow.Document) ragflow.Dependencies {
	return ragflow.Dependencies{
		Store: ragflow.SearchFunc(func(context.Context, string, int) ([]ragflow.Document, error) {
			return docs, nil
		}),
		Completer: ragflow.CompleterFunc(func(context.Context, string, float64) (string, error) {
			return "Costa Rica", nil
		}),
		Generator: ragflow.GeneratorFunc(func(context.Context, string, int) (string, error) {
			return "earthshot 2021 protect restore nature", nil
		}),
	}
}

func mustPipeline(deps ragflow.Dependencies, opts ...ragflow.Option) *ragflow.Pipeline {
	p, err := ragflow.NewPipeline(deps, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func buildLinearMachine() *ragflow.Machine {
	return ragflow.NewMachine().
		AddStage(ragflow.Analyzing, noopStage).
		AddStage(ragflow.Retrieving, noopStage).
		AddStage(ragflow.Answering, noopStage).
		AddTransition(ragflow.Analyzing, ragflow.Retrieving).
		AddTransition(ragflow.Retrieving, ragflow.Answering).
		AddTransition(ragflow.Answering, ragflow.Done).
		SetEntry(ragflow.Analyzing)
}
