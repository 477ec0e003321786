// Package evaluation benchmarks the question-answering pipeline against a
// plain completion and a single-pass retrieval baseline.
//
// Four configurations answer the same fixed questions:
//
//	base_llm                completion only
//	simple_rag              one search, one prompt
//	advanced_rag_base       the pipeline without the fine-tuned analyzer
//	advanced_rag_finetuned  the pipeline with it
//
// The two pipeline configurations run concurrently.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
)

// Configuration names, also the top-level keys of a Report.
const (
	BaseLLM              = "base_llm"
	SimpleRAG            = "simple_rag"
	AdvancedRAGBase      = "advanced_rag_base"
	AdvancedRAGFineTuned = "advanced_rag_finetuned"
)

// Configurations lists every configuration in run order.
var Configurations = []string{BaseLLM, SimpleRAG, AdvancedRAGBase, AdvancedRAGFineTuned}

// Questions is the fixed benchmark set.
var Questions = []string{
	"What are the environmental policy challenges for the UK government after October 2021?",
	"How have recent European Union regulations affected biodiversity conservation since 2022?",
	"What are the latest global responses to deforestation in the Amazon rainforest post-2021?",
	"How has the transition to renewable energy progressed in China since 2022?",
	"What are the worst hurricanes and extreme weather events in North America since 2022?",
	"Who represented his/her country to receive the 2021 winner of the earthshot protect and restore nature award?",
	"What are the latest developments in carbon capture and storage (CCS) technologies after 2021?",
	"How has the EU's Green Deal evolved after 2021, and what new initiatives have been introduced?",
}

// Result is one answered question.
type Result struct {
	Answer string `json:"answer"`
	// TimeTaken is wall time in seconds.
	TimeTaken float64  `json:"time_taken"`
	Steps     []string `json:"steps,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Report maps configuration to question to result.
type Report map[string]map[string]Result

// baselineTemperature is used for both baselines.
const baselineTemperature = 0

// Harness runs the benchmark.
type Harness struct {
	deps        ragflow.Dependencies
	questions   []string
	concurrency int
	pipelineOps []ragflow.Option
	logger      *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithQuestions replaces the fixed question set.
func WithQuestions(questions ...string) Option {
	return func(h *Harness) { h.questions = questions }
}

// WithConcurrency bounds how many pipeline configurations run at once.
func WithConcurrency(n int) Option {
	return func(h *Harness) { h.concurrency = n }
}

// WithPipelineOptions are applied to both pipeline configurations.
func WithPipelineOptions(opts ...ragflow.Option) Option {
	return func(h *Harness) { h.pipelineOps = append(h.pipelineOps, opts...) }
}

// WithLogger sets the progress logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHarness creates a harness. deps.Generator may be nil, in which case
// advanced_rag_finetuned is skipped.
func NewHarness(deps ragflow.Dependencies, opts ...Option) (*Harness, error) {
	if deps.Store == nil || deps.Completer == nil {
		return nil, ragflow.ErrMissingCollaborator
	}
	h := &Harness{
		deps:        deps,
		questions:   Questions,
		concurrency: 2,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.concurrency < 1 {
		h.concurrency = 1
	}
	return h, nil
}

// Run answers every question under every configuration. Per-question
// failures are recorded in the Result; only cancellation aborts the run.
func (h *Harness) Run(ctx context.Context) (Report, error) {
	report := Report{}

	h.logger.Info("evaluating configuration", "config", BaseLLM)
	report[BaseLLM] = h.each(ctx, BaseLLM, h.baseLLM)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	h.logger.Info("evaluating configuration", "config", SimpleRAG)
	report[SimpleRAG] = h.each(ctx, SimpleRAG, h.simpleRAG)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	type variant struct {
		name     string
		disabled bool
	}
	variants := []variant{{AdvancedRAGBase, true}}
	if h.deps.Generator != nil {
		variants = append(variants, variant{AdvancedRAGFineTuned, false})
	} else {
		h.logger.Warn("no fine-tuned generator, skipping configuration", "config", AdvancedRAGFineTuned)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for _, v := range variants {
		opts := append([]ragflow.Option{ragflow.WithFineTunedAnalyzerDisabled(v.disabled)}, h.pipelineOps...)
		pipeline, err := ragflow.NewPipeline(h.deps, opts...)
		if err != nil {
			_ = g.Wait()
			return report, fmt.Errorf("%s: %w", v.name, err)
		}
		g.Go(func() error {
			h.logger.Info("evaluating configuration", "config", v.name)
			res := h.each(gctx, v.name, h.advanced(pipeline))
			mu.Lock()
			report[v.name] = res
			mu.Unlock()
			return gctx.Err()
		})
	}
	err := g.Wait()
	return report, err
}

type answerFunc func(ctx context.Context, question string) Result

func (h *Harness) each(ctx context.Context, config string, answer answerFunc) map[string]Result {
	out := make(map[string]Result, len(h.questions))
	for _, q := range h.questions {
		if ctx.Err() != nil {
			break
		}
		h.logger.Debug("processing question", "config", config, "question", q)
		start := time.Now()
		res := answer(ctx, q)
		res.TimeTaken = time.Since(start).Seconds()
		if res.Error != "" {
			h.logger.Warn("question failed", "config", config, "question", q, "error", res.Error)
		}
		out[q] = res
	}
	return out
}

func (h *Harness) baseLLM(ctx context.Context, q string) Result {
	answer, err := h.deps.Completer.Complete(ctx, q, baselineTemperature)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Answer: answer}
}

func (h *Harness) simpleRAG(ctx context.Context, q string) Result {
	answer, err := AnswerSimple(ctx, h.deps.Store, h.deps.Completer, q)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Answer: answer}
}

func (h *Harness) advanced(p *ragflow.Pipeline) answerFunc {
	return func(ctx context.Context, q string) Result {
		state, err := p.Ask(ragflow.NewContext(ctx, ragflow.WithLogger(h.logger)), q)
		res := Result{Answer: state.Answer, Steps: state.IntermediateSteps}
		if err != nil {
			res.Error = err.Error()
		}
		return res
	}
}

// AnswerSimple is the single-pass baseline: one search, one prompt.
func AnswerSimple(ctx context.Context, store ragflow.DocumentStore, completer ragflow.Completer, query string) (string, error) {
	docs, err := store.Search(ctx, query, ragflow.RetrievalTopK)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	prompt := fmt.Sprintf(simplePrompt, query, strings.Join(contents, "\n\n"))
	answer, err := completer.Complete(ctx, prompt, baselineTemperature)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	return answer, nil
}

const simplePrompt = `Based on the following context information, please answer the user's question.

Question: %s

Context:
%s

Please provide a comprehensive and accurate answer based only on the information in the context.`

// Save writes report as indented JSON.
func Save(path string, report Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	return f.Close()
}

// Load reads a report written by Save.
func Load(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}
