package ragflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Prompt kinds recognised by fakeCompleter.
const (
	kindAnalysis      = "analysis"
	kindCleaning      = "cleaning"
	kindEvaluation    = "evaluation"
	kindReformulation = "reformulation"
	kindAnswer        = "answer"
)

func kindOf(prompt string) string {
	switch {
	case strings.Contains(prompt, "query analysis expert"):
		return kindAnalysis
	case strings.Contains(prompt, "document cleaning expert"):
		return kindCleaning
	case strings.Contains(prompt, "relevance evaluation expert"):
		return kindEvaluation
	case strings.Contains(prompt, "query reformulation expert"):
		return kindReformulation
	case strings.Contains(prompt, "environmental news analysis assistant"):
		return kindAnswer
	}
	return "unknown"
}

type completerCall struct {
	Kind        string
	Prompt      string
	Temperature float64
}

// fakeCompleter answers by prompt kind. Each kind has a queue of responses;
// the last one repeats once the queue is drained.
type fakeCompleter struct {
	mu        sync.Mutex
	responses map[string][]string
	errs      map[string]error
	calls     []completerCall
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{
		responses: map[string][]string{
			kindAnalysis:      {"analyzed query"},
			kindCleaning:      {"cleaned"},
			kindEvaluation:    {`{"evaluation": [], "retained_document_indices": []}`},
			kindReformulation: {"reformulated query"},
			kindAnswer:        {"final answer"},
		},
		errs: map[string]error{},
	}
}

func (f *fakeCompleter) on(kind string, responses ...string) *fakeCompleter {
	f.responses[kind] = responses
	return f
}

func (f *fakeCompleter) fail(kind string, err error) *fakeCompleter {
	f.errs[kind] = err
	return f
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	kind := kindOf(prompt)
	f.calls = append(f.calls, completerCall{Kind: kind, Prompt: prompt, Temperature: temperature})
	if err := f.errs[kind]; err != nil {
		return "", err
	}
	queue := f.responses[kind]
	if len(queue) == 0 {
		return "", nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[kind] = queue[1:]
	}
	return resp, nil
}

func (f *fakeCompleter) callsOf(kind string) []completerCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []completerCall
	for _, c := range f.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type fakeGenerator struct {
	mu        sync.Mutex
	response  string
	err       error
	maxTokens []int
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, maxNewTokens int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.maxTokens = append(g.maxTokens, maxNewTokens)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

// fakeStore returns results in call order; the last set repeats.
type fakeStore struct {
	mu      sync.Mutex
	results [][]Document
	err     error
	queries []string
	ks      []int
}

func (s *fakeStore) Search(_ context.Context, query string, k int) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, query)
	s.ks = append(s.ks, k)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) == 0 {
		return nil, nil
	}
	docs := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return docs, nil
}

func (s *fakeStore) searches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// makeDocs creates n documents of size runes each, titled doc-0..doc-n.
func makeDocs(n, size int) []Document {
	docs := make([]Document, n)
	for i := range docs {
		docs[i] = Document{
			Content:  strings.Repeat(string(rune('a'+i%26)), size),
			Metadata: map[string]any{"title": fmt.Sprintf("doc-%d", i)},
		}
	}
	return docs
}

func ptr(f float64) *float64 { return &f }

func testCtx() Context {
	return NewContext(context.Background())
}

// passthrough returns the state unchanged.
func passthrough(_ Context, s State) (State, error) {
	return s, nil
}

// makeTrackingStage records its execution in the trace.
func makeTrackingStage(name string) StageFunc {
	return func(_ Context, s State) (State, error) {
		s.record("%s", name)
		return s, nil
	}
}

func makeFailingStage(err error) StageFunc {
	return func(_ Context, s State) (State, error) {
		return s, err
	}
}

func makePanicStage(value any) StageFunc {
	return func(_ Context, s State) (State, error) {
		panic(value)
	}
}
