package evaluation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/newsrag/pkg/ragflow"
)

type stubDeps struct {
	mu        sync.Mutex
	prompts   []string
	searches  atomic.Int32
	generated atomic.Int32
	searchErr error
}

func (d *stubDeps) deps(withGenerator bool) ragflow.Dependencies {
	deps := ragflow.Dependencies{
		Store: ragflow.SearchFunc(func(_ context.Context, query string, k int) ([]ragflow.Document, error) {
			d.searches.Add(1)
			if d.searchErr != nil {
				return nil, d.searchErr
			}
			return []ragflow.Document{
				{Content: "Colombia was represented by Vice President Marta Lucía Ramírez.", Metadata: map[string]any{"title": "Earthshot"}},
			}, nil
		}),
		Completer: ragflow.CompleterFunc(func(_ context.Context, prompt string, _ float64) (string, error) {
			d.mu.Lock()
			d.prompts = append(d.prompts, prompt)
			d.mu.Unlock()
			return "stub answer", nil
		}),
	}
	if withGenerator {
		deps.Generator = ragflow.GeneratorFunc(func(context.Context, string, int) (string, error) {
			d.generated.Add(1)
			return "analysis", nil
		})
	}
	return deps
}

func TestNewHarness_MissingCollaborators(t *testing.T) {
	_, err := NewHarness(ragflow.Dependencies{})
	assert.ErrorIs(t, err, ragflow.ErrMissingCollaborator)
}

func TestQuestions(t *testing.T) {
	assert.Len(t, Questions, 8)
	assert.Equal(t, []string{"base_llm", "simple_rag", "advanced_rag_base", "advanced_rag_finetuned"}, Configurations)
}

func TestHarness_RunAllConfigurations(t *testing.T) {
	stub := &stubDeps{}
	h, err := NewHarness(stub.deps(true), WithQuestions("q1", "q2"))
	require.NoError(t, err)

	report, err := h.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report, 4)
	for _, config := range Configurations {
		require.Contains(t, report, config)
		require.Len(t, report[config], 2, config)
		for q, res := range report[config] {
			assert.NotEmpty(t, res.Answer, "%s %s", config, q)
			assert.Empty(t, res.Error)
			assert.GreaterOrEqual(t, res.TimeTaken, 0.0)
		}
	}

	assert.Empty(t, report[BaseLLM]["q1"].Steps)
	assert.Empty(t, report[SimpleRAG]["q1"].Steps)
	assert.NotEmpty(t, report[AdvancedRAGBase]["q1"].Steps)
	assert.NotEmpty(t, report[AdvancedRAGFineTuned]["q1"].Steps)

	assert.Equal(t, int32(2), stub.generated.Load(), "only the fine-tuned configuration uses the generator")
}

func TestHarness_SkipsFineTunedWithoutGenerator(t *testing.T) {
	stub := &stubDeps{}
	h, err := NewHarness(stub.deps(false), WithQuestions("q1"), WithConcurrency(0))
	require.NoError(t, err)

	report, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, report, 3)
	assert.NotContains(t, report, AdvancedRAGFineTuned)
}

func TestHarness_BaseLLMSendsQuestionVerbatim(t *testing.T) {
	stub := &stubDeps{}
	h, err := NewHarness(stub.deps(false), WithQuestions("What is CCS?"))
	require.NoError(t, err)

	_, err = h.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, stub.prompts)
	assert.Equal(t, "What is CCS?", stub.prompts[0])
}

func TestHarness_RecordsQuestionFailures(t *testing.T) {
	stub := &stubDeps{searchErr: errors.New("database down")}
	h, err := NewHarness(stub.deps(false), WithQuestions("q1"))
	require.NoError(t, err)

	report, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report[BaseLLM]["q1"].Error)
	assert.Contains(t, report[SimpleRAG]["q1"].Error, "database down")

	adv := report[AdvancedRAGBase]["q1"]
	assert.Contains(t, adv.Error, "database down")
	assert.True(t, strings.HasPrefix(adv.Answer, "An error occurred"), adv.Answer)
}

func TestHarness_Cancelled(t *testing.T) {
	stub := &stubDeps{}
	h, err := NewHarness(stub.deps(true), WithQuestions("q1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report[BaseLLM])
}

func TestAnswerSimple_Prompt(t *testing.T) {
	var prompt string
	var gotK int
	store := ragflow.SearchFunc(func(_ context.Context, _ string, k int) ([]ragflow.Document, error) {
		gotK = k
		return []ragflow.Document{{Content: "doc one"}, {Content: "doc two"}}, nil
	})
	completer := ragflow.CompleterFunc(func(_ context.Context, p string, temperature float64) (string, error) {
		prompt = p
		assert.Zero(t, temperature)
		return "answer", nil
	})

	got, err := AnswerSimple(context.Background(), store, completer, "Who won?")
	require.NoError(t, err)

	assert.Equal(t, "answer", got)
	assert.Equal(t, ragflow.RetrievalTopK, gotK)
	assert.Contains(t, prompt, "Question: Who won?")
	assert.Contains(t, prompt, "Context:\ndoc one\n\ndoc two")
	assert.Contains(t, prompt, "based only on the information in the context")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	report := Report{
		BaseLLM: {"q": {Answer: "a <b> & c", TimeTaken: 1.5}},
		AdvancedRAGBase: {"q": {
			Answer:    "x",
			TimeTaken: 2,
			Steps:     []string{"Retrieved 5 documents"},
		}},
	}

	require.NoError(t, Save(path, report))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, report, got)
}

func TestSave_BadPath(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "missing", "results.json"), Report{})
	assert.Error(t, err)
}
