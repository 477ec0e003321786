package ragflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryAnalyzer_MissingCollaborator(t *testing.T) {
	_, err := NewQueryAnalyzer(nil, &fakeGenerator{}, true)
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	_, err = NewQueryAnalyzer(newFakeCompleter(), nil, false)
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	a, err := NewQueryAnalyzer(newFakeCompleter(), nil, true)
	require.NoError(t, err)
	assert.False(t, a.FineTuned())
}

func TestQueryAnalyzer_FineTuned(t *testing.T) {
	gen := &fakeGenerator{response: "  earthshot prize 2021 protect and restore nature  "}
	completer := newFakeCompleter()
	a, err := NewQueryAnalyzer(completer, gen, false)
	require.NoError(t, err)

	in := NewState("Who won?")
	out, err := a.Run(testCtx(), in)
	require.NoError(t, err)

	assert.Equal(t, "earthshot prize 2021 protect and restore nature", out.AnalyzedQuery)
	assert.Equal(t, "Who won?", out.Query)
	assert.Equal(t, []int{FineTunedMaxNewTokens}, gen.maxTokens)
	assert.Empty(t, completer.callsOf(kindAnalysis))
	assert.Equal(t, []string{
		"Fine-tuned model used for query analysis",
		"Query analysis: original query refined to: earthshot prize 2021 protect and restore nature",
	}, out.IntermediateSteps)
	assert.Empty(t, in.IntermediateSteps, "input untouched")
}

func TestQueryAnalyzer_Completer(t *testing.T) {
	completer := newFakeCompleter().on(kindAnalysis, "refined")
	a, err := NewQueryAnalyzer(completer, &fakeGenerator{}, true)
	require.NoError(t, err)

	out, err := a.Run(testCtx(), NewState("raw question"))
	require.NoError(t, err)

	assert.Equal(t, "refined", out.AnalyzedQuery)
	calls := completer.callsOf(kindAnalysis)
	require.Len(t, calls, 1)
	assert.Zero(t, calls[0].Temperature)
	assert.Contains(t, calls[0].Prompt, "Original Query: raw question")
	assert.Contains(t, out.IntermediateSteps[0], "fine-tuned model disabled")
}

func TestQueryAnalyzer_CollaboratorError(t *testing.T) {
	cause := errors.New("model not loaded")
	a, err := NewQueryAnalyzer(nil, &fakeGenerator{err: cause}, false)
	require.NoError(t, err)

	in := NewState("q")
	out, err := a.Run(testCtx(), in)

	var collabErr *CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Equal(t, Analyzing, collabErr.Stage)
	assert.Equal(t, "generate", collabErr.Op)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, in, out)
}
