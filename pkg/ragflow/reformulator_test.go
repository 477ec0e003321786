package ragflow

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReformulator_FirstAttempt(t *testing.T) {
	completer := newFakeCompleter().on(kindReformulation, "  earthshot award 2021 winners list  ")
	r, err := NewReformulator(completer)
	require.NoError(t, err)

	in := NewState("original")
	in.AnalyzedQuery = "first query"
	in.RetrievedDocs = makeDocs(3, 10)
	in.CleanedDocs = []Document{}
	in.RelevantDocs = makeDocs(1, 10)
	in.ConfidenceScore = ptr(3)

	out, err := r.Run(testCtx(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, out.ReformulationCount)
	assert.Equal(t, "original", out.Query, "query never rewritten")
	assert.Equal(t, "earthshot award 2021 winners list", out.AnalyzedQuery)
	assert.Nil(t, out.RetrievedDocs)
	assert.Nil(t, out.CleanedDocs)
	assert.Nil(t, out.RelevantDocs)
	assert.Equal(t, []string{
		"Starting reformulation attempt 1",
		"Reformulated query: earthshot award 2021 winners list",
	}, out.IntermediateSteps)

	assert.Len(t, in.RetrievedDocs, 3, "input untouched")
	assert.Zero(t, in.ReformulationCount)

	calls := completer.callsOf(kindReformulation)
	require.Len(t, calls, 1)
	assert.Equal(t, 0.3, calls[0].Temperature)
	assert.Contains(t, calls[0].Prompt, "This is reformulation attempt 1.")
	assert.Contains(t, calls[0].Prompt, "1. aaaaaaaaaa")
}

func TestReformulator_AtCap(t *testing.T) {
	completer := newFakeCompleter()
	r, err := NewReformulator(completer)
	require.NoError(t, err)

	in := NewState("q")
	in.ReformulationCount = 1
	in.AnalyzedQuery = "second query"
	in.RetrievedDocs = makeDocs(2, 10)

	out, err := r.Run(testCtx(), in)
	require.NoError(t, err)

	assert.Equal(t, 2, out.ReformulationCount)
	assert.Equal(t, "second query", out.AnalyzedQuery)
	assert.Len(t, out.RetrievedDocs, 2, "documents kept at the cap")
	assert.Equal(t, []string{
		"Starting reformulation attempt 2",
		"Maximum reformulation attempts reached",
	}, out.IntermediateSteps)
	assert.Empty(t, completer.callsOf(kindReformulation))
	assert.Equal(t, Answering, RouteAfterReformulation(out.ReformulationCount))
}

func TestReformulator_CollaboratorError(t *testing.T) {
	cause := errors.New("quota exceeded")
	r, err := NewReformulator(newFakeCompleter().fail(kindReformulation, cause))
	require.NoError(t, err)

	in := NewState("q")
	out, err := r.Run(testCtx(), in)

	assert.ErrorIs(t, err, cause)
	assert.Zero(t, out.ReformulationCount, "input returned on failure")
}

func TestSummarizeDocuments(t *testing.T) {
	assert.Equal(t, "No sufficiently relevant documents found.", SummarizeDocuments(nil))
	assert.Equal(t, "No sufficiently relevant documents found.", SummarizeDocuments([]Document{}))

	docs := []Document{
		{Content: strings.Repeat("é", SummaryRuneLimit+10)},
		{Content: "short"},
		{Content: strings.Repeat("x", SummaryRuneLimit)},
		{Content: "fourth is dropped"},
	}
	lines := strings.Split(SummarizeDocuments(docs), "\n")

	require.Len(t, lines, SummaryDocLimit)
	assert.Equal(t, "1. "+strings.Repeat("é", SummaryRuneLimit)+"...", lines[0])
	assert.Equal(t, "2. short", lines[1])
	assert.Equal(t, "3. "+strings.Repeat("x", SummaryRuneLimit), lines[2], "no ellipsis at exactly the limit")
}
