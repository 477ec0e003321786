package ragflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalLength_CountsRunes(t *testing.T) {
	docs := []Document{{Content: "héllo"}, {Content: "世界"}}
	assert.Equal(t, 7, TotalLength(docs))
	assert.Zero(t, TotalLength(nil))
}

func TestRouteAfterRetrieval(t *testing.T) {
	tests := []struct {
		name string
		docs []Document
		want Stage
	}{
		{"nil docs", nil, Evaluating},
		{"empty docs", []Document{}, Evaluating},
		{"below threshold", makeDocs(3, 100), Evaluating},
		{"exactly at threshold", []Document{{Content: strings.Repeat("x", CleaningThreshold)}}, Evaluating},
		{"one rune over", []Document{{Content: strings.Repeat("x", CleaningThreshold+1)}}, Cleaning},
		{"sum over threshold", makeDocs(5, 2001), Cleaning},
		{"multibyte counted by rune", []Document{{Content: strings.Repeat("é", CleaningThreshold)}}, Evaluating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RouteAfterRetrieval(tt.docs)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, RouteAfterRetrieval(tt.docs), "pure")
		})
	}
}

func TestConfidenceDecision(t *testing.T) {
	relevant := makeDocs(1, 10)

	tests := []struct {
		name           string
		confidence     *float64
		reformulations int
		relevant       []Document
		wantNext       Stage
		wantRule       int
	}{
		{"confident", ptr(8), 0, relevant, Answering, 1},
		{"exactly at threshold", ptr(5), 0, relevant, Answering, 1},
		{"confident beats reformulation cap", ptr(6), 2, nil, Answering, 1},
		{"reformulation cap", ptr(3), 2, relevant, Answering, 2},
		{"cap beats empty relevant", ptr(3), 2, nil, Answering, 2},
		{"reformulated with nothing relevant", ptr(3), 1, nil, Answering, 3},
		{"reformulated with empty relevant", nil, 1, []Document{}, Answering, 3},
		{"first pass low confidence", ptr(4.9), 0, relevant, Reformulating, 4},
		{"first pass nothing relevant", ptr(2), 0, nil, Reformulating, 4},
		{"unset confidence counts as zero", nil, 0, nil, Reformulating, 4},
		{"reformulated with relevant docs", ptr(4), 1, relevant, Reformulating, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ConfidenceDecision(tt.confidence, tt.reformulations, tt.relevant)
			assert.Equal(t, tt.wantNext, d.Next)
			assert.Equal(t, tt.wantRule, d.Rule)
			assert.NotEmpty(t, d.Reason)
			assert.Equal(t, tt.wantNext, RouteAfterEvaluation(tt.confidence, tt.reformulations, tt.relevant))
		})
	}
}

func TestRouteAfterReformulation(t *testing.T) {
	assert.Equal(t, Retrieving, RouteAfterReformulation(0))
	assert.Equal(t, Retrieving, RouteAfterReformulation(1))
	assert.Equal(t, Answering, RouteAfterReformulation(2))
	assert.Equal(t, Answering, RouteAfterReformulation(3))
}

func TestStateRoutes(t *testing.T) {
	s := NewState("q")
	s.RetrievedDocs = makeDocs(1, CleaningThreshold+1)
	assert.Equal(t, Cleaning, routeRetrieval(s))

	s.ConfidenceScore = ptr(9)
	assert.Equal(t, Answering, routeEvaluation(s))

	s.ReformulationCount = 1
	assert.Equal(t, Retrieving, routeReformulation(s))
}
