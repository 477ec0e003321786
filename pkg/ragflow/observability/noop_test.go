package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordStage(ctx, "retrieving", time.Millisecond, errors.New("x"))
		m.RecordRun(ctx, true, time.Second, 2)
		m.RecordRoute(ctx, "evaluating", "answering")
		m.RecordConfidence(ctx, 7.5)
		m.RecordSnapshot(ctx, "evaluating", 100)
	})
}

func TestNoopSpanManager(t *testing.T) {
	var m SpanManager = NoopSpanManager{}
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	runCtx, runSpan := m.StartRunSpan(ctx, "ragflow", "run-1")
	assert.Equal(t, ctx, runCtx, "context returned unchanged")
	assert.False(t, runSpan.IsRecording())

	stageCtx, stageSpan := m.StartStageSpan(runCtx, "answering")
	assert.Equal(t, ctx, stageCtx)
	assert.False(t, stageSpan.SpanContext().IsValid())

	assert.NotPanics(t, func() {
		m.AddSpanEvent(stageCtx, "event", attribute.String("k", "v"))
		m.EndSpanWithError(stageSpan, errors.New("x"))
		m.EndSpanWithError(runSpan, nil)
		m.EndSpanWithError(nil, nil)
	})
}
