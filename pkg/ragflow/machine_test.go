package ragflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Machine
		want  error
	}{
		{
			name: "no entry",
			build: func() *Machine {
				return NewMachine().
					AddStage(Answering, passthrough).
					AddTransition(Answering, Done)
			},
			want: ErrNoEntry,
		},
		{
			name: "entry not registered",
			build: func() *Machine {
				return NewMachine().
					AddStage(Answering, passthrough).
					AddTransition(Answering, Done).
					SetEntry(Analyzing)
			},
			want: ErrEntryNotFound,
		},
		{
			name: "transition to unregistered stage",
			build: func() *Machine {
				return NewMachine().
					AddStage(Analyzing, passthrough).
					AddTransition(Analyzing, Retrieving).
					SetEntry(Analyzing)
			},
			want: ErrStageNotFound,
		},
		{
			name: "route to unregistered stage",
			build: func() *Machine {
				return NewMachine().
					AddStage(Retrieving, passthrough).
					AddRoute(Retrieving, routeRetrieval, Cleaning, Done).
					SetEntry(Retrieving)
			},
			want: ErrStageNotFound,
		},
		{
			name: "stage without outgoing edge",
			build: func() *Machine {
				return NewMachine().
					AddStage(Analyzing, passthrough).
					AddStage(Answering, passthrough).
					AddTransition(Analyzing, Done).
					SetEntry(Analyzing)
			},
			want: ErrNoOutgoing,
		},
		{
			name: "two transitions",
			build: func() *Machine {
				return NewMachine().
					AddStage(Analyzing, passthrough).
					AddStage(Answering, passthrough).
					AddTransition(Analyzing, Answering).
					AddTransition(Analyzing, Done).
					AddTransition(Answering, Done).
					SetEntry(Analyzing)
			},
			want: ErrAmbiguousTransition,
		},
		{
			name: "transition and route",
			build: func() *Machine {
				return NewMachine().
					AddStage(Reformulating, passthrough).
					AddStage(Answering, passthrough).
					AddTransition(Reformulating, Answering).
					AddRoute(Reformulating, routeReformulation, Answering).
					AddTransition(Answering, Done).
					SetEntry(Reformulating)
			},
			want: ErrAmbiguousTransition,
		},
		{
			name: "cycle without exit",
			build: func() *Machine {
				return NewMachine().
					AddStage(Retrieving, passthrough).
					AddStage(Reformulating, passthrough).
					AddTransition(Retrieving, Reformulating).
					AddTransition(Reformulating, Retrieving).
					SetEntry(Retrieving)
			},
			want: ErrNoPathToDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := tt.build().Compile()
			assert.Nil(t, compiled)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompile_JoinsErrors(t *testing.T) {
	_, err := NewMachine().
		AddStage(Analyzing, passthrough).
		AddStage(Answering, passthrough).
		AddTransition(Analyzing, Retrieving).
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntry)
	assert.ErrorIs(t, err, ErrStageNotFound)
	assert.ErrorIs(t, err, ErrNoOutgoing)
}

func TestMachine_BuilderPanics(t *testing.T) {
	assert.Panics(t, func() { NewMachine().AddStage(Done, passthrough) })
	assert.Panics(t, func() { NewMachine().AddStage(Stage(42), passthrough) })
	assert.Panics(t, func() { NewMachine().AddStage(Analyzing, nil) })
	assert.Panics(t, func() {
		NewMachine().AddStage(Analyzing, passthrough).AddStage(Analyzing, passthrough)
	})
	assert.Panics(t, func() { NewMachine().AddRoute(Retrieving, nil, Cleaning) })
	assert.Panics(t, func() { NewMachine().AddRoute(Retrieving, routeRetrieval) })
	assert.Panics(t, func() {
		NewMachine().
			AddRoute(Retrieving, routeRetrieval, Cleaning).
			AddRoute(Retrieving, routeRetrieval, Evaluating)
	})
}

func TestCompile_UnreachableStageIsAllowed(t *testing.T) {
	compiled, err := NewMachine().
		AddStage(Analyzing, passthrough).
		AddStage(Cleaning, passthrough).
		AddTransition(Analyzing, Done).
		AddTransition(Cleaning, Done).
		SetEntry(Analyzing).
		Compile()

	require.NoError(t, err)
	assert.True(t, compiled.HasStage(Cleaning))
}

func TestCompiledMachine_Introspection(t *testing.T) {
	p := newTestPipeline(t, newFakeCompleter(), &fakeStore{})
	cm := p.Machine()

	assert.Equal(t, Analyzing, cm.Entry())
	assert.Equal(t, AllStages, cm.Stages())
	assert.Equal(t, []Stage{Retrieving}, cm.Successors(Analyzing))
	assert.Equal(t, []Stage{Cleaning, Evaluating}, cm.Successors(Retrieving))
	assert.Equal(t, []Stage{Answering, Reformulating}, cm.Successors(Evaluating))
	assert.Equal(t, []Stage{Retrieving, Answering}, cm.Successors(Reformulating))
	assert.Equal(t, []Stage{Done}, cm.Successors(Answering))
	assert.Nil(t, cm.Successors(Done))

	assert.True(t, cm.IsRouted(Retrieving))
	assert.False(t, cm.IsRouted(Cleaning))
}

func TestCompiledMachine_Mermaid(t *testing.T) {
	p := newTestPipeline(t, newFakeCompleter(), &fakeStore{})
	diagram := p.Machine().Mermaid()

	for _, line := range []string{
		"graph TD",
		"start([Start]) --> analyzing",
		"analyzing[Query Analysis]",
		"analyzing --> retrieving",
		"retrieving -->|Needs Cleaning| cleaning",
		"retrieving -->|Skip Cleaning| evaluating",
		"cleaning --> evaluating",
		"evaluating -->|Confident or Exhausted| answering",
		"evaluating -->|Low Confidence| reformulating",
		"reformulating -->|Attempts < 2| retrieving",
		"reformulating -->|Attempts >= 2| answering",
		"answering --> finish([End])",
	} {
		assert.Contains(t, diagram, line)
	}
}
