package ragflow

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// StageFunc is the signature of every stage. The state is passed by value;
// stages return the updated state rather than mutating through pointers.
type StageFunc func(ctx Context, s State) (State, error)

// RouteFunc picks the next stage from the current state. Route functions are
// pure: no I/O, no logging, no state mutation.
type RouteFunc func(s State) Stage

type route struct {
	fn      RouteFunc
	targets []Stage
}

// Machine is a mutable builder for a stage machine. Build it from a single
// goroutine, then call Compile to get an immutable CompiledMachine.
//
//	m := ragflow.NewMachine().
//	    AddStage(ragflow.Retrieving, retrieve).
//	    AddStage(ragflow.Answering, answer).
//	    AddTransition(ragflow.Retrieving, ragflow.Answering).
//	    AddTransition(ragflow.Answering, ragflow.Done).
//	    SetEntry(ragflow.Retrieving)
type Machine struct {
	stages      map[Stage]StageFunc
	transitions map[Stage][]Stage
	routes      map[Stage]route
	entry       Stage
}

// NewMachine creates an empty builder.
func NewMachine() *Machine {
	return &Machine{
		stages:      make(map[Stage]StageFunc),
		transitions: make(map[Stage][]Stage),
		routes:      make(map[Stage]route),
	}
}

// AddStage registers the function run for stage.
//
// Panics if stage is Done or not a declared Stage, if fn is nil, or if
// the stage was already registered.
func (m *Machine) AddStage(stage Stage, fn StageFunc) *Machine {
	if stage == Done {
		panic("ragflow: done is terminal and cannot be registered")
	}
	if !stage.Valid() {
		panic(fmt.Sprintf("ragflow: unknown stage %d", int(stage)))
	}
	if fn == nil {
		panic("ragflow: stage function cannot be nil")
	}
	if _, exists := m.stages[stage]; exists {
		panic(fmt.Sprintf("ragflow: duplicate stage: %s", stage))
	}
	m.stages[stage] = fn
	return m
}

// AddTransition adds an unconditional edge. Validated at Compile time.
func (m *Machine) AddTransition(from, to Stage) *Machine {
	m.transitions[from] = append(m.transitions[from], to)
	return m
}

// AddRoute adds a conditional edge. targets declares every stage fn may
// return; returning anything else fails the run with a RouteError.
//
// Panics if fn is nil or no targets are given.
func (m *Machine) AddRoute(from Stage, fn RouteFunc, targets ...Stage) *Machine {
	if fn == nil {
		panic("ragflow: route function cannot be nil")
	}
	if len(targets) == 0 {
		panic("ragflow: route must declare at least one target")
	}
	if _, exists := m.routes[from]; exists {
		panic(fmt.Sprintf("ragflow: duplicate route from %s", from))
	}
	m.routes[from] = route{fn: fn, targets: slices.Clone(targets)}
	return m
}

// SetEntry designates the first stage.
func (m *Machine) SetEntry(stage Stage) *Machine {
	m.entry = stage
	return m
}

// Compile validates the machine and returns an executable CompiledMachine.
// All validation failures are joined into one error.
//
// Checks:
//  1. Entry is set and registered
//  2. Every transition and route endpoint is registered (or Done)
//  3. Every registered stage has exactly one outgoing transition or route
//  4. Done is reachable from the entry
//
// Stages unreachable from the entry are logged as warnings.
func (m *Machine) Compile() (*CompiledMachine, error) {
	var errs []error

	if m.entry == 0 {
		errs = append(errs, ErrNoEntry)
	} else if _, ok := m.stages[m.entry]; !ok {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, m.entry))
	}

	for _, from := range sortedKeys(m.transitions) {
		if _, ok := m.stages[from]; !ok {
			errs = append(errs, fmt.Errorf("%w: transition source %s", ErrStageNotFound, from))
		}
		for _, to := range m.transitions[from] {
			if !m.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: transition target %s", ErrStageNotFound, to))
			}
		}
	}

	for _, from := range sortedKeys(m.routes) {
		if _, ok := m.stages[from]; !ok {
			errs = append(errs, fmt.Errorf("%w: route source %s", ErrStageNotFound, from))
		}
		for _, to := range m.routes[from].targets {
			if !m.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: route target %s from %s", ErrStageNotFound, to, from))
			}
		}
	}

	for _, stage := range sortedKeys(m.stages) {
		_, routed := m.routes[stage]
		n := len(m.transitions[stage])
		switch {
		case n == 0 && !routed:
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoing, stage))
		case n > 1 || (n == 1 && routed):
			errs = append(errs, fmt.Errorf("%w: %s", ErrAmbiguousTransition, stage))
		}
	}

	if len(errs) == 0 {
		if !m.reachable()[Done] {
			errs = append(errs, ErrNoPathToDone)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	m.warnUnreachable()
	return m.build(), nil
}

func (m *Machine) isTarget(s Stage) bool {
	if s == Done {
		return true
	}
	_, ok := m.stages[s]
	return ok
}

// successors returns every stage reachable in one step from s.
func (m *Machine) successors(s Stage) []Stage {
	if r, ok := m.routes[s]; ok {
		return r.targets
	}
	return m.transitions[s]
}

// reachable returns the set of stages reachable from the entry, Done included.
func (m *Machine) reachable() map[Stage]bool {
	seen := map[Stage]bool{m.entry: true}
	queue := []Stage{m.entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range m.successors(current) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

func (m *Machine) warnUnreachable() {
	seen := m.reachable()
	for _, stage := range sortedKeys(m.stages) {
		if !seen[stage] {
			slog.Warn("stage is unreachable from entry", "stage", stage.String())
		}
	}
}

func (m *Machine) build() *CompiledMachine {
	cm := &CompiledMachine{
		stages:      make(map[Stage]StageFunc, len(m.stages)),
		transitions: make(map[Stage]Stage, len(m.transitions)),
		routes:      make(map[Stage]route, len(m.routes)),
		entry:       m.entry,
	}
	for stage, fn := range m.stages {
		cm.stages[stage] = fn
	}
	for from, targets := range m.transitions {
		cm.transitions[from] = targets[0]
	}
	for from, r := range m.routes {
		cm.routes[from] = route{fn: r.fn, targets: slices.Clone(r.targets)}
	}
	return cm
}

func sortedKeys[V any](m map[Stage]V) []Stage {
	keys := make([]Stage, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
