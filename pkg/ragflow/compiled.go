package ragflow

import (
	"fmt"
	"slices"
	"strings"
)

// CompiledMachine is an immutable, executable stage machine created by
// Machine.Compile. It is safe for concurrent Run calls.
type CompiledMachine struct {
	stages      map[Stage]StageFunc
	transitions map[Stage]Stage
	routes      map[Stage]route
	entry       Stage
}

// Entry returns the first stage.
func (cm *CompiledMachine) Entry() Stage {
	return cm.entry
}

// Stages returns the registered stages in enum order.
func (cm *CompiledMachine) Stages() []Stage {
	return sortedKeys(cm.stages)
}

// HasStage reports whether stage is registered.
func (cm *CompiledMachine) HasStage(stage Stage) bool {
	_, ok := cm.stages[stage]
	return ok
}

// Successors returns the stages that can follow stage: the transition
// target, or every declared route target. Nil for Done or unknown stages.
func (cm *CompiledMachine) Successors(stage Stage) []Stage {
	if r, ok := cm.routes[stage]; ok {
		return slices.Clone(r.targets)
	}
	if to, ok := cm.transitions[stage]; ok {
		return []Stage{to}
	}
	return nil
}

// IsRouted reports whether stage leaves through a route function.
func (cm *CompiledMachine) IsRouted(stage Stage) bool {
	_, ok := cm.routes[stage]
	return ok
}

// edgeLabels names the branches of the built-in routes in diagrams.
var edgeLabels = map[[2]Stage]string{
	{Retrieving, Cleaning}:      "Needs Cleaning",
	{Retrieving, Evaluating}:    "Skip Cleaning",
	{Evaluating, Answering}:     "Confident or Exhausted",
	{Evaluating, Reformulating}: "Low Confidence",
	{Reformulating, Retrieving}: "Attempts < 2",
	{Reformulating, Answering}:  "Attempts >= 2",
}

// Mermaid renders the machine as a Mermaid flowchart.
func (cm *CompiledMachine) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	fmt.Fprintf(&b, "    start([Start]) --> %s\n", cm.entry)
	for _, stage := range cm.Stages() {
		fmt.Fprintf(&b, "    %s[%s]\n", stage, stage.Label())
	}
	for _, from := range cm.Stages() {
		for _, to := range cm.Successors(from) {
			target := to.String()
			if to == Done {
				target = "finish([End])"
			}
			if label, ok := edgeLabels[[2]Stage{from, to}]; ok && cm.IsRouted(from) {
				fmt.Fprintf(&b, "    %s -->|%s| %s\n", from, label, target)
				continue
			}
			fmt.Fprintf(&b, "    %s --> %s\n", from, target)
		}
	}
	return b.String()
}
