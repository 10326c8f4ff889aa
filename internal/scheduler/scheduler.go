// Package scheduler topologically orders a flow's steps (spec.md §4.4).
// It is pure: no IO, no globals, callers pass ir.FlowDef values directly.
package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"stratum/internal/ir"
)

// CycleErr is raised when the dependency graph cannot be fully ordered.
type CycleErr struct {
	Remaining []string
}

func (e *CycleErr) Error() string {
	return fmt.Sprintf("execution error: cycle detected among step(s): %s", strings.Join(e.Remaining, ", "))
}

// Order computes the deterministic dispatch sequence for flow using
// Kahn's algorithm over the union of explicit depends_on edges and
// implicit edges derived from "$.steps.<id>." references inside input
// bindings. Ties among simultaneously-ready nodes are broken by original
// step-list order, so the ready set is always scanned in that order
// before a node is extracted.
func Order(flow *ir.FlowDef) ([]ir.StepDef, error) {
	n := len(flow.Steps)
	indexOf := make(map[string]int, n)
	for i, step := range flow.Steps {
		indexOf[step.ID] = i
	}

	// adjacency: edge d -> s recorded as successors[d] = append(s)
	successors := make([][]int, n)
	indegree := make([]int, n)

	addEdge := func(depID, stepIdx int) {
		successors[depID] = append(successors[depID], stepIdx)
		indegree[stepIdx]++
	}

	for i, step := range flow.Steps {
		for _, dep := range step.DependsOn {
			depIdx, ok := indexOf[dep]
			if !ok {
				continue // unknown depends_on is a semantic error, caught earlier
			}
			addEdge(depIdx, i)
		}
		for _, binding := range step.Inputs {
			if depID, ok := implicitStepRef(binding); ok {
				if depIdx, ok := indexOf[depID]; ok {
					addEdge(depIdx, i)
				}
			}
		}
	}

	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)

	ordered := make([]ir.StepDef, 0, n)
	scheduled := make([]bool, n)

	for len(ready) > 0 {
		// Extract the lowest original-index ready node for determinism.
		sort.Ints(ready)
		idx := ready[0]
		ready = ready[1:]

		ordered = append(ordered, flow.Steps[idx])
		scheduled[idx] = true

		for _, succ := range successors[idx] {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if len(ordered) < n {
		var remaining []string
		for i := 0; i < n; i++ {
			if !scheduled[i] {
				remaining = append(remaining, flow.Steps[i].ID)
			}
		}
		return nil, &CycleErr{Remaining: remaining}
	}

	return ordered, nil
}

// implicitStepRef extracts the step id from a "$.steps.<id>." prefixed
// binding string (spec.md §4.4 rule 2). It does not require the
// remainder of the reference to be well-formed — that is the reference
// resolver's concern at dispatch time.
func implicitStepRef(binding string) (string, bool) {
	const prefix = "$.steps."
	if !strings.HasPrefix(binding, prefix) {
		return "", false
	}
	rest := binding[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot <= 0 {
		return "", false
	}
	return rest[:dot], true
}
