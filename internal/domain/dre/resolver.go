package dre

import (
	"slices"
	"sort"
)

// EvaluationOrder lists every code so that each calculated item comes after
// all codes its formula references
type EvaluationOrder []string

// Position returns the index of code in the order, or -1
func (o EvaluationOrder) Position(code string) int {
	return slices.Index(o, code)
}

// Resolve orders the formula-reference graph with Kahn's algorithm.
// Ready items are taken in template declaration order so that the result is
// stable across runs. A cycle yields a CyclicDependency error naming every
// code that lies on a cycle.
func Resolve(vt *ValidTemplate) (EvaluationOrder, error) {
	n := len(vt.items)
	inDegree := make([]int, n)
	dependents := make([][]int, n)

	for i, it := range vt.items {
		f := vt.formulas[it.Code]
		if f == nil {
			continue
		}
		for _, ref := range f.References() {
			j := vt.index[ref]
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// ready is kept sorted by declaration index
	var ready []int
	for i := range n {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make(EvaluationOrder, 0, n)
	processed := make([]bool, n)
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		processed[cur] = true
		order = append(order, vt.items[cur].Code)

		for _, dep := range dependents[cur] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				pos := sort.SearchInts(ready, dep)
				ready = slices.Insert(ready, pos, dep)
			}
		}
	}

	if len(order) == n {
		return order, nil
	}

	codes := cycleMembers(vt, processed, dependents)
	return nil, newValidationError(ErrKindCyclicDependency, codes, nil,
		"formulas reference each other in a cycle")
}

// cycleMembers narrows the unprocessed nodes to those on a cycle by peeling
// away nodes that no other unprocessed node depends on
func cycleMembers(vt *ValidTemplate, processed []bool, dependents [][]int) []string {
	n := len(vt.items)
	remaining := make([]bool, n)
	outDegree := make([]int, n)
	for i := range n {
		remaining[i] = !processed[i]
	}
	for i := range n {
		if !remaining[i] {
			continue
		}
		for _, d := range dependents[i] {
			if remaining[d] {
				outDegree[i]++
			}
		}
	}

	// reverse adjacency restricted to remaining nodes: who does i depend on
	dependsOn := make([][]int, n)
	for i := range n {
		if !remaining[i] {
			continue
		}
		for _, d := range dependents[i] {
			if remaining[d] {
				dependsOn[d] = append(dependsOn[d], i)
			}
		}
	}

	var queue []int
	for i := range n {
		if remaining[i] && outDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		remaining[cur] = false
		for _, src := range dependsOn[cur] {
			outDegree[src]--
			if outDegree[src] == 0 && remaining[src] {
				queue = append(queue, src)
			}
		}
	}

	var codes []string
	for i := range n {
		if remaining[i] {
			codes = append(codes, vt.items[i].Code)
		}
	}
	return codes
}
