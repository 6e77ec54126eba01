package graph

import (
	"slices"
	"strings"

	"github.com/loomworks/loom/internal/types"
)

// DetectCycles scans the blocks subgraph for cycles and returns each one
// as an ordered id sequence, normalized to start at its lexicographically
// smallest member, deduplicated, and sorted.
//
// Edge insertion already rejects cycle-forming blocks edges, so a
// non-empty result means the invariant was bypassed out-of-band (bulk
// import is the usual suspect). The scan is advisory and never mutates
// the graph; callers surface findings as a CorruptDataError.
func DetectCycles(snap *Snapshot) [][]string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the recursion stack
		black = 2 // fully explored
	)

	color := make(map[string]int, len(snap.ids))
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		stack = append(stack, id)

		for _, next := range snap.blockers[id] {
			if !snap.Contains(next) {
				continue
			}
			switch color[next] {
			case white:
				visit(next)
			case gray:
				// Found a back edge: the cycle is the stack segment
				// from next to the top.
				start := slices.Index(stack, next)
				cycle := slices.Clone(stack[start:])
				cycles = append(cycles, normalizeCycle(cycle))
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range snap.ids {
		if color[id] == white {
			visit(id)
		}
	}

	return dedupeCycles(cycles)
}

// normalizeCycle rotates the cycle so it starts at its smallest id,
// giving every traversal of the same cycle one canonical spelling.
func normalizeCycle(cycle []string) []string {
	if len(cycle) == 0 {
		return cycle
	}
	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	normalized := make([]string, 0, len(cycle))
	normalized = append(normalized, cycle[min:]...)
	normalized = append(normalized, cycle[:min]...)
	return normalized
}

func dedupeCycles(cycles [][]string) [][]string {
	if len(cycles) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(cycles))
	var unique [][]string
	for _, c := range cycles {
		key := strings.Join(c, ">")
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}
	slices.SortFunc(unique, func(a, b []string) int {
		return strings.Compare(strings.Join(a, ">"), strings.Join(b, ">"))
	})
	return unique
}

// CheckIntegrity wraps DetectCycles in the error taxonomy: nil when the
// blocks subgraph is acyclic, CorruptDataError listing the cycles found.
func CheckIntegrity(snap *Snapshot) error {
	cycles := DetectCycles(snap)
	if len(cycles) == 0 {
		return nil
	}
	return &types.CorruptDataError{
		Detail: "blocks graph contains cycles",
		Cycles: cycles,
	}
}
