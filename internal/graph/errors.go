package graph

import "errors"

// ErrBlueprintGraph is raised for dimension-count mismatches, conflicting
// dimension symbols, unresolved namespaces, and cycles found while
// building the canonical graph (spec.md §7).
var ErrBlueprintGraph = errors.New("graph: blueprint graph error")
