package planner

import "errors"

// ErrCycle is raised when the dirty subgraph cannot be topologically
// ordered (spec.md §7's CycleError).
var ErrCycle = errors.New("planner: dirty subgraph contains a cycle")

// ErrDuplicateProduces is raised when two producer graph nodes declare
// the same artefact id in their Produces list (spec.md §9 open question:
// "two jobs claim the same output" is a blueprint error).
var ErrDuplicateProduces = errors.New("planner: two jobs produce the same artefact id")
