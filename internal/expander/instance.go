package expander

import (
	"fmt"
	"strings"

	"github.com/moviegen/forge/internal/schemas"
)

// instance is one concrete, dimension-bound occurrence of a canonical
// graph node.
type instance struct {
	ID    string
	Coord map[string]int // DimensionSlot.QualifiedName() -> index
}

// expandNode enumerates the cartesian product of n's dimensions, sized by
// card, into concrete instances with canonical ids of the form
// "Artifact:Name[segment=0&image=2]" (spec.md §3.1). A dimensionless node
// yields its own id, unsuffixed.
func expandNode(n *schemas.GraphNode, card map[string]int) []instance {
	if len(n.Dimensions) == 0 {
		return []instance{{ID: n.ID, Coord: map[string]int{}}}
	}

	sizes := make([]int, len(n.Dimensions))
	for i, d := range n.Dimensions {
		sizes[i] = card[d.QualifiedName()]
		if sizes[i] <= 0 {
			sizes[i] = 1
		}
	}

	var out []instance
	coord := make([]int, len(n.Dimensions))
	var rec func(pos int)
	rec = func(pos int) {
		if pos == len(n.Dimensions) {
			coordMap := make(map[string]int, len(n.Dimensions))
			parts := make([]string, len(n.Dimensions))
			for i, d := range n.Dimensions {
				coordMap[d.QualifiedName()] = coord[i]
				parts[i] = fmt.Sprintf("%s=%d", d.Raw, coord[i])
			}
			out = append(out, instance{
				ID:    n.ID + "[" + strings.Join(parts, "&") + "]",
				Coord: coordMap,
			})
			return
		}
		for i := 0; i < sizes[pos]; i++ {
			coord[pos] = i
			rec(pos + 1)
		}
	}
	rec(0)
	return out
}

// sharedDims returns the qualified dimension names present on both
// endpoints of an edge; those are the only axes that constrain which
// instances on either side actually pair up. An axis present on only one
// side is unconstrained there, which is exactly broadcast semantics
// (spec.md §4.6 step 4) applied to a target, and independent cross
// product applied to a source.
func sharedDims(a, b []schemas.DimensionSlot) []string {
	bSet := make(map[string]bool, len(b))
	for _, d := range b {
		bSet[d.QualifiedName()] = true
	}
	var shared []string
	for _, d := range a {
		if bSet[d.QualifiedName()] {
			shared = append(shared, d.QualifiedName())
		}
	}
	return shared
}

func instancesMatch(a, b instance, sharedQNames []string) bool {
	for _, q := range sharedQNames {
		if a.Coord[q] != b.Coord[q] {
			return false
		}
	}
	return true
}

func qualifiedNameForRaw(dims []schemas.DimensionSlot, raw string) string {
	for _, d := range dims {
		if d.Raw == raw {
			return d.QualifiedName()
		}
	}
	return ""
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
