package expander

import (
	"fmt"

	"github.com/moviegen/forge/internal/schemas"
)

// computeCardinalities resolves, for every dimension symbol appearing
// anywhere in g, how many instances it fans out to (spec.md §4.6 step 1).
//
// A dimension gets its cardinality directly when some node names it as
// CounterFor and the corresponding input is present in inputValues.
// Every other dimension inherits its cardinality from its lineage parent
// (BlueprintGraph.DimensionLineage); a root dimension with no counter
// defaults to 1.
func computeCardinalities(g *schemas.BlueprintGraph, inputValues map[string]interface{}) (map[string]int, error) {
	card := map[string]int{}

	for _, n := range g.Nodes {
		if n.CounterFor == "" || len(n.Dimensions) == 0 {
			continue
		}
		slot := n.Dimensions[len(n.Dimensions)-1]
		raw, ok := inputValues["Input:"+n.CounterFor]
		if !ok {
			continue
		}
		count, err := toCardinality(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: dimension %q counter input %q: %v", ErrExpand, slot.QualifiedName(), n.CounterFor, err)
		}
		card[slot.QualifiedName()] = count
	}

	var allDims []string
	seen := map[string]bool{}
	for _, n := range g.Nodes {
		for _, d := range n.Dimensions {
			q := d.QualifiedName()
			if !seen[q] {
				seen[q] = true
				allDims = append(allDims, q)
			}
		}
	}

	visiting := map[string]bool{}
	var resolve func(string) (int, error)
	resolve = func(q string) (int, error) {
		if v, ok := card[q]; ok {
			return v, nil
		}
		if visiting[q] {
			return 0, fmt.Errorf("%w: cyclic dimension lineage at %q", ErrExpand, q)
		}
		visiting[q] = true
		defer delete(visiting, q)

		parent, hasParent := g.DimensionLineage[q]
		if !hasParent || parent == "" {
			card[q] = 1
			return 1, nil
		}
		v, err := resolve(parent)
		if err != nil {
			return 0, err
		}
		card[q] = v
		return v, nil
	}

	for _, q := range allDims {
		if _, err := resolve(q); err != nil {
			return nil, err
		}
	}
	return card, nil
}

func toCardinality(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}
