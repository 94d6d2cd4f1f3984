package graph

import (
	"fmt"

	"github.com/moviegen/forge/internal/blueprint"
	"github.com/moviegen/forge/internal/schemas"
)

// Builder walks a resolved blueprint tree and emits the flattened
// canonical graph (spec.md §4.5). New code — the teacher has no
// sub-blueprint/namespace/dimension concept — but it follows the
// resolve-then-wrap idiom of the teacher's pkg/planner/builder.go
// (fmt.Errorf wrapping with position context, cycle check as the final
// step).
type Builder struct{}

// NewBuilder creates a canonical graph builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build flattens root (with every sub-blueprint already resolved by
// blueprint.Loader) into a BlueprintGraph and checks it for cycles.
func (b *Builder) Build(root *schemas.Document) (*schemas.BlueprintGraph, error) {
	g := &schemas.BlueprintGraph{DimensionLineage: map[string]string{}}

	if err := buildDocument(root, "", nil, g); err != nil {
		return nil, err
	}
	computeLineage(g)

	idx := NewIndex(g)
	if err := idx.DetectCycles(); err != nil {
		return nil, err
	}

	return g, nil
}

func buildDocument(doc *schemas.Document, nsPath string, ancestorDims []schemas.DimensionSlot, g *schemas.BlueprintGraph) error {
	localDims := map[string][]string{}
	childNsDims := map[string][]string{}

	scan := func(raw string) error {
		ref, err := blueprint.ParseReference(raw)
		if err != nil {
			return err
		}
		if len(ref.Path) == 1 {
			if len(ref.Path[0].Dims) > 0 {
				localDims[ref.Path[0].Name] = ref.Path[0].Dims
			}
			return nil
		}
		first := ref.Path[0]
		if len(first.Dims) > 0 {
			childNsDims[first.Name] = first.Dims
		}
		return nil
	}
	for _, e := range doc.Edges {
		if err := scan(e.From); err != nil {
			return err
		}
		if err := scan(e.To); err != nil {
			return err
		}
	}
	for _, c := range doc.Collectors {
		if err := scan(c.From); err != nil {
			return err
		}
		if err := scan(c.Into); err != nil {
			return err
		}
	}

	for i := range doc.Inputs {
		in := &doc.Inputs[i]
		g.Nodes = append(g.Nodes, &schemas.GraphNode{
			ID:            inputID(nsPath, in.Name),
			Type:          schemas.NodeInputSource,
			NamespacePath: nsPath,
			Name:          in.Name,
			Dimensions:    concatSlots(ancestorDims, localSlots(localDims[in.Name], nsPath, len(ancestorDims))),
			Input:         in,
		})
	}
	for i := range doc.Artefacts {
		a := &doc.Artefacts[i]
		g.Nodes = append(g.Nodes, &schemas.GraphNode{
			ID:            artefactID(nsPath, a.Name),
			Type:          schemas.NodeArtefact,
			NamespacePath: nsPath,
			Name:          a.Name,
			Dimensions:    concatSlots(ancestorDims, localSlots(localDims[a.Name], nsPath, len(ancestorDims))),
			CounterFor:    a.CountInput,
			Artefact:      a,
		})
	}
	for i := range doc.Producers {
		p := &doc.Producers[i]
		g.Nodes = append(g.Nodes, &schemas.GraphNode{
			ID:            producerID(nsPath, p.Name),
			Type:          schemas.NodeProducer,
			NamespacePath: nsPath,
			Name:          p.Name,
			Dimensions:    concatSlots(ancestorDims, localSlots(localDims[p.Name], nsPath, len(ancestorDims))),
			Producer:      p,
		})
	}

	for _, e := range doc.Edges {
		fromEP, err := resolveEndpoint(doc, nsPath, ancestorDims, e.From)
		if err != nil {
			return fmt.Errorf("edge %q -> %q: %w", e.From, e.To, err)
		}
		toEP, err := resolveEndpoint(doc, nsPath, ancestorDims, e.To)
		if err != nil {
			return fmt.Errorf("edge %q -> %q: %w", e.From, e.To, err)
		}
		g.Edges = append(g.Edges, &schemas.GraphEdge{From: fromEP, To: toEP, Note: e.Note})
	}

	for _, c := range doc.Collectors {
		fromEP, err := resolveEndpoint(doc, nsPath, ancestorDims, c.From)
		if err != nil {
			return fmt.Errorf("collector %q: %w", c.Name, err)
		}
		intoEP, err := resolveEndpoint(doc, nsPath, ancestorDims, c.Into)
		if err != nil {
			return fmt.Errorf("collector %q: %w", c.Name, err)
		}
		g.Collectors = append(g.Collectors, &schemas.CollectorSpec{
			Name:       c.Name,
			FromNodeID: fromEP.NodeID,
			IntoNodeID: intoEP.NodeID,
			GroupBy:    c.GroupBy,
			OrderBy:    c.OrderBy,
		})
		markFanIn(g, intoEP.NodeID)
	}

	for _, sub := range doc.SubBlueprints {
		if sub.Resolved == nil {
			return fmt.Errorf("%w: %s: sub-blueprint %q was not resolved", ErrBlueprintGraph, nsPath, sub.Namespace)
		}
		childNs := joinNamespace(nsPath, sub.Namespace)
		childAncestor := concatSlots(ancestorDims, localSlots(childNsDims[sub.Namespace], childNs, len(ancestorDims)))
		if err := buildDocument(sub.Resolved, childNs, childAncestor, g); err != nil {
			return err
		}
	}

	return nil
}

// resolveEndpoint walks raw across document and sub-blueprint boundaries,
// returning the node id it names and the dimension slots actually
// referenced on it (always a prefix of that node's full Dimensions).
func resolveEndpoint(doc *schemas.Document, nsPath string, ancestorDims []schemas.DimensionSlot, raw string) (schemas.EdgeEndpoint, error) {
	ref, err := blueprint.ParseReference(raw)
	if err != nil {
		return schemas.EdgeEndpoint{}, err
	}

	curDoc := doc
	curNs := nsPath
	curAncestor := ancestorDims

	for i, seg := range ref.Path {
		if i == len(ref.Path)-1 {
			kind, found := findKind(curDoc, seg.Name)
			if !found {
				return schemas.EdgeEndpoint{}, fmt.Errorf("%w: %q does not resolve in namespace %q", ErrBlueprintGraph, seg.Name, curNs)
			}
			id := idFor(kind, curNs, seg.Name)
			dims := concatSlots(curAncestor, localSlots(seg.Dims, curNs, len(curAncestor)))
			return schemas.EdgeEndpoint{NodeID: id, Dimensions: dims}, nil
		}

		sub := findSubBlueprint(curDoc, seg.Name)
		if sub == nil || sub.Resolved == nil {
			return schemas.EdgeEndpoint{}, fmt.Errorf("%w: unknown namespace segment %q in reference %q", ErrBlueprintGraph, seg.Name, raw)
		}
		childNs := joinNamespace(curNs, seg.Name)
		curAncestor = concatSlots(curAncestor, localSlots(seg.Dims, childNs, len(curAncestor)))
		curNs = childNs
		curDoc = sub.Resolved
	}

	return schemas.EdgeEndpoint{}, fmt.Errorf("%w: empty reference", ErrBlueprintGraph)
}

func findKind(doc *schemas.Document, name string) (schemas.NodeType, bool) {
	for _, in := range doc.Inputs {
		if in.Name == name {
			return schemas.NodeInputSource, true
		}
	}
	for _, a := range doc.Artefacts {
		if a.Name == name {
			return schemas.NodeArtefact, true
		}
	}
	for _, p := range doc.Producers {
		if p.Name == name {
			return schemas.NodeProducer, true
		}
	}
	return "", false
}

func findSubBlueprint(doc *schemas.Document, namespace string) *schemas.SubBlueprint {
	for i := range doc.SubBlueprints {
		if doc.SubBlueprints[i].Namespace == namespace {
			return &doc.SubBlueprints[i]
		}
	}
	return nil
}

func idFor(kind schemas.NodeType, nsPath, name string) string {
	switch kind {
	case schemas.NodeInputSource:
		return inputID(nsPath, name)
	case schemas.NodeArtefact:
		return artefactID(nsPath, name)
	default:
		return producerID(nsPath, name)
	}
}

func inputID(nsPath, name string) string {
	return "Input:" + qualifiedName(nsPath, name)
}

func artefactID(nsPath, name string) string {
	return "Artifact:" + qualifiedName(nsPath, name)
}

func producerID(nsPath, name string) string {
	return "Producer:" + qualifiedName(nsPath, name)
}

func qualifiedName(nsPath, name string) string {
	if nsPath == "" {
		return name
	}
	return nsPath + "." + name
}

func joinNamespace(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func localSlots(symbols []string, scopeKey string, baseOrdinal int) []schemas.DimensionSlot {
	if len(symbols) == 0 {
		return nil
	}
	out := make([]schemas.DimensionSlot, len(symbols))
	for i, sym := range symbols {
		out[i] = schemas.DimensionSlot{Scope: scopeKey, ScopeKey: scopeKey, Ordinal: baseOrdinal + i, Raw: sym}
	}
	return out
}

func concatSlots(a, b []schemas.DimensionSlot) []schemas.DimensionSlot {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]schemas.DimensionSlot, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func markFanIn(g *schemas.BlueprintGraph, nodeID string) {
	for _, n := range g.Nodes {
		if n.ID == nodeID {
			n.FanIn = true
			return
		}
	}
}

// computeLineage fills DimensionLineage per spec.md §4.5 step 6: if a
// different symbol occupies the same ordinal on the edge's source, the
// source's symbol is the target dimension's parent; if the source has no
// dimension at that ordinal, the target dimension is recorded as a root
// (empty parent). The first edge to set a dimension's entry wins.
func computeLineage(g *schemas.BlueprintGraph) {
	for _, e := range g.Edges {
		for i, toSlot := range e.To.Dimensions {
			key := toSlot.QualifiedName()
			if i < len(e.From.Dimensions) {
				fromSlot := e.From.Dimensions[i]
				if fromSlot.QualifiedName() != key {
					if _, ok := g.DimensionLineage[key]; !ok {
						g.DimensionLineage[key] = fromSlot.QualifiedName()
					}
				}
			} else if _, ok := g.DimensionLineage[key]; !ok {
				g.DimensionLineage[key] = ""
			}
		}
	}
}
