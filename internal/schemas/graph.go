package schemas

// NodeType tags the three kinds of canonical graph node (spec.md §9
// design note: "tagged sum type").
type NodeType string

const (
	NodeInputSource NodeType = "InputSource"
	NodeProducer    NodeType = "Producer"
	NodeArtefact    NodeType = "Artifact"
)

// DimensionSlot qualifies a single fan-out axis so that two nodes
// carrying independent same-named dimensions never alias (spec.md §3.3).
type DimensionSlot struct {
	Scope    string `json:"scope"`    // namespace key the dimension was declared in
	ScopeKey string `json:"scopeKey"` // fully-qualified namespace path, e.g. "ns.path.a.b"
	Ordinal  int    `json:"ordinal"`  // position within the node's dimension sequence
	Raw      string `json:"raw"`      // the bracket symbol as written, e.g. "segment"
}

// QualifiedName returns a stable string identity for this slot, used as
// the key in dimension lineage and cardinality maps.
func (d DimensionSlot) QualifiedName() string {
	return d.ScopeKey + "#" + d.Raw
}

// GraphNode is a flat node in the canonical (pre-expansion) graph.
type GraphNode struct {
	ID            string          `json:"id"`
	Type          NodeType        `json:"type"`
	NamespacePath string          `json:"namespacePath"`
	Name          string          `json:"name"`
	Dimensions    []DimensionSlot `json:"dimensions"`

	// FanIn marks an InputSource that is the target of a collector.
	FanIn bool `json:"fanIn,omitempty"`

	// CounterFor names the input this node's cardinality is driven by,
	// if this is a dimension-defining node (e.g. NumOfSegments).
	CounterFor string `json:"counterFor,omitempty"`

	// Producer carries the original declaration for Producer nodes.
	Producer *ProducerDecl `json:"producer,omitempty"`

	// Artefact carries the original declaration for Artifact nodes.
	Artefact *ArtefactDecl `json:"artefact,omitempty"`

	// Input carries the original declaration for InputSource nodes.
	Input *InputDecl `json:"input,omitempty"`
}

// EdgeEndpoint is one side of a canonical edge: a node id plus the
// dimension slots this endpoint projects onto (always a prefix of the
// node's own dimensions).
type EdgeEndpoint struct {
	NodeID     string          `json:"nodeId"`
	Dimensions []DimensionSlot `json:"dimensions"`
}

// GraphEdge is a typed edge between two canonical graph nodes.
type GraphEdge struct {
	From EdgeEndpoint `json:"from"`
	To   EdgeEndpoint `json:"to"`
	Note string       `json:"note,omitempty"`
}

// CollectorSpec is the canonical-graph-level record of a collector
// declaration, resolved to node ids.
type CollectorSpec struct {
	Name        string `json:"name"`
	FromNodeID  string `json:"fromNodeId"`
	IntoNodeID  string `json:"intoNodeId"`
	GroupBy     string `json:"groupBy"`
	OrderBy     string `json:"orderBy,omitempty"`
}

// BlueprintGraph is the fully flattened canonical graph (spec.md §3.3).
type BlueprintGraph struct {
	Nodes      []*GraphNode
	Edges      []*GraphEdge
	Collectors []*CollectorSpec

	// DimensionLineage maps a qualified dimension symbol to its parent
	// symbol, or "" if it is a root dimension.
	DimensionLineage map[string]string
}
