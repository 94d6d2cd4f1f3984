// Package graph builds the canonical (pre-expansion) flattened graph from
// a resolved blueprint tree (spec.md §3.3, §4.5).
package graph

import (
	"fmt"

	"github.com/moviegen/forge/internal/schemas"
)

// Index wraps schemas.BlueprintGraph with the adjacency lookups a
// consumer needs, grounded directly on the teacher's pkg/planner/graph.go
// (node index + outgoing/incoming edge maps + DFS cycle detection); only
// the node/edge payload changed, from a flat PlanNode/PlanEdge pair to
// dimension-qualified GraphNode/GraphEdge.
type Index struct {
	Graph *schemas.BlueprintGraph

	nodeIndex map[string]*schemas.GraphNode
	outgoing  map[string][]*schemas.GraphEdge
	incoming  map[string][]*schemas.GraphEdge
}

// NewIndex builds the adjacency lookups over an already-built
// BlueprintGraph.
func NewIndex(g *schemas.BlueprintGraph) *Index {
	idx := &Index{
		Graph:     g,
		nodeIndex: make(map[string]*schemas.GraphNode, len(g.Nodes)),
		outgoing:  make(map[string][]*schemas.GraphEdge),
		incoming:  make(map[string][]*schemas.GraphEdge),
	}
	for _, n := range g.Nodes {
		idx.nodeIndex[n.ID] = n
	}
	for _, e := range g.Edges {
		idx.outgoing[e.From.NodeID] = append(idx.outgoing[e.From.NodeID], e)
		idx.incoming[e.To.NodeID] = append(idx.incoming[e.To.NodeID], e)
	}
	return idx
}

// GetNode retrieves a node by id.
func (idx *Index) GetNode(id string) *schemas.GraphNode {
	return idx.nodeIndex[id]
}

// Outgoing returns every edge leaving nodeID.
func (idx *Index) Outgoing(nodeID string) []*schemas.GraphEdge {
	return idx.outgoing[nodeID]
}

// Incoming returns every edge entering nodeID.
func (idx *Index) Incoming(nodeID string) []*schemas.GraphEdge {
	return idx.incoming[nodeID]
}

// DetectCycles walks the graph via DFS and returns an error naming the
// first cycle found, matching the teacher's dfsCheckCycle message shape.
func (idx *Index) DetectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, node := range idx.Graph.Nodes {
		if !visited[node.ID] {
			if err := idx.dfsCheckCycle(node.ID, visited, recStack); err != nil {
				return err
			}
		}
	}
	return nil
}

func (idx *Index) dfsCheckCycle(nodeID string, visited, recStack map[string]bool) error {
	visited[nodeID] = true
	recStack[nodeID] = true

	for _, edge := range idx.Outgoing(nodeID) {
		successor := edge.To.NodeID
		if !visited[successor] {
			if err := idx.dfsCheckCycle(successor, visited, recStack); err != nil {
				return err
			}
		} else if recStack[successor] {
			return fmt.Errorf("%w: %s -> %s", ErrBlueprintGraph, nodeID, successor)
		}
	}

	recStack[nodeID] = false
	return nil
}
