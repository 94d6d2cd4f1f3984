// Package planner derives the dirty job set from a manifest, an
// expanded producer graph, and a set of pending edits, and layers it
// into a topologically valid ExecutionPlan (spec.md §4.7). It
// generalizes the teacher's pkg/planner/sort.go topological sort (same
// Kahn's-algorithm-by-indegree shape, same stable jobId tie-break) from
// a single static plan to an induced dirty subgraph recomputed per run.
package planner

import (
	"fmt"
	"sort"

	"github.com/moviegen/forge/internal/schemas"
)

// Planner computes an ExecutionPlan from a manifest and a producer graph.
type Planner struct{}

// NewPlanner creates a planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Edit names an id whose current hash differs from what is recorded in
// the manifest — either a pending input edit or an out-of-band artefact
// divergence (spec.md §4.7 steps 1-2).
type Edit struct {
	ID   string
	Hash string
}

// PlanOptions carries everything Plan needs to derive and layer the
// dirty job set.
type PlanOptions struct {
	Manifest         schemas.Manifest
	Graph            *schemas.ProducerGraph
	TargetRevision   string
	ManifestBaseHash *string
	PendingEdits     []Edit
	ArtefactEdits    []Edit
	Clock            schemas.Clock
}

// Plan implements spec.md §4.7 steps 1-6.
//
// Artefact divergence (ArtefactEdits) marks an id "changed" so that any
// job *consuming* it as an input is recomputed (rule a), but it never by
// itself marks the job that *produced* that id dirty — that is the
// manual-edit edge case (§4.7 edge case ii): the producer is skipped,
// only its consumers re-run.
func (p *Planner) Plan(opts PlanOptions) (*schemas.ExecutionPlan, error) {
	nodeByID := make(map[string]*schemas.ProducerGraphNode, len(opts.Graph.Nodes))
	producedBy := make(map[string]string, len(opts.Graph.Nodes))
	for _, n := range opts.Graph.Nodes {
		nodeByID[n.JobID] = n
		for _, id := range n.Produces {
			if existing, ok := producedBy[id]; ok {
				return nil, fmt.Errorf("%w: %q claimed by both %q and %q", ErrDuplicateProduces, id, existing, n.JobID)
			}
			producedBy[id] = n.JobID
		}
	}

	changed := make(map[string]bool)
	for _, e := range opts.PendingEdits {
		if existing, ok := opts.Manifest.Inputs[e.ID]; !ok || existing.Hash != e.Hash {
			changed[e.ID] = true
		}
	}
	for _, e := range opts.ArtefactEdits {
		if existing, ok := opts.Manifest.Artefacts[e.ID]; !ok || existing.Hash != e.Hash {
			changed[e.ID] = true
		}
	}

	order, err := topoOrder(opts.Graph.Nodes, opts.Graph.Edges)
	if err != nil {
		return nil, err
	}

	dirty := make(map[string]bool)
	for _, jobID := range order {
		job := nodeByID[jobID]

		isDirty := false
		for _, in := range job.Inputs {
			if changed[in] {
				isDirty = true
				break
			}
			if producer, ok := producedBy[in]; ok && dirty[producer] {
				isDirty = true
				break
			}
		}
		if !isDirty {
			for _, out := range job.Produces {
				if _, ok := opts.Manifest.Artefacts[out]; !ok {
					isDirty = true
					break
				}
			}
		}

		if isDirty {
			dirty[jobID] = true
		}
	}

	var dirtyNodes []*schemas.ProducerGraphNode
	for _, jobID := range order {
		if dirty[jobID] {
			dirtyNodes = append(dirtyNodes, nodeByID[jobID])
		}
	}
	var dirtyEdges []*schemas.ProducerGraphEdge
	for _, e := range opts.Graph.Edges {
		if dirty[e.From] && dirty[e.To] {
			dirtyEdges = append(dirtyEdges, e)
		}
	}

	layers, err := layerDirtySubgraph(dirtyNodes, dirtyEdges)
	if err != nil {
		return nil, err
	}

	planLayers := make([][]schemas.Job, len(layers))
	for i, layer := range layers {
		jobs := make([]schemas.Job, len(layer))
		for j, n := range layer {
			jobs[j] = schemas.Job{
				JobID:         n.JobID,
				Producer:      n.Producer,
				Inputs:        n.Inputs,
				Produces:      n.Produces,
				Provider:      n.Provider,
				ProviderModel: n.ProviderModel,
				RateKey:       n.RateKey,
				Context:       n.Context,
			}
		}
		planLayers[i] = jobs
	}

	return &schemas.ExecutionPlan{
		Revision:         opts.TargetRevision,
		ManifestBaseHash: opts.ManifestBaseHash,
		Layers:           planLayers,
		CreatedAt:        opts.Clock.Now(),
	}, nil
}

// topoOrder returns a topological order over the full producer graph,
// used only to process dirty propagation upstream-before-downstream.
func topoOrder(nodes []*schemas.ProducerGraphNode, edges []*schemas.ProducerGraphEdge) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		inDegree[n.JobID] = 0
	}
	for _, e := range edges {
		inDegree[e.To]++
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n.JobID] == 0 {
			queue = append(queue, n.JobID)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		sort.Strings(queue)
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		var next []string
		for _, successor := range adjacency[id] {
			inDegree[successor]--
			if inDegree[successor] == 0 {
				next = append(next, successor)
			}
		}
		sort.Strings(next)
		queue = append(queue, next...)
	}

	if len(order) != len(nodes) {
		processed := make(map[string]bool, len(order))
		for _, id := range order {
			processed[id] = true
		}
		return nil, cycleError(nodes, edges, processed, "full producer graph")
	}
	return order, nil
}

// cycleError names at least one cycle participant (spec.md line 186):
// an edge whose endpoints are both still unprocessed when the
// topological sort stalls identifies two nodes on the same cycle;
// falling back to a single unprocessed node id covers the degenerate
// case where no such edge is found.
func cycleError(nodes []*schemas.ProducerGraphNode, edges []*schemas.ProducerGraphEdge, processed map[string]bool, context string) error {
	for _, e := range edges {
		if !processed[e.From] && !processed[e.To] {
			return fmt.Errorf("%w: %s: %s -> %s", ErrCycle, context, e.From, e.To)
		}
	}
	for _, n := range nodes {
		if !processed[n.JobID] {
			return fmt.Errorf("%w: %s: %s", ErrCycle, context, n.JobID)
		}
	}
	return fmt.Errorf("%w: %s", ErrCycle, context)
}

// layerDirtySubgraph computes Kahn's-algorithm layers over the dirty
// subgraph only (spec.md §4.7 step 4): layer 0 is dirty jobs with no
// dirty predecessor, layer k is jobs whose every dirty predecessor sits
// in layers <k. Each layer is sorted by jobId for deterministic tests.
func layerDirtySubgraph(nodes []*schemas.ProducerGraphNode, edges []*schemas.ProducerGraphEdge) ([][]*schemas.ProducerGraphNode, error) {
	inDegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))
	byID := make(map[string]*schemas.ProducerGraphNode, len(nodes))
	for _, n := range nodes {
		inDegree[n.JobID] = 0
		byID[n.JobID] = n
	}
	for _, e := range edges {
		inDegree[e.To]++
		adjacency[e.From] = append(adjacency[e.From], e.To)
	}

	remaining := len(nodes)
	var layers [][]*schemas.ProducerGraphNode

	current := make([]string, 0)
	for id, d := range inDegree {
		if d == 0 {
			current = append(current, id)
		}
	}

	for len(current) > 0 {
		sort.Strings(current)
		layer := make([]*schemas.ProducerGraphNode, len(current))
		for i, id := range current {
			layer[i] = byID[id]
		}
		layers = append(layers, layer)
		remaining -= len(current)

		var next []string
		for _, id := range current {
			for _, successor := range adjacency[id] {
				inDegree[successor]--
				if inDegree[successor] == 0 {
					next = append(next, successor)
				}
			}
		}
		current = next
	}

	if remaining != 0 {
		processed := make(map[string]bool, len(nodes)-remaining)
		for _, layer := range layers {
			for _, n := range layer {
				processed[n.JobID] = true
			}
		}
		return nil, cycleError(nodes, edges, processed, "dirty subgraph")
	}
	return layers, nil
}
