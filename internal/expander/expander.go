// Package expander turns the canonical (pre-expansion) blueprint graph
// into the fully concrete producer graph ready for planning (spec.md
// §3.4, §4.6). It generalizes the single-pass, index-then-walk idiom of
// the teacher's pkg/planner/graph.go to a cartesian-product domain: every
// dimensioned node becomes one instance per coordinate tuple, every edge
// becomes a set of instance-to-instance pairings, and every collector
// folds a dimensioned artefact back into a lower-dimensional input.
package expander

import (
	"sort"

	"github.com/moviegen/forge/internal/schemas"
)

// Expander expands a BlueprintGraph plus a concrete set of input values
// into a ProducerGraph.
type Expander struct{}

// NewExpander creates a dimension expander.
func NewExpander() *Expander {
	return &Expander{}
}

type pendingJob struct {
	node  *schemas.GraphNode
	inst  instance
	jobID string
}

// Expand computes dimension cardinalities from inputValues (keyed by
// canonical input id), instantiates every node, and resolves job inputs,
// produces, and job-to-job dependency edges.
func (e *Expander) Expand(g *schemas.BlueprintGraph, inputValues map[string]interface{}) (*schemas.ProducerGraph, error) {
	card, err := computeCardinalities(g, inputValues)
	if err != nil {
		return nil, err
	}

	nodeByID := make(map[string]*schemas.GraphNode, len(g.Nodes))
	instancesByNode := make(map[string][]instance, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeByID[n.ID] = n
		instancesByNode[n.ID] = expandNode(n, card)
	}

	collectorsByInto := make(map[string]*schemas.CollectorSpec, len(g.Collectors))
	for _, c := range g.Collectors {
		collectorsByInto[c.IntoNodeID] = c
	}

	var jobs []pendingJob
	for _, n := range g.Nodes {
		if n.Type != schemas.NodeProducer {
			continue
		}
		for _, inst := range instancesByNode[n.ID] {
			jobs = append(jobs, pendingJob{node: n, inst: inst, jobID: inst.ID})
		}
	}

	producesByJob, producedBy := resolveProduces(g, nodeByID, instancesByNode, jobs)
	inputsByJob := resolveInputs(g, nodeByID, instancesByNode, collectorsByInto, jobs)

	pg := &schemas.ProducerGraph{}
	for _, job := range jobs {
		pg.Nodes = append(pg.Nodes, buildProducerGraphNode(job, inputsByJob[job.jobID], producesByJob[job.jobID]))
	}
	pg.Edges = buildJobEdges(jobs, inputsByJob, producedBy)

	return pg, nil
}

// resolveProduces walks every edge whose source is a job's producer node
// and whose target is an artefact node, recording which concrete artefact
// instances each job produces.
func resolveProduces(
	g *schemas.BlueprintGraph,
	nodeByID map[string]*schemas.GraphNode,
	instancesByNode map[string][]instance,
	jobs []pendingJob,
) (map[string][]string, map[string]string) {
	producesByJob := map[string][]string{}
	producedBy := map[string]string{}

	for _, job := range jobs {
		for _, e := range g.Edges {
			if e.From.NodeID != job.node.ID {
				continue
			}
			target := nodeByID[e.To.NodeID]
			if target == nil || target.Type != schemas.NodeArtefact {
				continue
			}
			shared := sharedDims(e.From.Dimensions, e.To.Dimensions)
			for _, targetInst := range instancesByNode[e.To.NodeID] {
				if !instancesMatch(job.inst, targetInst, shared) {
					continue
				}
				producesByJob[job.jobID] = appendUnique(producesByJob[job.jobID], targetInst.ID)
				producedBy[targetInst.ID] = job.jobID
			}
		}
	}
	return producesByJob, producedBy
}

// resolveInputs walks every edge whose target is a job's producer node,
// substituting a collector's folded instance list whenever the source is
// a fan-in input node.
func resolveInputs(
	g *schemas.BlueprintGraph,
	nodeByID map[string]*schemas.GraphNode,
	instancesByNode map[string][]instance,
	collectorsByInto map[string]*schemas.CollectorSpec,
	jobs []pendingJob,
) map[string][]string {
	inputsByJob := map[string][]string{}

	for _, job := range jobs {
		for _, e := range g.Edges {
			if e.To.NodeID != job.node.ID {
				continue
			}
			source := nodeByID[e.From.NodeID]
			if source == nil {
				continue
			}
			shared := sharedDims(e.From.Dimensions, e.To.Dimensions)
			for _, sourceInst := range instancesByNode[e.From.NodeID] {
				if !instancesMatch(sourceInst, job.inst, shared) {
					continue
				}
				if source.FanIn {
					if col, ok := collectorsByInto[source.ID]; ok {
						fromNode := nodeByID[col.FromNodeID]
						folded := foldCollector(col, fromNode, source, instancesByNode[col.FromNodeID], sourceInst)
						for _, id := range folded {
							inputsByJob[job.jobID] = appendUnique(inputsByJob[job.jobID], id)
						}
						continue
					}
				}
				inputsByJob[job.jobID] = appendUnique(inputsByJob[job.jobID], sourceInst.ID)
			}
		}
	}
	return inputsByJob
}

// foldCollector resolves which artefact instances fold into a single
// fan-in input instance, ordered by OrderBy when it names one of the
// producing node's own dimensions, else in expansion (insertion) order
// — the resolution recorded in DESIGN.md for spec.md's open ordering
// question.
func foldCollector(col *schemas.CollectorSpec, fromNode, intoNode *schemas.GraphNode, candidates []instance, intoInst instance) []string {
	shared := sharedDims(fromNode.Dimensions, intoNode.Dimensions)
	var matched []instance
	for _, c := range candidates {
		if instancesMatch(c, intoInst, shared) {
			matched = append(matched, c)
		}
	}

	if col.OrderBy != "" {
		if orderQName := qualifiedNameForRaw(fromNode.Dimensions, col.OrderBy); orderQName != "" {
			sort.SliceStable(matched, func(i, j int) bool {
				return matched[i].Coord[orderQName] < matched[j].Coord[orderQName]
			})
		}
	}

	ids := make([]string, len(matched))
	for i, m := range matched {
		ids[i] = m.ID
	}
	return ids
}

func buildProducerGraphNode(job pendingJob, inputs, produces []string) *schemas.ProducerGraphNode {
	indices := make(map[string]int, len(job.node.Dimensions))
	for _, d := range job.node.Dimensions {
		indices[d.Raw] = job.inst.Coord[d.QualifiedName()]
	}

	provider, model := "", ""
	if job.node.Producer != nil {
		provider = job.node.Producer.Provider
		model = job.node.Producer.Model
	}
	rateKey := provider
	if model != "" {
		rateKey = provider + ":" + model
	}

	qualifiedName := job.node.Name
	if job.node.NamespacePath != "" {
		qualifiedName = job.node.NamespacePath + "." + job.node.Name
	}

	return &schemas.ProducerGraphNode{
		JobID:         job.jobID,
		Producer:      job.node.Name,
		Inputs:        inputs,
		Produces:      produces,
		Provider:      provider,
		ProviderModel: model,
		RateKey:       rateKey,
		Context: schemas.JobContext{
			NamespacePath: job.node.NamespacePath,
			Indices:       indices,
			QualifiedName: qualifiedName,
			InputBindings: map[string]string{},
		},
	}
}

func buildJobEdges(jobs []pendingJob, inputsByJob map[string][]string, producedBy map[string]string) []*schemas.ProducerGraphEdge {
	var edges []*schemas.ProducerGraphEdge
	seen := map[[2]string]bool{}
	for _, job := range jobs {
		for _, id := range inputsByJob[job.jobID] {
			producer, ok := producedBy[id]
			if !ok || producer == job.jobID {
				continue
			}
			key := [2]string{producer, job.jobID}
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, &schemas.ProducerGraphEdge{From: producer, To: job.jobID})
		}
	}
	return edges
}
