package planner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviegen/forge/internal/schemas"
)

func chainGraph(aInputs []string) *schemas.ProducerGraph {
	return &schemas.ProducerGraph{
		Nodes: []*schemas.ProducerGraphNode{
			{JobID: "A", Producer: "A", Inputs: aInputs, Produces: []string{"Artifact:X"}},
			{JobID: "B", Producer: "B", Inputs: []string{"Artifact:X"}, Produces: []string{"Artifact:Y"}},
			{JobID: "C", Producer: "C", Inputs: []string{"Artifact:Y"}, Produces: []string{"Artifact:Z"}},
		},
		Edges: []*schemas.ProducerGraphEdge{
			{From: "A", To: "B"},
			{From: "B", To: "C"},
		},
	}
}

func fullManifest() schemas.Manifest {
	return schemas.Manifest{
		Revision: "rev-0001",
		Inputs: map[string]schemas.InputSnapshot{
			"Input:Prompt": {Hash: "old-prompt-hash"},
		},
		Artefacts: map[string]schemas.ArtefactSnapshot{
			"Artifact:X": {Hash: "hash-x"},
			"Artifact:Y": {Hash: "hash-y"},
			"Artifact:Z": {Hash: "hash-z"},
		},
	}
}

func jobIDs(layer []schemas.Job) []string {
	ids := make([]string, len(layer))
	for i, j := range layer {
		ids[i] = j.JobID
	}
	return ids
}

func TestPlan_FreshManifestMarksEveryJobDirty(t *testing.T) {
	g := chainGraph(nil)
	plan, err := NewPlanner().Plan(PlanOptions{
		Manifest:       schemas.Manifest{},
		Graph:          g,
		TargetRevision: "rev-0001",
		Clock:          schemas.FixedClock("2026-01-01T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Len(t, plan.Layers, 3)
	assert.Equal(t, []string{"A"}, jobIDs(plan.Layers[0]))
	assert.Equal(t, []string{"B"}, jobIDs(plan.Layers[1]))
	assert.Equal(t, []string{"C"}, jobIDs(plan.Layers[2]))
}

func TestPlan_NoChangesYieldsEmptyPlan(t *testing.T) {
	g := chainGraph(nil)
	plan, err := NewPlanner().Plan(PlanOptions{
		Manifest:       fullManifest(),
		Graph:          g,
		TargetRevision: "rev-0002",
		Clock:          schemas.FixedClock("2026-01-01T00:00:00Z"),
	})
	require.NoError(t, err)
	assert.True(t, plan.IsEmpty())
}

func TestPlan_ChangedInputPropagatesThroughWholeChain(t *testing.T) {
	g := chainGraph([]string{"Input:Prompt"})
	plan, err := NewPlanner().Plan(PlanOptions{
		Manifest:       fullManifest(),
		Graph:          g,
		TargetRevision: "rev-0002",
		PendingEdits:   []Edit{{ID: "Input:Prompt", Hash: "new-prompt-hash"}},
		Clock:          schemas.FixedClock("2026-01-01T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Len(t, plan.Layers, 3)
	assert.Equal(t, []string{"A"}, jobIDs(plan.Layers[0]))
	assert.Equal(t, []string{"B"}, jobIDs(plan.Layers[1]))
	assert.Equal(t, []string{"C"}, jobIDs(plan.Layers[2]))
}

func TestPlan_ManualArtefactEditSkipsProducerButDirtiesConsumer(t *testing.T) {
	g := chainGraph(nil)
	plan, err := NewPlanner().Plan(PlanOptions{
		Manifest:       fullManifest(),
		Graph:          g,
		TargetRevision: "rev-0002",
		ArtefactEdits:  []Edit{{ID: "Artifact:Y", Hash: "manually-edited-hash"}},
		Clock:          schemas.FixedClock("2026-01-01T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Len(t, plan.Layers, 1)
	assert.Equal(t, []string{"C"}, jobIDs(plan.Layers[0]))
}

func TestPlan_MissingManifestArtefactMarksJobDirty(t *testing.T) {
	g := chainGraph(nil)
	m := fullManifest()
	delete(m.Artefacts, "Artifact:Z")

	plan, err := NewPlanner().Plan(PlanOptions{
		Manifest:       m,
		Graph:          g,
		TargetRevision: "rev-0002",
		Clock:          schemas.FixedClock("2026-01-01T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Len(t, plan.Layers, 1)
	assert.Equal(t, []string{"C"}, jobIDs(plan.Layers[0]))
}

func TestPlan_DuplicateProducesIsDetected(t *testing.T) {
	g := &schemas.ProducerGraph{
		Nodes: []*schemas.ProducerGraphNode{
			{JobID: "A", Produces: []string{"Artifact:X"}},
			{JobID: "B", Produces: []string{"Artifact:X"}},
		},
	}

	_, err := NewPlanner().Plan(PlanOptions{
		Manifest:       schemas.Manifest{},
		Graph:          g,
		TargetRevision: "rev-0001",
		Clock:          schemas.FixedClock("2026-01-01T00:00:00Z"),
	})
	assert.ErrorIs(t, err, ErrDuplicateProduces)
}

func TestPlan_CycleInFullGraphIsDetected(t *testing.T) {
	g := &schemas.ProducerGraph{
		Nodes: []*schemas.ProducerGraphNode{
			{JobID: "A", Produces: []string{"Artifact:X"}, Inputs: []string{"Artifact:Y"}},
			{JobID: "B", Produces: []string{"Artifact:Y"}, Inputs: []string{"Artifact:X"}},
		},
		Edges: []*schemas.ProducerGraphEdge{
			{From: "A", To: "B"},
			{From: "B", To: "A"},
		},
	}

	_, err := NewPlanner().Plan(PlanOptions{
		Manifest:       schemas.Manifest{},
		Graph:          g,
		TargetRevision: "rev-0001",
		Clock:          schemas.FixedClock("2026-01-01T00:00:00Z"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	assert.Condition(t, func() bool {
		msg := err.Error()
		return strings.Contains(msg, "A") || strings.Contains(msg, "B")
	}, "expected error to name a cycle participant, got %q", err)
}
