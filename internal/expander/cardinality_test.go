package expander

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviegen/forge/internal/schemas"
)

func slot(scopeKey, raw string, ordinal int) schemas.DimensionSlot {
	return schemas.DimensionSlot{Scope: scopeKey, ScopeKey: scopeKey, Raw: raw, Ordinal: ordinal}
}

func TestComputeCardinalities_DirectCounter(t *testing.T) {
	g := &schemas.BlueprintGraph{
		Nodes: []*schemas.GraphNode{
			{ID: "Artifact:Segment", Type: schemas.NodeArtefact, Dimensions: []schemas.DimensionSlot{slot("", "segment", 0)}, CounterFor: "NumOfSegments"},
		},
		DimensionLineage: map[string]string{},
	}

	card, err := computeCardinalities(g, map[string]interface{}{"Input:NumOfSegments": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 3, card[slot("", "segment", 0).QualifiedName()])
}

func TestComputeCardinalities_InheritsViaLineage(t *testing.T) {
	segSlot := slot("", "segment", 0)
	imgSlot := slot("", "image", 1)
	g := &schemas.BlueprintGraph{
		Nodes: []*schemas.GraphNode{
			{ID: "Artifact:Segment", Type: schemas.NodeArtefact, Dimensions: []schemas.DimensionSlot{segSlot}, CounterFor: "NumOfSegments"},
			{ID: "Artifact:Image", Type: schemas.NodeArtefact, Dimensions: []schemas.DimensionSlot{imgSlot}},
		},
		DimensionLineage: map[string]string{
			imgSlot.QualifiedName(): segSlot.QualifiedName(),
		},
	}

	card, err := computeCardinalities(g, map[string]interface{}{"Input:NumOfSegments": 4.0})
	require.NoError(t, err)
	assert.Equal(t, 4, card[segSlot.QualifiedName()])
	assert.Equal(t, 4, card[imgSlot.QualifiedName()])
}

func TestComputeCardinalities_RootDimensionWithoutCounterDefaultsToOne(t *testing.T) {
	s := slot("", "segment", 0)
	g := &schemas.BlueprintGraph{
		Nodes: []*schemas.GraphNode{
			{ID: "Artifact:Segment", Type: schemas.NodeArtefact, Dimensions: []schemas.DimensionSlot{s}},
		},
		DimensionLineage: map[string]string{},
	}

	card, err := computeCardinalities(g, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, 1, card[s.QualifiedName()])
}

func TestComputeCardinalities_InvalidCounterValueErrors(t *testing.T) {
	g := &schemas.BlueprintGraph{
		Nodes: []*schemas.GraphNode{
			{ID: "Artifact:Segment", Type: schemas.NodeArtefact, Dimensions: []schemas.DimensionSlot{slot("", "segment", 0)}, CounterFor: "NumOfSegments"},
		},
		DimensionLineage: map[string]string{},
	}

	_, err := computeCardinalities(g, map[string]interface{}{"Input:NumOfSegments": "three"})
	assert.ErrorIs(t, err, ErrExpand)
}
