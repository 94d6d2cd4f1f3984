package contracts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviegen/forge/internal/schemas"
)

func TestStubProducer_ProducesInlineArtefactPerDeclaredOutput(t *testing.T) {
	s := NewStubProducer()
	req := ProduceRequest{
		MovieID: "movie-1",
		Job:     schemas.Job{JobID: "Producer:X[segment=0]", Produces: []string{"Artifact:X[segment=0]"}},
	}

	result, err := s.Produce(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Artefacts, 1)
	assert.Equal(t, schemas.StatusSucceeded, result.Artefacts[0].Status)
	require.NotNil(t, result.Artefacts[0].Inline)
	assert.Contains(t, *result.Artefacts[0].Inline, "Producer:X[segment=0]")
}

func TestStubProducer_RespectsOverriddenStatus(t *testing.T) {
	s := NewStubProducer(WithStubStatus(schemas.StatusFailed))
	req := ProduceRequest{Job: schemas.Job{JobID: "J", Produces: []string{"Artifact:Y"}}}

	result, err := s.Produce(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusFailed, result.Artefacts[0].Status)
}

func TestStubProducer_RespectsCancellation(t *testing.T) {
	s := NewStubProducer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Produce(ctx, ProduceRequest{Job: schemas.Job{JobID: "J"}})
	assert.ErrorIs(t, err, context.Canceled)
}
