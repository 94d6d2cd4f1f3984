package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviegen/forge/internal/contracts"
	"github.com/moviegen/forge/internal/eventlog"
	"github.com/moviegen/forge/internal/schemas"
	"github.com/moviegen/forge/internal/storage"
)

type fixedResolver struct {
	fn  contracts.ProduceFunc
	err error
}

func (f *fixedResolver) Resolve(provider, model string) (contracts.ProduceFunc, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fn, nil
}

func newTestRunner(t *testing.T, resolver contracts.ProviderResolver, opts ...Option) (*Runner, *storage.Context, *eventlog.Log) {
	t.Helper()
	sc := storage.NewContext(storage.NewMemoryBackend())
	el := eventlog.New(sc)
	require.NoError(t, sc.InitializeMovieStorage(context.Background(), "movie-1", storage.InitOptions{SeedCurrentJSON: true}))
	return NewRunner(sc, el, resolver, schemas.FixedClock("2026-01-01T00:00:00Z"), opts...), sc, el
}

func collectArtefacts(t *testing.T, el *eventlog.Log, movieID string) []schemas.ArtefactEvent {
	t.Helper()
	var events []schemas.ArtefactEvent
	for ev, err := range el.StreamArtefacts(context.Background(), movieID, nil) {
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func TestRunner_ExecutesSingleLayerAndAppendsArtefactEvents(t *testing.T) {
	stub := contracts.NewStubProducer()
	resolver := &fixedResolver{fn: stub.Produce}
	r, _, el := newTestRunner(t, resolver)

	plan := &schemas.ExecutionPlan{
		Revision: "rev-0001",
		Layers: [][]schemas.Job{
			{{JobID: "Producer:Script", Produces: []string{"Artifact:Script"}}},
		},
	}

	result, err := r.Execute(context.Background(), plan, ExecuteOptions{MovieID: "movie-1"})
	require.NoError(t, err)
	require.Len(t, result.JobResults, 1)
	assert.Equal(t, schemas.StatusSucceeded, result.JobResults[0].Status)

	events := collectArtefacts(t, el, "movie-1")
	require.Len(t, events, 1)
	assert.Equal(t, "Artifact:Script", events[0].ArtefactID)
	assert.Equal(t, schemas.StatusSucceeded, events[0].Status)
}

func TestRunner_LayersRunSequentiallyAndLaterLayerSeesEarlierArtefact(t *testing.T) {
	resolver := &fixedResolver{fn: func(ctx context.Context, req contracts.ProduceRequest) (contracts.ProduceResult, error) {
		if req.Job.JobID == "Producer:Consumer" {
			require.Len(t, req.Inputs, 1)
			assert.Equal(t, "Artifact:Script", req.Inputs[0].ID)
			assert.Equal(t, "stub-output:Producer:Script:Artifact:Script", req.Inputs[0].Value)
		}
		artefacts := make([]contracts.ProducedArtefact, 0, len(req.Job.Produces))
		for _, id := range req.Job.Produces {
			content := "stub-output:" + req.Job.JobID + ":" + id
			artefacts = append(artefacts, contracts.ProducedArtefact{ArtefactID: id, Status: schemas.StatusSucceeded, Inline: &content})
		}
		return contracts.ProduceResult{Status: schemas.StatusSucceeded, Artefacts: artefacts}, nil
	}}
	r, _, _ := newTestRunner(t, resolver)

	plan := &schemas.ExecutionPlan{
		Revision: "rev-0001",
		Layers: [][]schemas.Job{
			{{JobID: "Producer:Script", Produces: []string{"Artifact:Script"}}},
			{{JobID: "Producer:Consumer", Inputs: []string{"Artifact:Script"}, Produces: []string{"Artifact:Final"}}},
		},
	}

	result, err := r.Execute(context.Background(), plan, ExecuteOptions{MovieID: "movie-1"})
	require.NoError(t, err)
	require.Len(t, result.JobResults, 2)
	for _, jr := range result.JobResults {
		assert.Equal(t, schemas.StatusSucceeded, jr.Status)
	}
}

func TestRunner_ProduceErrorFailsJobWithoutAbortingLayer(t *testing.T) {
	resolver := &fixedResolver{fn: func(ctx context.Context, req contracts.ProduceRequest) (contracts.ProduceResult, error) {
		if req.Job.JobID == "Producer:Broken" {
			return contracts.ProduceResult{}, errors.New("boom")
		}
		artefacts := make([]contracts.ProducedArtefact, 0, len(req.Job.Produces))
		for _, id := range req.Job.Produces {
			content := "ok"
			artefacts = append(artefacts, contracts.ProducedArtefact{ArtefactID: id, Status: schemas.StatusSucceeded, Inline: &content})
		}
		return contracts.ProduceResult{Status: schemas.StatusSucceeded, Artefacts: artefacts}, nil
	}}
	r, _, el := newTestRunner(t, resolver, WithConcurrency(4))

	plan := &schemas.ExecutionPlan{
		Revision: "rev-0001",
		Layers: [][]schemas.Job{
			{
				{JobID: "Producer:Broken", Produces: []string{"Artifact:Broken"}},
				{JobID: "Producer:Fine", Produces: []string{"Artifact:Fine"}},
			},
		},
	}

	result, err := r.Execute(context.Background(), plan, ExecuteOptions{MovieID: "movie-1"})
	require.NoError(t, err)
	require.Len(t, result.JobResults, 2)

	statusByJob := map[string]schemas.ArtefactStatus{}
	for _, jr := range result.JobResults {
		statusByJob[jr.JobID] = jr.Status
	}
	assert.Equal(t, schemas.StatusFailed, statusByJob["Producer:Broken"])
	assert.Equal(t, schemas.StatusSucceeded, statusByJob["Producer:Fine"])

	events := collectArtefacts(t, el, "movie-1")
	require.Len(t, events, 2)
}

func TestRunner_CancellationStopsBeforeNextLayer(t *testing.T) {
	stub := contracts.NewStubProducer()
	resolver := &fixedResolver{fn: stub.Produce}
	r, _, el := newTestRunner(t, resolver)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &schemas.ExecutionPlan{
		Revision: "rev-0001",
		Layers: [][]schemas.Job{
			{{JobID: "Producer:Script", Produces: []string{"Artifact:Script"}}},
		},
	}

	result, err := r.Execute(ctx, plan, ExecuteOptions{MovieID: "movie-1"})
	require.NoError(t, err)
	assert.Len(t, result.JobResults, 0)

	events := collectArtefacts(t, el, "movie-1")
	assert.Len(t, events, 0)
}

func TestRunner_CallbackLevelFailureOverridesSucceededArtefacts(t *testing.T) {
	resolver := &fixedResolver{fn: func(ctx context.Context, req contracts.ProduceRequest) (contracts.ProduceResult, error) {
		content := "partial"
		artefacts := []contracts.ProducedArtefact{{ArtefactID: "Artifact:Script", Status: schemas.StatusSucceeded, Inline: &content}}
		return contracts.ProduceResult{Status: schemas.StatusFailed, Artefacts: artefacts}, nil
	}}
	r, _, _ := newTestRunner(t, resolver)

	plan := &schemas.ExecutionPlan{
		Revision: "rev-0001",
		Layers: [][]schemas.Job{
			{{JobID: "Producer:Script", Produces: []string{"Artifact:Script"}}},
		},
	}

	result, err := r.Execute(context.Background(), plan, ExecuteOptions{MovieID: "movie-1"})
	require.NoError(t, err)
	require.Len(t, result.JobResults, 1)
	assert.Equal(t, schemas.StatusFailed, result.JobResults[0].Status)
}

func TestRunner_CallbackLevelSkippedWithNoArtefactsIsSkipped(t *testing.T) {
	resolver := &fixedResolver{fn: func(ctx context.Context, req contracts.ProduceRequest) (contracts.ProduceResult, error) {
		return contracts.ProduceResult{Status: schemas.StatusSkipped}, nil
	}}
	r, _, _ := newTestRunner(t, resolver)

	plan := &schemas.ExecutionPlan{
		Revision: "rev-0001",
		Layers: [][]schemas.Job{
			{{JobID: "Producer:Script", Produces: []string{"Artifact:Script"}}},
		},
	}

	result, err := r.Execute(context.Background(), plan, ExecuteOptions{MovieID: "movie-1"})
	require.NoError(t, err)
	require.Len(t, result.JobResults, 1)
	assert.Equal(t, schemas.StatusSkipped, result.JobResults[0].Status)
}

func TestRunner_UnresolvableInputFailsJob(t *testing.T) {
	resolver := &fixedResolver{fn: func(ctx context.Context, req contracts.ProduceRequest) (contracts.ProduceResult, error) {
		t.Fatal("produce should not be invoked when inputs cannot resolve")
		return contracts.ProduceResult{}, nil
	}}
	r, _, _ := newTestRunner(t, resolver)

	plan := &schemas.ExecutionPlan{
		Revision: "rev-0001",
		Layers: [][]schemas.Job{
			{{JobID: "Producer:Consumer", Inputs: []string{"Artifact:Missing"}, Produces: []string{"Artifact:Final"}}},
		},
	}

	result, err := r.Execute(context.Background(), plan, ExecuteOptions{MovieID: "movie-1"})
	require.NoError(t, err)
	require.Len(t, result.JobResults, 1)
	assert.Equal(t, schemas.StatusFailed, result.JobResults[0].Status)
}
