package planning

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviegen/forge/internal/blueprint"
	"github.com/moviegen/forge/internal/contracts"
	"github.com/moviegen/forge/internal/eventlog"
	"github.com/moviegen/forge/internal/expander"
	"github.com/moviegen/forge/internal/graph"
	"github.com/moviegen/forge/internal/manifest"
	"github.com/moviegen/forge/internal/planner"
	"github.com/moviegen/forge/internal/schemas"
	"github.com/moviegen/forge/internal/storage"
)

const fixtureYAML = `
meta:
  id: root
  name: Root Blueprint
inputs:
  - name: Prompt
    type: string
    required: true
  - name: Volume
    type: number
    required: false
    defaultValue: 1
artefacts:
  - name: Script
    type: string
producers:
  - name: ScriptProducer
    provider: stub
edges:
  - from: Prompt
    to: ScriptProducer
  - from: Volume
    to: ScriptProducer
  - from: ScriptProducer
    to: Script
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "root.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))
	return path
}

func newTestService(t *testing.T) (*Service, *storage.Context, *eventlog.Log, *manifest.Service) {
	t.Helper()
	sc := storage.NewContext(storage.NewMemoryBackend())
	el := eventlog.New(sc)
	ms := manifest.New(sc)
	clock := schemas.FixedClock("2026-01-01T00:00:00Z")
	svc := NewService(sc, el, ms, blueprint.NewLoader(), graph.NewBuilder(), expander.NewExpander(), planner.NewPlanner(), clock)
	return svc, sc, el, ms
}

func TestService_GeneratePlan_FreshMovieBuildsPlanAndAppliesDefaults(t *testing.T) {
	svc, sc, _, _ := newTestService(t)
	require.NoError(t, sc.InitializeMovieStorage(context.Background(), "movie-1", storage.InitOptions{SeedCurrentJSON: false}))
	path := writeFixture(t)

	result, err := svc.GeneratePlan(context.Background(), GenerateOptions{
		MovieID:       "movie-1",
		BlueprintPath: path,
		Inputs: []InputEdit{
			{ID: "Input:Prompt", Payload: "hello", EditedBy: schemas.EditedByUser},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "rev-0001", result.TargetRevision)
	assert.Equal(t, "rev-0001", result.Plan.Revision)
	assert.False(t, result.Plan.IsEmpty())
	assert.Equal(t, "hello", result.ResolvedInputs["Input:Prompt"])
	assert.EqualValues(t, 1, result.ResolvedInputs["Input:Volume"])
	require.Len(t, result.InputEvents, 2)

	exists, err := sc.FileExists(context.Background(), result.PlanPath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestService_GeneratePlan_RejectsNonCanonicalInputID(t *testing.T) {
	svc, sc, _, _ := newTestService(t)
	require.NoError(t, sc.InitializeMovieStorage(context.Background(), "movie-1", storage.InitOptions{SeedCurrentJSON: false}))
	path := writeFixture(t)

	_, err := svc.GeneratePlan(context.Background(), GenerateOptions{
		MovieID:       "movie-1",
		BlueprintPath: path,
		Inputs:        []InputEdit{{ID: "Prompt", Payload: "hello", EditedBy: schemas.EditedByUser}},
	})
	assert.ErrorIs(t, err, ErrInvalidInputID)
}

func TestService_GeneratePlan_PicksNextFreeRevisionPastAnExistingPlanFile(t *testing.T) {
	svc, sc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, sc.InitializeMovieStorage(ctx, "movie-1", storage.InitOptions{SeedCurrentJSON: false}))
	collidePath, err := sc.Resolve("movie-1", "runs/rev-0001-plan.json")
	require.NoError(t, err)
	require.NoError(t, sc.WriteAtomic(ctx, collidePath, []byte("{}"), "application/json"))
	path := writeFixture(t)

	result, err := svc.GeneratePlan(ctx, GenerateOptions{
		MovieID:       "movie-1",
		BlueprintPath: path,
		Inputs:        []InputEdit{{ID: "Input:Prompt", Payload: "hello", EditedBy: schemas.EditedByUser}},
	})
	require.NoError(t, err)
	assert.Equal(t, "rev-0002", result.TargetRevision)
}

func TestService_GeneratePlan_NoChangesAfterManifestPromotionYieldsEmptyPlan(t *testing.T) {
	svc, sc, el, ms := newTestService(t)
	ctx := context.Background()
	require.NoError(t, sc.InitializeMovieStorage(ctx, "movie-1", storage.InitOptions{SeedCurrentJSON: false}))
	path := writeFixture(t)
	clock := schemas.FixedClock("2026-01-01T00:00:00Z")

	first, err := svc.GeneratePlan(ctx, GenerateOptions{
		MovieID:       "movie-1",
		BlueprintPath: path,
		Inputs:        []InputEdit{{ID: "Input:Prompt", Payload: "hello", EditedBy: schemas.EditedByUser}},
	})
	require.NoError(t, err)
	require.Len(t, first.Plan.Layers, 1)
	require.Len(t, first.Plan.Layers[0], 1)
	job := first.Plan.Layers[0][0]

	for _, artefactID := range job.Produces {
		err := el.AppendArtefact(ctx, "movie-1", schemas.ArtefactEvent{
			ArtefactID: artefactID,
			Revision:   first.TargetRevision,
			InputsHash: "irrelevant-for-this-test",
			Output:     schemas.ArtefactOutput{Inline: strPtr("stub-script")},
			Status:     schemas.StatusSucceeded,
			ProducedBy: job.JobID,
			CreatedAt:  clock.Now(),
		})
		require.NoError(t, err)
	}

	built, err := ms.BuildFromEvents(ctx, manifest.BuildOptions{
		MovieID:        "movie-1",
		TargetRevision: first.TargetRevision,
		BaseRevision:   nil,
		EventLog:       el,
		Clock:          clock,
	})
	require.NoError(t, err)
	_, err = ms.SaveManifest(ctx, built, manifest.SaveOptions{MovieID: "movie-1", PreviousHash: nil, Clock: clock})
	require.NoError(t, err)

	second, err := svc.GeneratePlan(ctx, GenerateOptions{
		MovieID:       "movie-1",
		BlueprintPath: path,
		Inputs:        []InputEdit{{ID: "Input:Prompt", Payload: "hello", EditedBy: schemas.EditedByUser}},
	})
	require.NoError(t, err)
	assert.True(t, second.Plan.IsEmpty())
}

func TestService_GeneratePlan_DerivesEditedByFromVerifiedPrincipal(t *testing.T) {
	sc := storage.NewContext(storage.NewMemoryBackend())
	el := eventlog.New(sc)
	ms := manifest.New(sc)
	clock := schemas.FixedClock("2026-01-01T00:00:00Z")
	pm := contracts.NewPrincipalManager("test-secret", time.Hour)
	svc := NewService(sc, el, ms, blueprint.NewLoader(), graph.NewBuilder(), expander.NewExpander(), planner.NewPlanner(), clock, WithPrincipalManager(pm))

	ctx := context.Background()
	require.NoError(t, sc.InitializeMovieStorage(ctx, "movie-1", storage.InitOptions{SeedCurrentJSON: false}))
	path := writeFixture(t)

	token, err := pm.Issue("user-7", "u7@example.com", "workflow")
	require.NoError(t, err)

	result, err := svc.GeneratePlan(ctx, GenerateOptions{
		MovieID:       "movie-1",
		BlueprintPath: path,
		PrincipalToken: &token,
		// EditedBy left unset so the verified principal's role backfills it.
		Inputs: []InputEdit{{ID: "Input:Prompt", Payload: "hello"}},
	})
	require.NoError(t, err)

	var promptEvent schemas.InputEvent
	for _, ev := range result.InputEvents {
		if ev.ID == "Input:Prompt" {
			promptEvent = ev
		}
	}
	assert.Equal(t, schemas.EditedByWorkflow, promptEvent.EditedBy)
}

func TestService_GeneratePlan_RejectsInvalidPrincipalToken(t *testing.T) {
	sc := storage.NewContext(storage.NewMemoryBackend())
	el := eventlog.New(sc)
	ms := manifest.New(sc)
	clock := schemas.FixedClock("2026-01-01T00:00:00Z")
	pm := contracts.NewPrincipalManager("test-secret", time.Hour)
	svc := NewService(sc, el, ms, blueprint.NewLoader(), graph.NewBuilder(), expander.NewExpander(), planner.NewPlanner(), clock, WithPrincipalManager(pm))

	ctx := context.Background()
	require.NoError(t, sc.InitializeMovieStorage(ctx, "movie-1", storage.InitOptions{SeedCurrentJSON: false}))
	path := writeFixture(t)

	bogus := "not-a-real-token"
	_, err := svc.GeneratePlan(ctx, GenerateOptions{
		MovieID:        "movie-1",
		BlueprintPath:  path,
		PrincipalToken: &bogus,
		Inputs:         []InputEdit{{ID: "Input:Prompt", Payload: "hello"}},
	})
	assert.ErrorIs(t, err, contracts.ErrInvalidPrincipal)
}

func strPtr(s string) *string { return &s }
