// Package main provides the forge command-line entry point: one
// generate-plan-then-execute cycle for a single movie, then exit. The
// CLI surface itself is explicitly out of scope (spec.md §1); this binary
// exists only to demonstrate the core wired end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/moviegen/forge/internal/blueprint"
	"github.com/moviegen/forge/internal/contracts"
	"github.com/moviegen/forge/internal/eventlog"
	"github.com/moviegen/forge/internal/expander"
	"github.com/moviegen/forge/internal/graph"
	"github.com/moviegen/forge/internal/manifest"
	"github.com/moviegen/forge/internal/planner"
	"github.com/moviegen/forge/internal/planning"
	"github.com/moviegen/forge/internal/runner"
	"github.com/moviegen/forge/internal/schemas"
	"github.com/moviegen/forge/internal/storage"
)

var (
	baseDir       = flag.String("base-dir", getEnv("FORGE_BASE_DIR", "./builds"), "root directory for per-movie storage")
	movieID       = flag.String("movie", "", "movie id to plan and run")
	blueprintPath = flag.String("blueprint", "", "path to the root blueprint document")
	inputsPath    = flag.String("inputs", "", "path to a JSON file mapping canonical input ids to payload values")
	concurrency   = flag.Int("concurrency", 4, "max jobs to run concurrently within one layer")
)

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	if *movieID == "" || *blueprintPath == "" {
		log.Fatal("both -movie and -blueprint are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("cancellation requested, finishing current layer then stopping")
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("forge: %v", err)
	}
}

func run(ctx context.Context) error {
	log.Printf("initializing storage at %s", *baseDir)
	sc := storage.NewContext(storage.NewLocalBackend(*baseDir))
	if err := sc.InitializeMovieStorage(ctx, *movieID, storage.InitOptions{SeedCurrentJSON: true}); err != nil {
		return fmt.Errorf("initialize movie storage: %w", err)
	}

	el := eventlog.New(sc)
	ms := manifest.New(sc)
	clock := schemas.SystemClock{}

	svc := planning.NewService(sc, el, ms, blueprint.NewLoader(), graph.NewBuilder(), expander.NewExpander(), planner.NewPlanner(), clock)

	inputs, err := loadInputs(*inputsPath)
	if err != nil {
		return fmt.Errorf("load inputs: %w", err)
	}

	log.Printf("generating plan for movie %q", *movieID)
	genResult, err := svc.GeneratePlan(ctx, planning.GenerateOptions{
		MovieID:       *movieID,
		BlueprintPath: *blueprintPath,
		Inputs:        inputs,
	})
	if err != nil {
		return fmt.Errorf("generate plan: %w", err)
	}
	log.Printf("plan %s written to %s (correlation %s)", genResult.TargetRevision, genResult.PlanPath, genResult.CorrelationID)

	if genResult.Plan.IsEmpty() {
		log.Println("plan is empty, nothing to execute")
		return nil
	}

	rn := runner.NewRunner(sc, el, stubResolver{contracts.NewStubProducer()}, clock, runner.WithConcurrency(*concurrency))

	var baseRevision *string
	if genResult.ManifestHash != "" {
		rev := genResult.Manifest.Revision
		baseRevision = &rev
	}

	log.Printf("executing %d layer(s)", len(genResult.Plan.Layers))
	runResult, err := rn.Execute(ctx, genResult.Plan, runner.ExecuteOptions{
		MovieID:        *movieID,
		BaseRevision:   baseRevision,
		ResolvedInputs: genResult.ResolvedInputs,
	})
	if err != nil {
		return fmt.Errorf("execute plan: %w", err)
	}

	for _, jr := range runResult.JobResults {
		log.Printf("job %s: %s", jr.JobID, jr.Status)
	}

	rebuilt, err := runResult.BuildManifest(ctx)
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}

	var previousHash *string
	if genResult.ManifestHash != "" {
		hash := genResult.ManifestHash
		previousHash = &hash
	}
	if _, err := ms.SaveManifest(ctx, rebuilt, manifest.SaveOptions{MovieID: *movieID, PreviousHash: previousHash, Clock: clock}); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	log.Printf("movie %q promoted to %s", *movieID, runResult.Revision)
	return nil
}

func loadInputs(path string) ([]planning.InputEdit, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	edits := make([]planning.InputEdit, 0, len(raw))
	for id, payload := range raw {
		edits = append(edits, planning.InputEdit{ID: id, Payload: payload, EditedBy: schemas.EditedByUser})
	}
	return edits, nil
}

// stubResolver drives every job through contracts.StubProducer — forge
// ships no concrete provider (spec.md §1 non-goal); this is only enough
// to demonstrate the full generate-plan-then-execute cycle end to end.
type stubResolver struct {
	stub *contracts.StubProducer
}

func (r stubResolver) Resolve(provider, providerModel string) (contracts.ProduceFunc, error) {
	return r.stub.Produce, nil
}
