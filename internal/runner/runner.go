// Package runner executes an ExecutionPlan's layers against the outside
// world (spec.md §4.8). It generalizes the teacher's pkg/executor's
// collaborator-struct-plus-Execute(ctx, plan, opts) shape from "run one
// ffmpeg command" to "run one layer's jobs concurrently, then the next" —
// concurrency within a layer is bounded by golang.org/x/sync/errgroup,
// and the rateKey throttle spec.md's Job.RateKey implies is enforced by a
// golang.org/x/sync/semaphore.Weighted per key, a concern the teacher
// never needed since it drives one ffmpeg process at a time.
package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/moviegen/forge/internal/contracts"
	"github.com/moviegen/forge/internal/eventlog"
	"github.com/moviegen/forge/internal/hashing"
	"github.com/moviegen/forge/internal/manifest"
	"github.com/moviegen/forge/internal/schemas"
	"github.com/moviegen/forge/internal/storage"
)

// Runner drives one ExecutionPlan's layers to completion.
type Runner struct {
	storage     *storage.Context
	eventlog    *eventlog.Log
	resolver    contracts.ProviderResolver
	clock       schemas.Clock
	logger      *log.Logger
	concurrency int
	rateLimits  map[string]int64
}

// Option is a functional option for Runner, matching the teacher's
// ProberOption/WithFFprobePath idiom.
type Option func(*Runner)

// WithConcurrency bounds how many jobs within one layer run at once.
// Defaults to 1 (spec.md §4.8's "small integer, default 1").
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger overrides the runner's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithRateLimits bounds how many jobs sharing a rateKey may run
// concurrently, across the whole execution (not just within one layer).
func WithRateLimits(limits map[string]int64) Option {
	return func(r *Runner) { r.rateLimits = limits }
}

// NewRunner creates a Runner.
func NewRunner(sc *storage.Context, el *eventlog.Log, resolver contracts.ProviderResolver, clock schemas.Clock, opts ...Option) *Runner {
	r := &Runner{
		storage:     sc,
		eventlog:    el,
		resolver:    resolver,
		clock:       clock,
		logger:      log.Default(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExecuteOptions carries per-run parameters for Execute.
type ExecuteOptions struct {
	MovieID        string
	BaseRevision   *string                // the manifest revision this run builds on, for BuildManifest
	ResolvedInputs map[string]interface{} // canonical input id -> value
}

// JobResult is one job's terminal outcome.
type JobResult struct {
	JobID  string
	Status schemas.ArtefactStatus
	Err    error
}

// RunResult is Execute's return value.
type RunResult struct {
	MovieID   string
	Revision  string
	BaseRev   *string
	JobResults []JobResult

	eventlog *eventlog.Log
	clock    schemas.Clock
}

// BuildManifest rebuilds the manifest snapshot from the event logs at
// this run's revision (spec.md §4.8's "manifest promotion" step).
func (rr *RunResult) BuildManifest(ctx context.Context) (schemas.Manifest, error) {
	return manifest.New(nil).BuildFromEvents(ctx, manifest.BuildOptions{
		MovieID:        rr.MovieID,
		TargetRevision: rr.Revision,
		BaseRevision:   rr.BaseRev,
		EventLog:       rr.eventlog,
		Clock:          rr.clock,
	})
}

// Execute runs plan's layers strictly sequentially, up to opts'
// concurrency bound within each layer. Cancelling ctx prevents any new
// layer from starting; jobs already running in the current layer finish.
func (r *Runner) Execute(ctx context.Context, plan *schemas.ExecutionPlan, opts ExecuteOptions) (*RunResult, error) {
	sems := make(map[string]*semaphore.Weighted, len(r.rateLimits))
	for key, weight := range r.rateLimits {
		sems[key] = semaphore.NewWeighted(weight)
	}

	result := &RunResult{
		MovieID:  opts.MovieID,
		Revision: plan.Revision,
		BaseRev:  opts.BaseRevision,
		eventlog: r.eventlog,
		clock:    r.clock,
	}

	for layerIndex, layer := range plan.Layers {
		if len(layer) == 0 {
			continue
		}
		if ctx.Err() != nil {
			r.logger.Printf("runner: cancellation observed before layer %d, stopping", layerIndex)
			break
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)

		for _, job := range layer {
			job := job
			g.Go(func() error {
				sem := sems[job.RateKey]
				if sem != nil {
					if err := sem.Acquire(gctx, 1); err != nil {
						return err
					}
					defer sem.Release(1)
				}

				jr, fatal := r.runJob(gctx, opts.MovieID, plan.Revision, layerIndex, job, opts.ResolvedInputs)
				mu.Lock()
				result.JobResults = append(result.JobResults, jr)
				mu.Unlock()
				return fatal
			})
		}

		if err := g.Wait(); err != nil {
			return result, fmt.Errorf("runner: layer %d: %w", layerIndex, err)
		}
	}

	return result, nil
}

// runJob executes a single job's produce call and appends its artefact
// events. Its error return is reserved for fatal infrastructure failures
// (an event log append failing) — a failed or skipped produce call is
// reported through JobResult instead, never as an error, so one job's
// failure never aborts its layer.
func (r *Runner) runJob(ctx context.Context, movieID, revision string, layerIndex int, job schemas.Job, resolvedInputs map[string]interface{}) (JobResult, error) {
	inputsHash := hashing.HashInputs(job.Inputs)

	resolved, err := r.resolveInputs(ctx, movieID, job.Inputs, resolvedInputs)
	if err != nil {
		return r.failJob(ctx, movieID, revision, job, inputsHash, err)
	}

	produce, err := r.resolver.Resolve(job.Provider, job.ProviderModel)
	if err != nil {
		return r.failJob(ctx, movieID, revision, job, inputsHash, fmt.Errorf("%w: %s/%s", ErrNoProducer, job.Provider, job.ProviderModel))
	}

	req := contracts.ProduceRequest{
		MovieID:    movieID,
		Job:        job,
		LayerIndex: layerIndex,
		Revision:   revision,
		Inputs:     resolved,
	}

	produceResult, produceErr := produce(ctx, req)
	if produceErr != nil {
		return r.failJob(ctx, movieID, revision, job, inputsHash, produceErr)
	}

	// The callback-level status is a signal distinct from any individual
	// artefact's status (spec.md line 203): a callback can report failure
	// (or, symmetrically, skipped) without any of its artefacts saying so.
	anyFailed := produceResult.Status == schemas.StatusFailed
	allSkipped := true
	for _, a := range produceResult.Artefacts {
		output, err := r.persistOutput(ctx, movieID, a)
		if err != nil {
			return JobResult{}, fmt.Errorf("runner: persist artefact %s: %w", a.ArtefactID, err)
		}

		event := schemas.ArtefactEvent{
			ArtefactID:  a.ArtefactID,
			Revision:    revision,
			InputsHash:  inputsHash,
			Output:      output,
			Status:      a.Status,
			ProducedBy:  job.JobID,
			Diagnostics: a.Diagnostics,
			CreatedAt:   r.clock.Now(),
		}
		if err := r.eventlog.AppendArtefact(ctx, movieID, event); err != nil {
			return JobResult{}, fmt.Errorf("runner: append artefact event %s: %w", a.ArtefactID, err)
		}

		switch a.Status {
		case schemas.StatusFailed:
			anyFailed = true
			allSkipped = false
		case schemas.StatusSucceeded:
			allSkipped = false
		}
	}

	status := schemas.StatusSucceeded
	switch {
	case anyFailed:
		status = schemas.StatusFailed
	case allSkipped && produceResult.Status == schemas.StatusSkipped:
		status = schemas.StatusSkipped
	}

	return JobResult{JobID: job.JobID, Status: status}, nil
}

// failJob records every declared output of job as a failed ArtefactEvent
// and reports the job itself as failed, without ever returning an error
// (a job-level failure must not abort its layer).
func (r *Runner) failJob(ctx context.Context, movieID, revision string, job schemas.Job, inputsHash string, cause error) (JobResult, error) {
	for _, id := range job.Produces {
		event := schemas.ArtefactEvent{
			ArtefactID:  id,
			Revision:    revision,
			InputsHash:  inputsHash,
			Status:      schemas.StatusFailed,
			ProducedBy:  job.JobID,
			Diagnostics: schemas.Diagnostics{"error": cause.Error()},
			CreatedAt:   r.clock.Now(),
		}
		if err := r.eventlog.AppendArtefact(ctx, movieID, event); err != nil {
			return JobResult{}, fmt.Errorf("runner: append failure artefact event %s: %w", id, err)
		}
	}
	return JobResult{JobID: job.JobID, Status: schemas.StatusFailed, Err: cause}, nil
}

// persistOutput writes a blob payload content-addressed and idempotent
// (spec.md §4.8 step 4), or passes inline content straight through.
func (r *Runner) persistOutput(ctx context.Context, movieID string, a contracts.ProducedArtefact) (schemas.ArtefactOutput, error) {
	if a.Status != schemas.StatusSucceeded || len(a.BlobData) == 0 {
		if a.Inline != nil {
			return schemas.ArtefactOutput{Inline: a.Inline}, nil
		}
		return schemas.ArtefactOutput{}, nil
	}

	sum := sha256.Sum256(a.BlobData)
	hash := hex.EncodeToString(sum[:])
	relPath, err := r.storage.Resolve(movieID, "blobs", hash[:2], hash)
	if err != nil {
		return schemas.ArtefactOutput{}, err
	}

	exists, err := r.storage.FileExists(ctx, relPath)
	if err != nil {
		return schemas.ArtefactOutput{}, err
	}
	if !exists {
		if err := r.storage.WriteAtomic(ctx, relPath, a.BlobData, a.MimeType); err != nil {
			return schemas.ArtefactOutput{}, err
		}
	}

	return schemas.ArtefactOutput{Blob: &schemas.BlobRef{
		Hash:     hash,
		Size:     int64(len(a.BlobData)),
		MimeType: a.MimeType,
	}}, nil
}

// resolveInputs resolves every id in ids to a concrete value: plain
// inputs come from resolvedInputs, artefact ids from the latest
// succeeded ArtefactEvent for that id (spec.md §4.8 step 2).
func (r *Runner) resolveInputs(ctx context.Context, movieID string, ids []string, resolvedInputs map[string]interface{}) ([]contracts.ResolvedInput, error) {
	out := make([]contracts.ResolvedInput, 0, len(ids))
	for _, id := range ids {
		if v, ok := resolvedInputs[id]; ok {
			out = append(out, contracts.ResolvedInput{ID: id, Value: v})
			continue
		}

		v, err := r.resolveArtefact(ctx, movieID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, contracts.ResolvedInput{ID: id, Value: v})
	}
	return out, nil
}

func (r *Runner) resolveArtefact(ctx context.Context, movieID, artefactID string) (interface{}, error) {
	var latest *schemas.ArtefactEvent
	var streamErr error
	for ev, err := range r.eventlog.StreamArtefacts(ctx, movieID, nil) {
		if err != nil {
			streamErr = err
			break
		}
		if ev.ArtefactID != artefactID || ev.Status != schemas.StatusSucceeded {
			continue
		}
		ev := ev
		latest = &ev
	}
	if streamErr != nil {
		return nil, streamErr
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedInput, artefactID)
	}

	if latest.Output.Inline != nil {
		return *latest.Output.Inline, nil
	}
	if latest.Output.Blob != nil {
		relPath, err := r.storage.Resolve(movieID, "blobs", latest.Output.Blob.Hash[:2], latest.Output.Blob.Hash)
		if err != nil {
			return nil, err
		}
		data, err := r.storage.Read(ctx, relPath)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return nil, fmt.Errorf("%w: %s has no output", ErrUnresolvedInput, artefactID)
}
