// Package planning implements the orchestrator that ties the blueprint
// loader, canonical graph builder, dimension expander, and planner into
// the single "generate a plan" operation a caller actually invokes
// (spec.md §4.9). It generalizes the teacher's pkg/api.Server shape — a
// struct wiring every collaborator once in a constructor, with one method
// per externally visible operation — from an HTTP handler set to a
// single orchestration method.
package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/moviegen/forge/internal/blueprint"
	"github.com/moviegen/forge/internal/contracts"
	"github.com/moviegen/forge/internal/eventlog"
	"github.com/moviegen/forge/internal/expander"
	"github.com/moviegen/forge/internal/graph"
	"github.com/moviegen/forge/internal/hashing"
	"github.com/moviegen/forge/internal/manifest"
	"github.com/moviegen/forge/internal/planner"
	"github.com/moviegen/forge/internal/schemas"
	"github.com/moviegen/forge/internal/storage"
)

// Service orchestrates a single generate-plan cycle end to end.
type Service struct {
	storage    *storage.Context
	eventlog   *eventlog.Log
	manifest   *manifest.Service
	loader     *blueprint.Loader
	builder    *graph.Builder
	expander   *expander.Expander
	planner    *planner.Planner
	clock      schemas.Clock
	principals *contracts.PrincipalManager
	logger     *log.Logger
}

// Option customizes a Service beyond its required collaborators.
type Option func(*Service)

// WithPrincipalManager lets GeneratePlan verify a caller-supplied bearer
// token and derive edit provenance from it (spec.md §3.5 editedBy).
// Without this option, GenerateOptions.PrincipalToken is ignored.
func WithPrincipalManager(pm *contracts.PrincipalManager) Option {
	return func(s *Service) { s.principals = pm }
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires a planning service from its collaborators.
func NewService(
	sc *storage.Context,
	el *eventlog.Log,
	ms *manifest.Service,
	loader *blueprint.Loader,
	builder *graph.Builder,
	exp *expander.Expander,
	pl *planner.Planner,
	clock schemas.Clock,
	opts ...Option,
) *Service {
	s := &Service{
		storage:  sc,
		eventlog: el,
		manifest: ms,
		loader:   loader,
		builder:  builder,
		expander: exp,
		planner:  pl,
		clock:    clock,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InputEdit is one caller-supplied input value to record at the target
// revision (spec.md §4.9 step 3).
type InputEdit struct {
	ID       string
	Payload  interface{}
	EditedBy schemas.EditSource
}

// PendingArtefact is a caller-provided out-of-band artefact value to
// record at the target revision (spec.md §4.9 step 5).
type PendingArtefact struct {
	ID    string
	Value string
}

// GenerateOptions carries everything one GeneratePlan cycle needs.
type GenerateOptions struct {
	MovieID       string
	BlueprintPath string
	// PrincipalToken is an optional bearer token identifying who is
	// requesting this plan. When a PrincipalManager was wired via
	// WithPrincipalManager, it is verified once and its derived
	// EditSource is logged alongside (and, for edits that did not name
	// one explicitly, used as) each input edit's provenance.
	PrincipalToken   *string
	Inputs           []InputEdit
	PendingArtefacts []PendingArtefact
}

// GeneratePlanResult is the orchestration's return value (spec.md §4.9
// step 8).
type GeneratePlanResult struct {
	// CorrelationID identifies this orchestration run for log
	// correlation across the planner, runner, and any external caller;
	// it is not persisted as part of the plan file itself.
	CorrelationID  string
	Plan           *schemas.ExecutionPlan
	PlanPath       string
	TargetRevision string
	Manifest       schemas.Manifest
	ManifestHash   string
	InputEvents    []schemas.InputEvent
	ResolvedInputs map[string]interface{}
}

// GeneratePlan runs the eight-step sequence of spec.md §4.9.
func (s *Service) GeneratePlan(ctx context.Context, opts GenerateOptions) (*GeneratePlanResult, error) {
	// Step 1: load or synthesize the current manifest.
	baseManifest, baseHash, err := s.loadCurrentOrEmpty(ctx, opts.MovieID)
	if err != nil {
		return nil, err
	}

	// Step 2: pick a free target revision.
	targetRevision, planPath, err := s.pickTargetRevision(ctx, opts.MovieID, baseManifest.Revision)
	if err != nil {
		return nil, err
	}

	doc, err := s.loader.Load(opts.BlueprintPath)
	if err != nil {
		return nil, err
	}
	if err := blueprint.Validate(doc); err != nil {
		return nil, err
	}

	resolvedInputs, err := s.resolvedExistingInputs(ctx, opts.MovieID)
	if err != nil {
		return nil, err
	}

	// Verify the caller's bearer token, if one was supplied and a
	// PrincipalManager is wired. The resulting EditSource backfills any
	// edit that didn't name one explicitly; either way the verified
	// identity is only logged, never written into the event itself.
	defaultEditedBy := schemas.EditSource("")
	if opts.PrincipalToken != nil && s.principals != nil {
		principal, err := s.principals.Verify(*opts.PrincipalToken)
		if err != nil {
			return nil, err
		}
		defaultEditedBy = principal.EditSource()
		s.logger.Printf("plan request for movie %q authenticated as %s (role %s)", opts.MovieID, principal.UserID, principal.Role)
	}

	// Step 3: append every supplied input edit as an InputEvent.
	inputEvents := make([]schemas.InputEvent, 0, len(opts.Inputs))
	for _, edit := range opts.Inputs {
		if !strings.HasPrefix(edit.ID, "Input:") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidInputID, edit.ID)
		}
		editedBy := edit.EditedBy
		if editedBy == "" {
			editedBy = defaultEditedBy
		}
		if editedBy == "" {
			editedBy = schemas.EditedByUser
		}
		ev := schemas.InputEvent{
			ID:        edit.ID,
			Revision:  targetRevision,
			Hash:      hashing.HashInputPayload(edit.Payload),
			Payload:   edit.Payload,
			EditedBy:  editedBy,
			CreatedAt: s.clock.Now(),
		}
		if err := s.eventlog.AppendInput(ctx, opts.MovieID, ev); err != nil {
			return nil, err
		}
		inputEvents = append(inputEvents, ev)
		resolvedInputs[edit.ID] = edit.Payload
	}

	g, err := s.builder.Build(doc)
	if err != nil {
		return nil, err
	}

	// Step 4: apply blueprint input defaults for declared optional inputs
	// that remain unset after step 3.
	for _, n := range g.Nodes {
		if n.Type != schemas.NodeInputSource || n.Input == nil {
			continue
		}
		if _, ok := resolvedInputs[n.ID]; ok {
			continue
		}
		if n.Input.Required || n.Input.DefaultValue == nil {
			continue
		}
		ev := schemas.InputEvent{
			ID:        n.ID,
			Revision:  targetRevision,
			Hash:      hashing.HashInputPayload(n.Input.DefaultValue),
			Payload:   n.Input.DefaultValue,
			EditedBy:  schemas.EditedBySystem,
			CreatedAt: s.clock.Now(),
		}
		if err := s.eventlog.AppendInput(ctx, opts.MovieID, ev); err != nil {
			return nil, err
		}
		inputEvents = append(inputEvents, ev)
		resolvedInputs[n.ID] = n.Input.DefaultValue
	}

	// Step 5: append caller-provided pending artefacts as manual-edit
	// ArtefactEvents.
	for _, pa := range opts.PendingArtefacts {
		value := pa.Value
		ev := schemas.ArtefactEvent{
			ArtefactID: pa.ID,
			Revision:   targetRevision,
			InputsHash: "manual-edit",
			Output:     schemas.ArtefactOutput{Inline: &value},
			Status:     schemas.StatusSucceeded,
			ProducedBy: "manual",
			CreatedAt:  s.clock.Now(),
		}
		if err := s.eventlog.AppendArtefact(ctx, opts.MovieID, ev); err != nil {
			return nil, err
		}
	}

	// Step 6: expand the producer graph.
	pg, err := s.expander.Expand(g, resolvedInputs)
	if err != nil {
		return nil, err
	}

	pendingEdits := make([]planner.Edit, 0, len(resolvedInputs))
	for id, v := range resolvedInputs {
		pendingEdits = append(pendingEdits, planner.Edit{ID: id, Hash: hashing.HashInputPayload(v)})
	}
	artefactEdits := make([]planner.Edit, 0, len(opts.PendingArtefacts))
	for _, pa := range opts.PendingArtefacts {
		artefactEdits = append(artefactEdits, planner.Edit{ID: pa.ID, Hash: "manual-edit"})
	}

	// Step 7: invoke the planner and persist the resulting plan.
	plan, err := s.planner.Plan(planner.PlanOptions{
		Manifest:         baseManifest,
		Graph:            pg,
		TargetRevision:   targetRevision,
		ManifestBaseHash: baseHash,
		PendingEdits:     pendingEdits,
		ArtefactEdits:    artefactEdits,
		Clock:            s.clock,
	})
	if err != nil {
		return nil, err
	}

	planBytes, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("planning: marshal execution plan: %w", err)
	}
	if err := s.storage.WriteAtomic(ctx, planPath, planBytes, "application/json"); err != nil {
		return nil, err
	}

	// Step 8: return the full orchestration result.
	return &GeneratePlanResult{
		CorrelationID:  uuid.NewString(),
		Plan:           plan,
		PlanPath:       planPath,
		TargetRevision: targetRevision,
		Manifest:       baseManifest,
		ManifestHash:   derefOrEmpty(baseHash),
		InputEvents:    inputEvents,
		ResolvedInputs: resolvedInputs,
	}, nil
}

// loadCurrentOrEmpty loads the movie's current manifest, synthesizing an
// empty pseudo-manifest at rev-0000 when no pointer exists yet (spec.md
// §4.9 step 1).
func (s *Service) loadCurrentOrEmpty(ctx context.Context, movieID string) (schemas.Manifest, *string, error) {
	cur, err := s.manifest.LoadCurrent(ctx, movieID)
	if err != nil {
		if errors.Is(err, manifest.ErrManifestNotFound) {
			return schemas.Manifest{
				Revision:  "rev-0000",
				Inputs:    map[string]schemas.InputSnapshot{},
				Artefacts: map[string]schemas.ArtefactSnapshot{},
				Timeline:  map[string]interface{}{},
			}, nil, nil
		}
		return schemas.Manifest{}, nil, err
	}
	hash := cur.Hash
	return cur.Manifest, &hash, nil
}

// pickTargetRevision advances from currentRevision until it finds a
// revision with no existing plan file (spec.md §4.9 step 2).
func (s *Service) pickTargetRevision(ctx context.Context, movieID, currentRevision string) (string, string, error) {
	target := eventlog.NextRevisionID(&currentRevision)
	for {
		planPath, err := s.storage.Resolve(movieID, fmt.Sprintf("runs/%s-plan.json", target))
		if err != nil {
			return "", "", err
		}
		exists, err := s.storage.FileExists(ctx, planPath)
		if err != nil {
			return "", "", err
		}
		if !exists {
			return target, planPath, nil
		}
		target = eventlog.NextRevisionID(&target)
	}
}

// resolvedExistingInputs replays the input log, keeping the latest
// payload per canonical id.
func (s *Service) resolvedExistingInputs(ctx context.Context, movieID string) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	for ev, err := range s.eventlog.StreamInputs(ctx, movieID, nil) {
		if err != nil {
			return nil, err
		}
		out[ev.ID] = ev.Payload
	}
	return out, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
