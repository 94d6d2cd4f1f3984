// Package contracts defines the boundary between forge's core (planner,
// runner, planning service) and the outside world: the produce callback
// every job is driven through, and the identity provenance attached to
// input edits. No concrete provider ships here (spec.md §1 non-goal).
package contracts

import (
	"context"

	"github.com/moviegen/forge/internal/schemas"
)

// ResolvedInput is one input id's concrete value, as resolved by the
// runner before invoking produce (spec.md §4.8 step 2).
type ResolvedInput struct {
	ID    string
	Value interface{}
}

// ProduceRequest is what the runner hands the produce callback for one
// job (spec.md §6.3).
type ProduceRequest struct {
	MovieID    string
	Job        schemas.Job
	LayerIndex int
	Attempt    int
	Revision   string
	Inputs     []ResolvedInput
}

// ProducedArtefact is one artefact returned by a produce callback, prior
// to blob persistence.
type ProducedArtefact struct {
	ArtefactID  string
	Status      schemas.ArtefactStatus
	Inline      *string
	BlobData    []byte
	MimeType    string
	Diagnostics schemas.Diagnostics
}

// ProduceResult is the produce callback's return value.
type ProduceResult struct {
	Status      schemas.ArtefactStatus
	Artefacts   []ProducedArtefact
	Diagnostics schemas.Diagnostics
}

// ProduceFunc is the external producer interface (spec.md §6.3). A
// returned error is equivalent to the callback throwing: the runner
// treats it as job failure.
type ProduceFunc func(ctx context.Context, req ProduceRequest) (ProduceResult, error)

// ProviderResolver maps a job's (provider, providerModel) pair to the
// ProduceFunc that should execute it, letting a caller register more than
// one backing provider behind a single runner.
type ProviderResolver interface {
	Resolve(provider, providerModel string) (ProduceFunc, error)
}
