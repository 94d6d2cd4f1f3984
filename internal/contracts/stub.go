package contracts

import (
	"context"
	"fmt"

	"github.com/moviegen/forge/internal/schemas"
)

// StubProducer is a deterministic, settings-driven ProduceFunc with no
// network dependency, letting the runner and planning service exercise a
// real produce callback in tests (SPEC_FULL.md §2.11) — grounded on the
// teacher's pattern of shipping a test double beside the interface it
// implements (pkg/store.MemoryStore next to Store).
type StubProducer struct {
	status schemas.ArtefactStatus
	render func(req ProduceRequest, artefactID string) string
}

// StubOption is a functional option for StubProducer.
type StubOption func(*StubProducer)

// WithStubStatus overrides the status every returned artefact carries.
func WithStubStatus(status schemas.ArtefactStatus) StubOption {
	return func(s *StubProducer) {
		s.status = status
	}
}

// WithStubRender overrides how inline artefact content is rendered.
func WithStubRender(render func(req ProduceRequest, artefactID string) string) StubOption {
	return func(s *StubProducer) {
		s.render = render
	}
}

// NewStubProducer creates a StubProducer that succeeds every artefact the
// job declares, with deterministic inline content derived from the job id
// and artefact id.
func NewStubProducer(opts ...StubOption) *StubProducer {
	s := &StubProducer{
		status: schemas.StatusSucceeded,
		render: func(req ProduceRequest, artefactID string) string {
			return fmt.Sprintf("stub-output:%s:%s", req.Job.JobID, artefactID)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Produce implements ProduceFunc.
func (s *StubProducer) Produce(ctx context.Context, req ProduceRequest) (ProduceResult, error) {
	select {
	case <-ctx.Done():
		return ProduceResult{}, ctx.Err()
	default:
	}

	artefacts := make([]ProducedArtefact, 0, len(req.Job.Produces))
	for _, id := range req.Job.Produces {
		content := s.render(req, id)
		artefacts = append(artefacts, ProducedArtefact{
			ArtefactID: id,
			Status:     s.status,
			Inline:     &content,
		})
	}

	return ProduceResult{
		Status:    s.status,
		Artefacts: artefacts,
	}, nil
}
