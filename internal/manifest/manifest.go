// Package manifest implements the manifest service: read/write the
// current pointer, read/write per-revision manifest snapshots, and
// rebuild a snapshot deterministically from the event logs (spec.md
// §4.4).
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/moviegen/forge/internal/eventlog"
	"github.com/moviegen/forge/internal/schemas"
	"github.com/moviegen/forge/internal/storage"
)

// ErrManifestNotFound is raised when a movie's pointer is absent or
// empty (spec.md §7).
var ErrManifestNotFound = errors.New("manifest: not found")

// ErrManifestConflict is raised when a pointer hash disagrees with the
// stored manifest, or a save's previousHash doesn't match the current
// pointer (spec.md §7).
var ErrManifestConflict = errors.New("manifest: conflict")

// Service loads, saves, and rebuilds manifests for a movie.
type Service struct {
	storage *storage.Context
}

// New creates a manifest service backed by the given storage context.
func New(ctx *storage.Context) *Service {
	return &Service{storage: ctx}
}

// Current is the result of LoadCurrent: the pointer plus the manifest it
// names.
type Current struct {
	Pointer  schemas.Pointer
	Manifest schemas.Manifest
	Hash     string
}

// LoadCurrent reads the pointer and the manifest it names, verifying the
// pointer's recorded hash against the manifest file's actual sha256.
func (s *Service) LoadCurrent(ctx context.Context, movieID string) (*Current, error) {
	pointerPath, err := s.storage.Resolve(movieID, "current.json")
	if err != nil {
		return nil, err
	}

	exists, err := s.storage.FileExists(ctx, pointerPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: movie %q has no pointer", ErrManifestNotFound, movieID)
	}

	pointerBytes, err := s.storage.Read(ctx, pointerPath)
	if err != nil {
		return nil, err
	}
	var pointer schemas.Pointer
	if err := json.Unmarshal(pointerBytes, &pointer); err != nil {
		return nil, fmt.Errorf("manifest: decode pointer: %w", err)
	}
	if pointer.Revision == nil || pointer.ManifestPath == nil || pointer.Hash == nil {
		return nil, fmt.Errorf("%w: movie %q has an empty pointer", ErrManifestNotFound, movieID)
	}

	manifestRelPath, err := s.storage.Resolve(movieID, *pointer.ManifestPath)
	if err != nil {
		return nil, err
	}
	manifestBytes, err := s.storage.Read(ctx, manifestRelPath)
	if err != nil {
		return nil, err
	}

	actualHash := sha256Hex(manifestBytes)
	if actualHash != *pointer.Hash {
		return nil, fmt.Errorf("%w: movie %q pointer hash %s does not match manifest bytes hash %s",
			ErrManifestConflict, movieID, *pointer.Hash, actualHash)
	}

	var snapshot schemas.Manifest
	if err := json.Unmarshal(manifestBytes, &snapshot); err != nil {
		return nil, fmt.Errorf("manifest: decode manifest: %w", err)
	}

	return &Current{Pointer: pointer, Manifest: snapshot, Hash: actualHash}, nil
}

// SaveOptions configures SaveManifest.
type SaveOptions struct {
	MovieID      string
	PreviousHash *string
	Clock        schemas.Clock
}

// SaveManifest re-reads the current pointer; if its hash does not equal
// previousHash (with nil == nil), raises ErrManifestConflict. Otherwise
// it atomically writes manifests/<rev>.json, computes its sha256, and
// atomically writes the pointer. The prior snapshot is never deleted.
func (s *Service) SaveManifest(ctx context.Context, m schemas.Manifest, opts SaveOptions) (*Current, error) {
	pointerPath, err := s.storage.Resolve(opts.MovieID, "current.json")
	if err != nil {
		return nil, err
	}

	currentHash, err := s.readPointerHash(ctx, pointerPath)
	if err != nil {
		return nil, err
	}

	if !hashesEqual(currentHash, opts.PreviousHash) {
		return nil, fmt.Errorf("%w: previousHash %s does not match current pointer hash %s",
			ErrManifestConflict, strPtrOrNull(opts.PreviousHash), strPtrOrNull(currentHash))
	}

	manifestBytes, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal manifest: %w", err)
	}

	manifestRelName := fmt.Sprintf("manifests/%s.json", m.Revision)
	manifestPath, err := s.storage.Resolve(opts.MovieID, manifestRelName)
	if err != nil {
		return nil, err
	}
	if err := s.storage.WriteAtomic(ctx, manifestPath, manifestBytes, "application/json"); err != nil {
		return nil, err
	}

	newHash := sha256Hex(manifestBytes)
	now := opts.Clock.Now()
	rev := m.Revision
	pointer := schemas.Pointer{
		Revision:     &rev,
		ManifestPath: &manifestRelName,
		Hash:         &newHash,
		UpdatedAt:    &now,
	}
	pointerBytes, err := json.MarshalIndent(pointer, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal pointer: %w", err)
	}
	if err := s.storage.WriteAtomic(ctx, pointerPath, pointerBytes, "application/json"); err != nil {
		return nil, err
	}

	return &Current{Pointer: pointer, Manifest: m, Hash: newHash}, nil
}

func (s *Service) readPointerHash(ctx context.Context, pointerPath string) (*string, error) {
	exists, err := s.storage.FileExists(ctx, pointerPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	data, err := s.storage.Read(ctx, pointerPath)
	if err != nil {
		return nil, err
	}
	var pointer schemas.Pointer
	if err := json.Unmarshal(data, &pointer); err != nil {
		return nil, fmt.Errorf("manifest: decode pointer: %w", err)
	}
	return pointer.Hash, nil
}

// BuildOptions configures BuildFromEvents.
type BuildOptions struct {
	MovieID       string
	TargetRevision string
	BaseRevision   *string
	EventLog       *eventlog.Log
	Clock          schemas.Clock
}

// BuildFromEvents consumes both event streams and, per id, keeps the
// latest event — the latest edit for inputs, the latest succeeded event
// for artefacts (non-succeeded events are ignored) — emitting a manifest
// at the given target/base revision. Idempotent: applied twice to the
// same log it produces byte-identical JSON (modulo CreatedAt, which the
// caller controls via Clock).
func (s *Service) BuildFromEvents(ctx context.Context, opts BuildOptions) (schemas.Manifest, error) {
	inputs := map[string]schemas.InputSnapshot{}
	for ev, err := range opts.EventLog.StreamInputs(ctx, opts.MovieID, nil) {
		if err != nil {
			return schemas.Manifest{}, err
		}
		if !eventlog.RevisionGreaterThan(opts.TargetRevision, ev.Revision) && ev.Revision != opts.TargetRevision {
			continue
		}
		inputs[ev.ID] = schemas.InputSnapshot{
			Hash:          ev.Hash,
			PayloadDigest: ev.Hash,
			CreatedAt:     ev.CreatedAt,
		}
	}

	artefacts := map[string]schemas.ArtefactSnapshot{}
	for ev, err := range opts.EventLog.StreamArtefacts(ctx, opts.MovieID, nil) {
		if err != nil {
			return schemas.Manifest{}, err
		}
		if ev.Status != schemas.StatusSucceeded {
			continue
		}
		if !eventlog.RevisionGreaterThan(opts.TargetRevision, ev.Revision) && ev.Revision != opts.TargetRevision {
			continue
		}
		artefacts[ev.ArtefactID] = schemas.ArtefactSnapshot{
			Hash:        ev.InputsHash,
			Blob:        ev.Output.Blob,
			Inline:      ev.Output.Inline,
			ProducedBy:  ev.ProducedBy,
			Status:      ev.Status,
			Diagnostics: ev.Diagnostics,
			CreatedAt:   ev.CreatedAt,
		}
	}

	return schemas.Manifest{
		Revision:     opts.TargetRevision,
		BaseRevision: opts.BaseRevision,
		CreatedAt:    opts.Clock.Now(),
		Inputs:       inputs,
		Artefacts:    artefacts,
		Timeline:     map[string]interface{}{},
	}, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashesEqual(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func strPtrOrNull(p *string) string {
	if p == nil {
		return "null"
	}
	return *p
}
