// Package eventlog maintains the per-movie append-only JSONL event logs
// (spec.md §4.3): inputs.log and artefacts.log.
package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/moviegen/forge/internal/schemas"
	"github.com/moviegen/forge/internal/storage"
)

const (
	inputsLogName    = "events/inputs.log"
	artefactsLogName = "events/artefacts.log"
)

// Log appends to and streams a movie's event logs.
type Log struct {
	storage *storage.Context
}

// New creates an event log backed by the given storage context.
func New(ctx *storage.Context) *Log {
	return &Log{storage: ctx}
}

// AppendInput appends one InputEvent as a JSON line to the movie's
// inputs.log.
func (l *Log) AppendInput(ctx context.Context, movieID string, event schemas.InputEvent) error {
	path, err := l.storage.Resolve(movieID, inputsLogName)
	if err != nil {
		return err
	}
	return appendJSONLine(ctx, l.storage, path, event)
}

// AppendArtefact appends one ArtefactEvent as a JSON line to the movie's
// artefacts.log.
func (l *Log) AppendArtefact(ctx context.Context, movieID string, event schemas.ArtefactEvent) error {
	path, err := l.storage.Resolve(movieID, artefactsLogName)
	if err != nil {
		return err
	}
	return appendJSONLine(ctx, l.storage, path, event)
}

func appendJSONLine(ctx context.Context, sc *storage.Context, path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("eventlog: marshal event: %w", err)
	}
	data = append(data, '\n')
	return sc.Append(ctx, path, data, "application/x-ndjson")
}

// InputSeq is the range-over-func iterator shape StreamInputs returns
// (Go 1.23, matching this module's go.mod floor): `for ev, err := range
// log.StreamInputs(...)`. Returning false from yield stops iteration
// early, e.g. once the caller has seen an error.
type InputSeq func(yield func(schemas.InputEvent, error) bool)

// ArtefactSeq is StreamArtefacts' iterator shape.
type ArtefactSeq func(yield func(schemas.ArtefactEvent, error) bool)

// StreamInputs iterates every InputEvent in file order, optionally
// filtered to revision > sinceRevision (numeric comparator). The log is
// read fresh from storage on each call (lazy, finite, restartable per
// spec.md §9 design notes — "no persistent cursors"); there is no
// persistent cursor to resume, so every call starts at the first line.
func (l *Log) StreamInputs(ctx context.Context, movieID string, sinceRevision *string) InputSeq {
	return func(yield func(schemas.InputEvent, error) bool) {
		path, err := l.storage.Resolve(movieID, inputsLogName)
		if err != nil {
			yield(schemas.InputEvent{}, err)
			return
		}
		lines, err := readLines(ctx, l.storage, path)
		if err != nil {
			yield(schemas.InputEvent{}, err)
			return
		}

		for _, line := range lines {
			var ev schemas.InputEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				yield(schemas.InputEvent{}, fmt.Errorf("eventlog: decode input event: %w", err))
				return
			}
			if sinceRevision != nil && !RevisionGreaterThan(ev.Revision, *sinceRevision) {
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// StreamArtefacts iterates every ArtefactEvent in file order, optionally
// filtered to revision > sinceRevision.
func (l *Log) StreamArtefacts(ctx context.Context, movieID string, sinceRevision *string) ArtefactSeq {
	return func(yield func(schemas.ArtefactEvent, error) bool) {
		path, err := l.storage.Resolve(movieID, artefactsLogName)
		if err != nil {
			yield(schemas.ArtefactEvent{}, err)
			return
		}
		lines, err := readLines(ctx, l.storage, path)
		if err != nil {
			yield(schemas.ArtefactEvent{}, err)
			return
		}

		for _, line := range lines {
			var ev schemas.ArtefactEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				yield(schemas.ArtefactEvent{}, fmt.Errorf("eventlog: decode artefact event: %w", err))
				return
			}
			if sinceRevision != nil && !RevisionGreaterThan(ev.Revision, *sinceRevision) {
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// readLines reads path and splits it into non-blank lines. A missing
// file is treated as empty (the log may not have been initialized yet).
func readLines(ctx context.Context, sc *storage.Context, path string) ([][]byte, error) {
	data, err := sc.Read(ctx, path)
	if err != nil {
		exists, existsErr := sc.FileExists(ctx, path)
		if existsErr == nil && !exists {
			return nil, nil
		}
		return nil, err
	}

	var lines [][]byte
	for _, raw := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		lines = append(lines, raw)
	}
	return lines, nil
}
