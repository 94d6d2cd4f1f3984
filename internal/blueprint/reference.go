package blueprint

import (
	"fmt"
	"regexp"
	"strings"
)

// Segment is one dot-separated component of a reference, optionally
// carrying its own bracketed dimension symbols (spec.md §4.5 step 1:
// "parse every edge endpoint's bracketed dimension list").
type Segment struct {
	Name string
	Dims []string
}

// Reference is a fully parsed edge/collector endpoint such as
// "audio.AudioProducer[segment]". All segments but the last form the
// namespace path; the last segment names the target node and carries its
// node-local dimensions.
type Reference struct {
	Raw      string
	Path     []Segment
}

// Node returns the final (target) segment.
func (r Reference) Node() Segment { return r.Path[len(r.Path)-1] }

// NamespacePath returns the dot-joined names of every segment but the
// last.
func (r Reference) NamespacePath() string {
	names := make([]string, 0, len(r.Path)-1)
	for _, seg := range r.Path[:len(r.Path)-1] {
		names = append(names, seg.Name)
	}
	return strings.Join(names, ".")
}

var segmentPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)((?:\[[A-Za-z_][A-Za-z0-9_]*\])*)$`)
var bracketPattern = regexp.MustCompile(`\[([A-Za-z_][A-Za-z0-9_]*)\]`)

// ParseReference parses a dotted, optionally dimension-bracketed
// reference string.
func ParseReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reference{}, fmt.Errorf("%w: empty reference", ErrBlueprintParse)
	}

	parts := strings.Split(trimmed, ".")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		m := segmentPattern.FindStringSubmatch(part)
		if m == nil {
			return Reference{}, fmt.Errorf("%w: malformed reference segment %q in %q", ErrBlueprintParse, part, raw)
		}
		var dims []string
		for _, bm := range bracketPattern.FindAllStringSubmatch(m[2], -1) {
			dims = append(dims, bm[1])
		}
		segments = append(segments, Segment{Name: m[1], Dims: dims})
	}

	return Reference{Raw: trimmed, Path: segments}, nil
}
