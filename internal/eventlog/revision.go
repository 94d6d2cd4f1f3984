package eventlog

import (
	"fmt"
	"regexp"
	"strconv"
)

var revisionPattern = regexp.MustCompile(`^rev-(\d+)$`)

// ParseRevision extracts the numeric counter from a "rev-NNNN" label,
// tolerating wider widths than 4 digits (spec.md §3.1).
func ParseRevision(rev string) (int, error) {
	m := revisionPattern.FindStringSubmatch(rev)
	if m == nil {
		return 0, fmt.Errorf("eventlog: malformed revision %q", rev)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("eventlog: malformed revision %q: %w", rev, err)
	}
	return n, nil
}

// FormatRevision renders a numeric counter as a zero-padded "rev-NNNN"
// label.
func FormatRevision(n int) string {
	return fmt.Sprintf("rev-%04d", n)
}

// RevisionGreaterThan reports whether a > b under the numeric comparator,
// tolerating malformed input by falling back to string comparison.
func RevisionGreaterThan(a, b string) bool {
	an, aerr := ParseRevision(a)
	bn, berr := ParseRevision(b)
	if aerr != nil || berr != nil {
		return a > b
	}
	return an > bn
}

// NextRevisionID computes the next revision label after current.
// NextRevisionID(nil) = "rev-0001". A malformed or absent current also
// yields "rev-0001" (spec.md §8 universal invariant).
func NextRevisionID(current *string) string {
	if current == nil {
		return FormatRevision(1)
	}
	n, err := ParseRevision(*current)
	if err != nil {
		return FormatRevision(1)
	}
	return FormatRevision(n + 1)
}
