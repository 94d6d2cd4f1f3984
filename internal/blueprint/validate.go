package blueprint

import (
	"fmt"
	"strings"

	"github.com/moviegen/forge/internal/schemas"
)

// Validate walks the fully-resolved document tree and checks spec.md
// §3.2's invariants: every edge/collector reference resolves to a
// declared input, artefact, producer, or sub-blueprint in the target
// namespace; a namespace referenced with dimension brackets carries the
// same count and symbol names everywhere it is referenced; optional
// inputs declare a default (already checked per-document by the loader,
// re-checked here for documents built in memory by tests).
//
// Mirrors the teacher's validator.Validator.Validate shape (structural
// checks, then a self-check) with spec.md's reference/dimension
// invariants standing in for the teacher's URI/scheme checks.
func Validate(root *schemas.Document) error {
	dims := map[string][]string{}
	return validateDocument(root, "", dims)
}

func validateDocument(doc *schemas.Document, nsPath string, dims map[string][]string) error {
	for _, in := range doc.Inputs {
		if !in.Required && in.DefaultValue == nil {
			return fmt.Errorf("%w: %s: optional input %q must declare a defaultValue", ErrBlueprintParse, namespaceLabel(nsPath), in.Name)
		}
	}

	for _, edge := range doc.Edges {
		if err := validateReference(doc, nsPath, edge.From, dims); err != nil {
			return fmt.Errorf("edge %q -> %q: %w", edge.From, edge.To, err)
		}
		if err := validateReference(doc, nsPath, edge.To, dims); err != nil {
			return fmt.Errorf("edge %q -> %q: %w", edge.From, edge.To, err)
		}
	}

	for _, col := range doc.Collectors {
		if err := validateReference(doc, nsPath, col.From, dims); err != nil {
			return fmt.Errorf("collector %q: %w", col.Name, err)
		}
		if err := validateReference(doc, nsPath, col.Into, dims); err != nil {
			return fmt.Errorf("collector %q: %w", col.Name, err)
		}
	}

	for _, sub := range doc.SubBlueprints {
		if sub.Resolved == nil {
			return fmt.Errorf("%w: %s: sub-blueprint %q was not resolved by the loader", ErrBlueprintParse, namespaceLabel(nsPath), sub.Namespace)
		}
		childNs := joinNamespace(nsPath, sub.Namespace)
		if err := validateDocument(sub.Resolved, childNs, dims); err != nil {
			return err
		}
	}

	return nil
}

// validateReference resolves ref against doc, descending into
// sub-blueprints for every segment but the last, and registers each
// traversed segment's dimension symbols against that segment's own
// namespace key (the current namespace path joined with the segment name).
func validateReference(doc *schemas.Document, nsPath, raw string, dims map[string][]string) error {
	ref, err := ParseReference(raw)
	if err != nil {
		return err
	}

	cur := doc
	curNs := nsPath
	for i, seg := range ref.Path {
		scopeKey := joinNamespace(curNs, seg.Name)
		if err := registerDims(dims, scopeKey, seg.Dims); err != nil {
			return fmt.Errorf("reference %q: %w", raw, err)
		}

		if i == len(ref.Path)-1 {
			if !nodeExists(cur, seg.Name) {
				return fmt.Errorf("%w: reference %q: %q does not resolve in namespace %s", ErrBlueprintParse, raw, seg.Name, namespaceLabel(curNs))
			}
			return nil
		}

		next := findSubBlueprint(cur, seg.Name)
		if next == nil {
			return fmt.Errorf("%w: reference %q: unknown namespace segment %q", ErrBlueprintParse, raw, seg.Name)
		}
		cur = next.Resolved
		curNs = joinNamespace(curNs, seg.Name)
	}

	return nil
}

func registerDims(dims map[string][]string, scopeKey string, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	existing, ok := dims[scopeKey]
	if !ok {
		dims[scopeKey] = symbols
		return nil
	}
	if len(existing) != len(symbols) {
		return fmt.Errorf("%w: namespace %q previously declared %d dimension(s) (%v), now referenced with %d (%v)",
			ErrBlueprintParse, scopeKey, len(existing), existing, len(symbols), symbols)
	}
	for i := range existing {
		if existing[i] != symbols[i] {
			return fmt.Errorf("%w: namespace %q dimension symbol mismatch at position %d: %q vs %q",
				ErrBlueprintParse, scopeKey, i, existing[i], symbols[i])
		}
	}
	return nil
}

func nodeExists(doc *schemas.Document, name string) bool {
	for _, in := range doc.Inputs {
		if in.Name == name {
			return true
		}
	}
	for _, a := range doc.Artefacts {
		if a.Name == name {
			return true
		}
	}
	for _, p := range doc.Producers {
		if p.Name == name {
			return true
		}
	}
	return false
}

func findSubBlueprint(doc *schemas.Document, namespace string) *schemas.SubBlueprint {
	for i := range doc.SubBlueprints {
		if doc.SubBlueprints[i].Namespace == namespace {
			return &doc.SubBlueprints[i]
		}
	}
	return nil
}

func joinNamespace(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}

func namespaceLabel(nsPath string) string {
	if nsPath == "" {
		return "root"
	}
	return strings.TrimPrefix(nsPath, ".")
}
