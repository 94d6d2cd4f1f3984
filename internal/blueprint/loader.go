// Package blueprint parses blueprint documents and resolves the
// sub-blueprint tree (spec.md §3.2), generalizing the teacher's flat
// schemas.JobSpec into a recursive document tree.
package blueprint

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/moviegen/forge/internal/schemas"
)

// Loader reads blueprint documents from disk and recursively resolves
// their sub-blueprints.
type Loader struct{}

// NewLoader creates a blueprint loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the document at path and recursively resolves every
// sub-blueprint reachable from it, relative to their declaring document's
// directory.
func (l *Loader) Load(path string) (*schemas.Document, error) {
	return l.load(path, map[string]bool{})
}

func (l *Loader) load(path string, visiting map[string]bool) (*schemas.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve path %q: %v", ErrBlueprintParse, path, err)
	}
	if visiting[abs] {
		return nil, fmt.Errorf("%w: circular sub-blueprint reference at %q", ErrBlueprintParse, path)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrBlueprintParse, path, err)
	}

	var doc schemas.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %q: %v", ErrBlueprintParse, path, err)
	}
	doc.SourcePath = abs

	if err := validateMeta(&doc, path); err != nil {
		return nil, err
	}

	visiting[abs] = true
	defer delete(visiting, abs)

	dir := filepath.Dir(abs)
	for i := range doc.SubBlueprints {
		sub := &doc.SubBlueprints[i]
		if sub.Namespace == "" {
			return nil, fmt.Errorf("%w: sub-blueprint in %q is missing a namespace", ErrBlueprintParse, path)
		}
		childPath := sub.Path
		if !filepath.IsAbs(childPath) {
			childPath = filepath.Join(dir, childPath)
		}
		child, err := l.load(childPath, visiting)
		if err != nil {
			return nil, err
		}
		sub.Resolved = child
	}

	return &doc, nil
}

func validateMeta(doc *schemas.Document, path string) error {
	if doc.Meta.ID == "" {
		return fmt.Errorf("%w: %q: meta.id is required", ErrBlueprintParse, path)
	}
	if doc.Meta.Name == "" {
		return fmt.Errorf("%w: %q: meta.name is required", ErrBlueprintParse, path)
	}
	for _, in := range doc.Inputs {
		if !in.Required && in.DefaultValue == nil {
			return fmt.Errorf("%w: %q: optional input %q must declare a defaultValue", ErrBlueprintParse, path, in.Name)
		}
	}
	return nil
}
