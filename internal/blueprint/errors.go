package blueprint

import "errors"

// ErrBlueprintParse is raised for missing/invalid meta, undeclared
// optional defaults, non-string required fields, and unknown references
// (spec.md §7).
var ErrBlueprintParse = errors.New("blueprint: parse error")
