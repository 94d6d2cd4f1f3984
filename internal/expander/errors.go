package expander

import "errors"

// ErrExpand is raised when a dimension's cardinality cannot be resolved
// (missing/invalid counter input value, or a cyclic dimension lineage).
var ErrExpand = errors.New("expander: dimension expansion error")
