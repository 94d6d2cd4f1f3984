package planning

import "errors"

// ErrInvalidInputID is raised when a caller supplies an input edit whose
// id does not carry the canonical "Input:" prefix (spec.md §4.9 step 3:
// "Reject non-canonical ids").
var ErrInvalidInputID = errors.New("planning: input id is not canonical")
