package contracts

import "errors"

// ErrInvalidPrincipal is returned when a bearer token fails signature,
// expiry, or claims validation.
var ErrInvalidPrincipal = errors.New("contracts: invalid principal token")
