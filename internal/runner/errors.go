package runner

import "errors"

// ErrNoProducer is returned when a job's (provider, providerModel) pair
// cannot be resolved to a contracts.ProduceFunc.
var ErrNoProducer = errors.New("runner: no producer registered for job")

// ErrUnresolvedInput is returned when a job input id resolves to neither
// a caller-supplied value nor a succeeded artefact event.
var ErrUnresolvedInput = errors.New("runner: input id did not resolve to a value")
