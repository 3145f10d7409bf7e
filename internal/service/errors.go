package service

import "errors"

// Error classes surfaced to the API layer. Wrap them with detail using fmt.Errorf("%w: ...").
// Anything that does not match one of these is an internal error.
var (
	// ErrValidation reports bad or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports an unknown document id.
	ErrNotFound = errors.New("document not found")
	// ErrConfiguration reports a missing credential or setting needed for the request.
	ErrConfiguration = errors.New("service not configured")
	// ErrUpstream reports a failed remote platform or object store call.
	ErrUpstream = errors.New("upstream request failed")
	// ErrUnsupportedSource reports a record whose origin this deployment cannot serve.
	ErrUnsupportedSource = errors.New("unsupported document source")
)
