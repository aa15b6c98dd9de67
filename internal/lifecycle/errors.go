package lifecycle

import "errors"

// Error taxonomy surfaced to callers. Each one maps to a distinct HTTP status
// in the handlers.
var (
	// ErrInvalidPayload: a required field is missing or malformed on Create.
	// Nothing is persisted.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrUnauthorized: the actor does not currently own the transition, e.g.
	// a collector acting on a request assigned to someone else.
	ErrUnauthorized = errors.New("not the assigned collector")
	// ErrConflict: the transition was valid when the caller read the request
	// but another actor got there first.
	ErrConflict = errors.New("request was updated concurrently")
	// ErrNotFound: no request with that id.
	ErrNotFound = errors.New("request not found")
	// ErrInvalidState: the transition is not defined from the request's
	// current status, e.g. anything after collected.
	ErrInvalidState = errors.New("transition not allowed in current state")
)
