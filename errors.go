package maru

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrLocationRequired indicates a send was attempted with an empty
	// location. This is a precondition failure: no network call is made
	// and no state is touched.
	ErrLocationRequired = errors.New("location required")

	// ErrNoSession indicates a send was attempted with no active session.
	ErrNoSession = errors.New("no session selected")

	// ErrSendInFlight indicates a send is already pending for the session.
	ErrSendInFlight = errors.New("send already in flight")

	// ErrHistoryNotLoaded indicates a send was attempted before the active
	// session's history finished loading. Sending then would race the load
	// and could drop the fetched history, so it is rejected up front.
	ErrHistoryNotLoaded = errors.New("session history not loaded")

	// ErrSuperseded indicates an operation completed after a Reset cleared
	// the state it would have applied to; its result was discarded.
	ErrSuperseded = errors.New("superseded by reset")

	// ErrUnauthorized indicates the backend rejected the ambient credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested resource no longer exists server-side.
	ErrNotFound = errors.New("not found")
)
