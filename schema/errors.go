package schema

import "errors"

var (
	// ErrInvalidProject indicates an invalid project identifier.
	ErrInvalidProject = errors.New("invalid project")
	// ErrInvalidSession indicates an invalid session identifier.
	ErrInvalidSession = errors.New("invalid session")
	// ErrInvalidStack indicates an invalid tech stack identifier.
	ErrInvalidStack = errors.New("invalid tech stack")
	// ErrNoSession indicates no build session is active.
	ErrNoSession = errors.New("no active session")
	// ErrBackendUnavailable indicates the builder backend is unreachable.
	ErrBackendUnavailable = errors.New("backend not configured")
	// ErrStreamClosed indicates the event stream connection was closed.
	ErrStreamClosed = errors.New("event stream closed")
	// ErrRemediationFailed indicates both remediation strategies failed.
	ErrRemediationFailed = errors.New("remediation failed")
)
