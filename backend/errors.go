package backend

import "fmt"

// ErrorKind classifies backend call failures for user-facing hints.
type ErrorKind string

const (
	// ErrorUnknown is an uncategorized backend failure.
	ErrorUnknown ErrorKind = "unknown"
	// ErrorUnavailable indicates the backend is unreachable.
	ErrorUnavailable ErrorKind = "unavailable"
	// ErrorStatus indicates a non-success HTTP status.
	ErrorStatus ErrorKind = "status"
	// ErrorDecode indicates a malformed response body.
	ErrorDecode ErrorKind = "decode"
	// ErrorRejected indicates the backend reported success=false.
	ErrorRejected ErrorKind = "rejected"
)

// Error wraps backend call failures with a stable classification, so the
// remediation layer can be reported distinctly from the faults it repairs.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// NewError constructs a classified backend error.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "backend error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("backend %s failed", e.Op)
	}
	return "backend error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
