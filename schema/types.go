package schema

import "time"

// ProjectID identifies a generated project on the builder backend.
type ProjectID string

// SessionID identifies one build/preview lifecycle.
type SessionID string

// TechStack names the stack the backend should generate.
type TechStack string

// Phase is the raw pipeline phase string reported by the backend.
type Phase string

// Session describes one build/preview lifecycle owned by the controller.
type Session struct {
	ID        SessionID
	Project   ProjectID
	CreatedAt time.Time
}

// ErrorSeverity classifies a captured runtime failure.
type ErrorSeverity string

const (
	// SeverityError marks a failure that blocks the generated app.
	SeverityError ErrorSeverity = "error"
	// SeverityWarning marks a failure surfaced for information only.
	SeverityWarning ErrorSeverity = "warning"
)

// ErrorType is the remediation category sent to the backend.
type ErrorType string

const (
	// ErrorTypeSyntax covers parse and syntax failures.
	ErrorTypeSyntax ErrorType = "syntax"
	// ErrorTypeReference covers missing-reference failures.
	ErrorTypeReference ErrorType = "reference"
	// ErrorTypeCompile covers compilation and bundling failures.
	ErrorTypeCompile ErrorType = "compile"
	// ErrorTypeRuntime covers uncaught runtime failures.
	ErrorTypeRuntime ErrorType = "runtime"
	// ErrorTypeGeneric is the broader second-tier remediation category.
	ErrorTypeGeneric ErrorType = "generic"
)

// ErrorRecord captures one classified runtime failure awaiting remediation.
type ErrorRecord struct {
	Project    ProjectID
	Message    string
	Timestamp  time.Time
	SourceFile string
	Line       int
	Severity   ErrorSeverity
	Type       ErrorType
}
