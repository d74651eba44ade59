package models

// Severity is the level attached to a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a validation finding targeting a component field path.
type Diagnostic struct {
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// NewError creates an error diagnostic.
func NewError(path, message string) Diagnostic {
	return Diagnostic{Path: path, Message: message, Severity: SeverityError}
}

// NewWarning creates a warning diagnostic.
func NewWarning(path, message string) Diagnostic {
	return Diagnostic{Path: path, Message: message, Severity: SeverityWarning}
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diagnostics []Diagnostic) bool {
	for _, d := range diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}

	return false
}
