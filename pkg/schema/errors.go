package schema

import (
	"errors"
	"fmt"
)

// ErrFormat indicates a schema descriptor or cached snapshot that does not have the expected shape.
var ErrFormat = errors.New("schema format error")

// FormatError describes why a schema could not be read. It wraps ErrFormat for errors.Is().
type FormatError struct {
	Source string   // "descriptor" or "snapshot"
	Issues []string // Deterministic, ordered list of problems
	Err    error    // Optional underlying error (e.g., from json.Unmarshal)
}

func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}

	msg := ErrFormat.Error()
	if e.Source != "" {
		msg = fmt.Sprintf("%s: invalid %s", msg, e.Source)
	}

	switch {
	case len(e.Issues) > 0:
		return fmt.Sprintf("%s: %s", msg, joinIssues(e.Issues))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	default:
		return msg
	}
}

func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFormat, e.Err}
	}

	return []error{ErrFormat}
}

// IsFormatError checks if an error indicates a malformed schema.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrFormat)
}

func joinIssues(issues []string) string {
	out := issues[0]
	for _, issue := range issues[1:] {
		out += "; " + issue
	}

	return out
}
