package query

import "fmt"

// ValidationError reports a structurally invalid filter or option value,
// or a model property that failed validation. It is always returned
// before any query text is executed.
type ValidationError struct {
	// Reason describes what was invalid.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("norm: validation failed: %s: %v", e.Reason, e.Err)
	}

	return "norm: validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UnsupportedFilterError reports an unknown operator in a filter document.
type UnsupportedFilterError struct {
	// Operator is the unrecognized operator, including its `$` prefix.
	Operator string
}

func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("norm: unsupported filter operator %q", e.Operator)
}
