package query

import "fmt"

// UnknownFieldError reports a field reference that does not resolve to a
// declared attribute (or relation) of the owning alias.
type UnknownFieldError struct {
	Field string
	Alias string
}

func (e *UnknownFieldError) Error() string {
	if e.Alias == "" {
		return fmt.Sprintf("unknown field %q", e.Field)
	}
	return fmt.Sprintf("unknown field %q on alias %q", e.Field, e.Alias)
}

// InvalidFilterError reports a filter tree that cannot be compiled:
// mixed logical and field keys, unknown operators, or malformed operands.
type InvalidFilterError struct {
	Path   string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	if e.Path == "" {
		return "invalid filter: " + e.Reason
	}
	return fmt.Sprintf("invalid filter at %q: %s", e.Path, e.Reason)
}

func invalidFilter(path, format string, args ...any) error {
	return &InvalidFilterError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
