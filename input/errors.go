package input

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// UnresolvedError is raised when batch resolution cannot find a value for
// a required input with no default.
type UnresolvedError struct {
	ID string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("input %q: no value supplied and batch resolution cannot prompt", e.ID)
}

// ValidationError reports every validation regex an input's resolved text
// value failed to match.
type ValidationError struct {
	ID  string
	Err *multierror.Error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input %q: %s", e.ID, e.Err.Error())
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InvalidError reports a resolved enum/list value (or one of its elements)
// that does not match any effective option.
type InvalidError struct {
	ID    string
	Value string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("input %q: %q is not among the effective options", e.ID, e.Value)
}
