package stack

import (
	"fmt"
	"strings"
)

// ValidationError reports a single configuration value that failed its
// declared predicate. The operator corrects the value and re-runs; nothing
// in this package retries on its own.
type ValidationError struct {
	// Field is the configuration key that failed (e.g. "region").
	Field string `json:"field"`

	// Value is the supplied value, echoed back verbatim.
	Value string `json:"value"`

	// Message describes the required shape in operator terms.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ValidationErrors collects every failed predicate from one validation
// pass. Validation never short-circuits: the caller sees all problems at
// once, one entry per failing field.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e), strings.Join(msgs, "; "))
}

// Fields returns the failing field names in report order.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, len(e))
	for i, ve := range e {
		fields[i] = ve.Field
	}
	return fields
}

// MissingFieldError reports an output binding whose topology field was
// absent or empty. This indicates an inconsistency between the declared
// bindings and the actual topology, so it is surfaced immediately rather
// than defaulted; an empty output would mask a provisioning failure
// upstream.
type MissingFieldError struct {
	// Output is the declared output name that could not be derived.
	Output string `json:"output"`

	// Field is the topology field the binding reads.
	Field string `json:"field"`
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("cannot derive output %q: topology field %q is not populated", e.Output, e.Field)
}

// Is implements error equality for errors.Is.
func (e *MissingFieldError) Is(target error) bool {
	t, ok := target.(*MissingFieldError)
	if !ok {
		return false
	}
	return e.Output == t.Output && e.Field == t.Field
}
