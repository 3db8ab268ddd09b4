package config

import (
	"time"

	"github.com/sitestack/sitestack/pkg/stack"
)

// ParsedStack is the result of parsing one set of CUE sources.
type ParsedStack struct {
	// Stack is the decoded stack configuration.
	Stack stack.StackConfig `json:"stack"`

	// Computed holds values produced by the config's optional `computed`
	// Starlark snippet.
	Computed map[string]interface{} `json:"computed,omitempty"`

	// SourceFiles are the CUE files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists parse and schema errors with source positions.
	Errors []ValidationError `json:"errors,omitempty"`
}

// HasErrors reports whether any error-severity entry was collected.
func (p *ParsedStack) HasErrors() bool {
	for _, e := range p.Errors {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidationError represents a configuration error with location
// information, suitable for verbatim display to the operator.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the CUE path to the error (e.g., "stack.region").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity"`
}

// ComputedResult represents the result of evaluating a `computed` snippet.
type ComputedResult struct {
	// Output is the global bindings the snippet produced.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the snippet took to evaluate.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
