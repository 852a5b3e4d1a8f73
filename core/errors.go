// Package core provides the shared types, interfaces, and error taxonomy
// consumed by every step-flow package: the step registry model, the
// per-iteration summary, the step context, and the stable error codes
// surfaced to callers of the runner.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable, external error identifier. Code identity, not Go type
// identity, is the contract callers should depend on (see FrameworkError).
type Code string

const (
	CodeNotInitialized     Code = "AGENT_NOT_INITIALIZED"
	CodeQueryError         Code = "AGENT_QUERY_ERROR"
	CodeCompletionError    Code = "AGENT_COMPLETION_ERROR"
	CodeTimeout            Code = "AGENT_TIMEOUT"
	CodeMaxIterations      Code = "AGENT_MAX_ITERATIONS"
	CodeRateLimit          Code = "AGENT_RATE_LIMIT"
	CodeEnvironmentError   Code = "AGENT_ENVIRONMENT_ERROR"
	CodeSchemaResolution   Code = "FAILED_SCHEMA_RESOLUTION"
	CodeStepRouting        Code = "FAILED_STEP_ROUTING"
)

// Sentinel errors for errors.Is comparisons against error categories that
// recur across packages without a specific FrameworkError context.
var (
	ErrNotInitialized  = errors.New("step-flow runner not initialized")
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrNoStructuredOut = errors.New("no structured output produced")
)

// FrameworkError is the sum type every surfaced error in this module
// collapses to. Implementations in other languages model the same
// hierarchy as a tagged union carrying Code, Recoverable, and
// category-specific payload (spec.md design note, §9).
type FrameworkError struct {
	Code        Code
	Op          string // operation that failed, e.g. "SchemaManager.loadSchemaForStep"
	Message     string
	Recoverable bool
	Payload     map[string]interface{}
	Err         error
}

func (e *FrameworkError) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FrameworkError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &FrameworkError{Code: X}) to match on Code alone.
func (e *FrameworkError) Is(target error) bool {
	var t *FrameworkError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewFrameworkError builds a FrameworkError with an attached payload.
func NewFrameworkError(code Code, op, message string, recoverable bool, payload map[string]interface{}) *FrameworkError {
	return &FrameworkError{Code: code, Op: op, Message: message, Recoverable: recoverable, Payload: payload}
}

// WithErr attaches an underlying error for wrapping.
func (e *FrameworkError) WithErr(err error) *FrameworkError {
	e.Err = err
	return e
}

// SchemaPointerError is raised by the SchemaResolver when a JSON Pointer
// segment does not resolve inside a schema file.
type SchemaPointerError struct {
	Pointer string
	File    string
}

func (e *SchemaPointerError) Error() string {
	return fmt.Sprintf("schema pointer %q not found in file %q", e.Pointer, e.File)
}

// GateInterpretationError is raised by the GateInterpreter when failFast
// is in effect and no valid intent could be extracted.
type GateInterpretationError struct {
	StepID string
	Reason string
}

func (e *GateInterpretationError) Error() string {
	return fmt.Sprintf("gate interpretation failed for step %q: %s", e.StepID, e.Reason)
}

// RoutingError is raised by the WorkflowRouter on any rule violation.
type RoutingError struct {
	StepID  string
	Intent  string
	Message string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing error on step %q (intent %q): %s", e.StepID, e.Intent, e.Message)
}

// ConfigurationError collects load-time validation failures — missing
// structuredGate/transitions/outputSchemaRef on non-template steps, or a
// disallowed completionType without gates (spec.md §7). It halts
// initialization before any run-scoped error code applies.
type ConfigurationError struct {
	Issues []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid step registry configuration: %s", strings.Join(e.Issues, "; "))
}

// IsRecoverable reports whether err carries a recoverable classification,
// defaulting to false (fail-closed) for errors outside the taxonomy.
func IsRecoverable(err error) bool {
	var fe *FrameworkError
	if errors.As(err, &fe) {
		return fe.Recoverable
	}
	return false
}
