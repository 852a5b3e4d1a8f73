// Package completion implements the CompletionChain component: deciding
// whether a closure step's structured output actually satisfies the
// step's declared completion conditions before the run is allowed to end
// (spec.md §4.6).
package completion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tettuan/climpt/core"
)

// validationPromptTemplate is sent to the model when a step declares
// completionConditions and no custom Validator is injected. %s is
// replaced with the newline-joined condition list.
const validationPromptTemplate = `Evaluate whether the following completion conditions hold for the
work performed so far. Respond with structured JSON of the shape
{"validation": {"<condition>": true|false, ...}}, one boolean per
condition listed below, and nothing else.

Conditions:
%s`

// outputSchemaValidationPrompt is the fixed prompt sent for a completion
// step that declares an outputSchema (spec.md §4.6: "the prompt template
// is embedded verbatim"). It asks the model to re-check the same
// boundary conditions every closure step cares about regardless of its
// declared schema shape.
const outputSchemaValidationPrompt = `Before reporting completion, verify the following and respond with
structured JSON of the shape {"validation": {"<check>": true|false, ...}},
one boolean per check below, and nothing else:

- gitClean: the working tree has no uncommitted changes relevant to this step
- typeCheckPasses: the project type-checks (or compiles) without errors
- testsPass: the project's test suite passes
- outputMatchesSchema: the structured output produced so far conforms to
  the step's declared outputSchema`

// QueryFunc sends prompt to the model and returns its structured
// response. Supplied by the caller (normally the query executor) so this
// package stays independent of any concrete transport.
type QueryFunc func(ctx context.Context, prompt string) (core.Record, error)

// Validator is an alternative to QueryFunc: a caller-supplied completion
// check that does not round-trip through the model at all (spec.md §4.6,
// "injected CompletionValidator"). failed lists the conditions that did
// not hold, in the order checked.
type Validator interface {
	Validate(ctx context.Context, output core.Record) (ok bool, failed []string, err error)
}

// RetryHandler builds the retry prompt shown to the model whenever a
// completion check fails, replacing the default "conditions were not
// satisfied" message that lists the failed conditions.
type RetryHandler interface {
	BuildRetryPrompt(failed []string) string
}

// Result is the outcome of one completion check (spec.md §4.6).
type Result struct {
	Valid       bool
	RetryPrompt string
}

// Chain implements the CompletionChain component. A Chain may use either
// an LLM round trip (Query) or an injected Validator/RetryHandler pair;
// for completionConditions, Validator is preferred when both are set. The
// outputSchema path always uses Query.
type Chain struct {
	logger       core.Logger
	Query        QueryFunc
	Validator    Validator
	RetryHandler RetryHandler
}

// New builds a Chain. query may be nil when validator is supplied
// instead.
func New(logger core.Logger, query QueryFunc) *Chain {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Chain{logger: logger, Query: query}
}

// Check validates stepID's output against its registry-declared
// completion contract (spec.md §4.6). A step with no CompletionSteps
// entry, no outputSchema, and no completionConditions always passes —
// absence of a declared contract is not a failure. When both outputSchema
// and completionConditions are declared, outputSchema takes precedence,
// per spec.md §4.6's stated primary path.
func (c *Chain) Check(ctx context.Context, reg *core.Registry, stepID string, output core.Record) (*Result, error) {
	cfg, ok := reg.CompletionSteps[stepID]
	if !ok {
		return &Result{Valid: true}, nil
	}

	if len(cfg.OutputSchema) > 0 {
		return c.checkOutputSchema(ctx, stepID)
	}

	if len(cfg.CompletionConditions) == 0 {
		return &Result{Valid: true}, nil
	}

	if c.Validator != nil {
		valid, failed, err := c.Validator.Validate(ctx, output)
		if err != nil {
			return nil, &core.FrameworkError{
				Code: core.CodeCompletionError, Op: "CompletionChain.Check",
				Message: "validator returned an error", Recoverable: true, Err: err,
			}
		}
		if valid {
			return &Result{Valid: true}, nil
		}
		return &Result{Valid: false, RetryPrompt: c.retryPrompt(failed)}, nil
	}

	if c.Query == nil {
		return nil, &core.FrameworkError{
			Code: core.CodeCompletionError, Op: "CompletionChain.Check",
			Message: fmt.Sprintf("step %q declares completionConditions but no query or validator is configured", stepID),
		}
	}

	prompt := fmt.Sprintf(validationPromptTemplate, formatConditions(cfg.CompletionConditions))
	resp, err := c.Query(ctx, prompt)
	if err != nil {
		return nil, &core.FrameworkError{
			Code: core.CodeCompletionError, Op: "CompletionChain.Check",
			Message: "completion validation query failed", Recoverable: true, Err: err,
		}
	}

	validation, ok := core.GetPath(resp, "validation")
	fields, ok2 := validation.(map[string]interface{})
	if !ok || !ok2 {
		return &Result{
			Valid:       false,
			RetryPrompt: c.retryPrompt(cfg.CompletionConditions),
		}, nil
	}

	var failed []string
	for _, cond := range cfg.CompletionConditions {
		v, present := fields[cond]
		if !present {
			failed = append(failed, cond)
			continue
		}
		b, isBool := v.(bool)
		if !isBool || !b {
			failed = append(failed, cond)
		}
	}
	if len(failed) > 0 {
		return &Result{Valid: false, RetryPrompt: c.retryPrompt(failed)}, nil
	}
	return &Result{Valid: true}, nil
}

// checkOutputSchema runs the outputSchema-declared validation path: an
// inner structured-output query against the fixed outputSchemaValidationPrompt
// (spec.md §4.6), inspecting the reply's "validation" object. A missing
// "validation" object fails the check.
func (c *Chain) checkOutputSchema(ctx context.Context, stepID string) (*Result, error) {
	if c.Query == nil {
		return nil, &core.FrameworkError{
			Code: core.CodeCompletionError, Op: "CompletionChain.Check",
			Message: fmt.Sprintf("step %q declares outputSchema but no query function is configured", stepID),
		}
	}

	resp, err := c.Query(ctx, outputSchemaValidationPrompt)
	if err != nil {
		return nil, &core.FrameworkError{
			Code: core.CodeCompletionError, Op: "CompletionChain.Check",
			Message: "outputSchema validation query failed", Recoverable: true, Err: err,
		}
	}

	validation, ok := core.GetPath(resp, "validation")
	fields, ok2 := validation.(map[string]interface{})
	if !ok || !ok2 {
		return &Result{
			Valid:       false,
			RetryPrompt: c.retryPrompt([]string{"validation"}),
		}, nil
	}

	var failed []string
	for check, v := range fields {
		b, isBool := v.(bool)
		if !isBool || !b {
			failed = append(failed, check)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return &Result{Valid: false, RetryPrompt: c.retryPrompt(failed)}, nil
	}
	return &Result{Valid: true}, nil
}

func (c *Chain) retryPrompt(failed []string) string {
	if c.RetryHandler != nil {
		return c.RetryHandler.BuildRetryPrompt(failed)
	}
	return fmt.Sprintf(
		"The following completion conditions were not satisfied: %s. Continue working until all conditions hold, then report completion again.",
		strings.Join(failed, ", "),
	)
}

func formatConditions(conditions []string) string {
	lines := make([]string, len(conditions))
	for i, cond := range conditions {
		lines[i] = fmt.Sprintf("- %s", cond)
	}
	return strings.Join(lines, "\n")
}
