// Package query implements the QueryExecutor component: one round trip
// to the model for a single iteration, including tool-policy
// enforcement, structured-output schema attachment, and rate-limit
// backoff (spec.md §4.8). The model transport itself is out of scope —
// callers supply a Transport.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/tettuan/climpt/classify"
	"github.com/tettuan/climpt/core"
	"github.com/tettuan/climpt/resilience"
	"github.com/tettuan/climpt/schema"
)

// MessageType discriminates the events a Transport streams back for one
// query.
type MessageType string

const (
	MsgAssistant MessageType = "assistant"
	MsgToolUse   MessageType = "tool_use"
	MsgResult    MessageType = "result"
	MsgError     MessageType = "error"
)

// Message is one event in a query's response stream.
type Message struct {
	Type             MessageType
	Text             string
	ToolName         string
	ToolInput        map[string]interface{}
	StructuredOutput core.Record
	ErrorText        string
	CostUSD          float64
	Duration         time.Duration
	TurnCount        int
}

// Request is what gets sent to the Transport for one iteration.
type Request struct {
	Prompt           string
	SessionID        string
	AllowedTools     []string
	StructuredSchema map[string]interface{}
}

// Transport is the (external, out-of-scope) LLM streaming interface.
// Implementations push Messages onto the returned channel and close it
// when the query is done; a MsgError message or a returned error both
// signal failure.
type Transport interface {
	Stream(ctx context.Context, req Request) (<-chan Message, error)
}

// QueryError wraps a non-rate-limit transport failure. Recoverable
// mirrors the classify package's verdict on the error text.
type QueryError struct {
	Message     string
	Recoverable bool
	Category    classify.Category
	Err         error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query error (%s): %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("query error (%s): %s", e.Category, e.Message)
}

func (e *QueryError) Unwrap() error { return e.Err }

// defaultAllowedTools is the per-step-kind tool policy (spec.md §4.8).
// Closure steps never carry Bash in their default policy; blockBoundaryBash
// additionally strips it defensively from any caller-supplied override.
var defaultAllowedTools = map[core.StepKind][]string{
	core.KindInitial:      {"Read", "Grep", "Glob", "Bash", "Write", "Edit"},
	core.KindContinuation: {"Read", "Grep", "Glob", "Bash", "Write", "Edit"},
	core.KindVerification: {"Read", "Grep", "Glob", "Bash"},
	core.KindClosure:      {"Read", "Grep", "Glob", "Write", "Edit"},
}

// blockBoundaryBash removes "Bash" from tools when step is a closure step,
// regardless of where the list came from — the boundary hook's single
// surface contract must not be sidesteppable by an overly permissive
// custom tool policy.
func blockBoundaryBash(kind core.StepKind, tools []string) []string {
	if kind != core.KindClosure {
		return tools
	}
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		if t != "Bash" {
			out = append(out, t)
		}
	}
	return out
}

// AllowedTools resolves the tool policy for step, applying the
// boundary-Bash denial unconditionally.
func AllowedTools(step *core.Step, override map[core.StepKind][]string) []string {
	policy := defaultAllowedTools
	if override != nil {
		policy = override
	}
	return blockBoundaryBash(step.Kind, policy[step.Kind])
}

// Executor implements the QueryExecutor component.
type Executor struct {
	transport       Transport
	schemaManager   *schema.Manager
	logger          core.Logger
	circuitBreaker  *resilience.CircuitBreaker
	maxRetries      int
	backoffBase     time.Duration
	backoffCap      time.Duration
	toolPolicy      map[core.StepKind][]string
}

// Option customizes an Executor.
type Option func(*Executor)

// WithCircuitBreaker wraps every Execute call with cb.CanExecute /
// RecordSuccess / RecordFailure.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithToolPolicy overrides the default per-step-kind allowed tool list.
func WithToolPolicy(policy map[core.StepKind][]string) Option {
	return func(e *Executor) { e.toolPolicy = policy }
}

// WithBackoff overrides the rate-limit backoff base/cap (spec.md §4.8
// defaults: 5000ms / 60000ms).
func WithBackoff(base, cap_ time.Duration) Option {
	return func(e *Executor) { e.backoffBase = base; e.backoffCap = cap_ }
}

// NewExecutor builds an Executor. maxRetries is the number of rate-limit
// retries allowed before the iteration fails with core.CodeRateLimit.
func NewExecutor(transport Transport, schemaManager *schema.Manager, logger core.Logger, maxRetries int, opts ...Option) *Executor {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	e := &Executor{
		transport:     transport,
		schemaManager: schemaManager,
		logger:        logger,
		maxRetries:    maxRetries,
		backoffBase:   5000 * time.Millisecond,
		backoffCap:    60000 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one iteration's query against step, attaching step's
// structured-output schema (if any) and enforcing step's tool policy,
// retrying with exponential backoff on rate-limit errors up to
// maxRetries (spec.md §4.8).
func (e *Executor) Execute(ctx context.Context, step *core.Step, prompt, sessionID string, iteration int) (*core.IterationSummary, error) {
	if e.circuitBreaker != nil && !e.circuitBreaker.CanExecute() {
		return nil, core.NewFrameworkError(
			core.CodeQueryError, "QueryExecutor.Execute", "circuit breaker is open", true,
			map[string]interface{}{"stepId": step.ID, "iteration": iteration},
		).WithErr(core.ErrCircuitOpen)
	}

	var outSchema map[string]interface{}
	schemaResolutionFailed := false
	if step.OutputSchemaRef != nil {
		resolved, failed, err := e.schemaManager.LoadSchemaForStep(step.ID, iteration, step.OutputSchemaRef)
		if err != nil {
			return nil, err
		}
		outSchema = resolved
		schemaResolutionFailed = failed
	}

	req := Request{
		Prompt:           prompt,
		SessionID:        sessionID,
		AllowedTools:     AllowedTools(step, e.toolPolicy),
		StructuredSchema: outSchema,
	}

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		summary, retryable, err := e.runOnce(ctx, req, iteration)
		if err == nil {
			summary.SchemaResolutionFailed = schemaResolutionFailed
			if e.circuitBreaker != nil {
				e.circuitBreaker.RecordSuccess()
			}
			return summary, nil
		}

		if e.circuitBreaker != nil {
			e.circuitBreaker.RecordFailure()
		}

		if !retryable {
			return nil, err
		}

		if attempt > e.maxRetries {
			return nil, core.NewFrameworkError(
				core.CodeRateLimit, "QueryExecutor.Execute",
				fmt.Sprintf("exceeded %d rate-limit retries for step %q", e.maxRetries, step.ID),
				false,
				map[string]interface{}{"stepId": step.ID, "iteration": iteration, "attempts": attempt},
			).WithErr(err)
		}

		wait := resilience.BackoffDelay(attempt, e.backoffBase, e.backoffCap)
		e.logger.Warn("[StepFlow] rate limited, backing off", map[string]interface{}{
			"stepId": step.ID, "iteration": iteration, "attempt": attempt, "waitMs": wait.Milliseconds(),
		})
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// runOnce performs a single transport round trip, classifying any
// terminal error as retryable (rate limit) or not.
func (e *Executor) runOnce(ctx context.Context, req Request, iteration int) (*core.IterationSummary, bool, error) {
	stream, err := e.transport.Stream(ctx, req)
	if err != nil {
		return nil, classify.IsRateLimit(err.Error()), e.wrapTransportErr(err.Error())
	}

	summary := &core.IterationSummary{Iteration: iteration, SessionID: req.SessionID}

	for msg := range stream {
		switch msg.Type {
		case MsgAssistant:
			summary.AssistantResponses = append(summary.AssistantResponses, msg.Text)
		case MsgToolUse:
			summary.ToolsUsed = append(summary.ToolsUsed, msg.ToolName)
		case MsgResult:
			summary.StructuredOutput = msg.StructuredOutput
			summary.CostUSD = msg.CostUSD
			summary.Duration = msg.Duration
			summary.TurnCount = msg.TurnCount
		case MsgError:
			summary.Errors = append(summary.Errors, msg.ErrorText)
			if classify.IsRateLimit(msg.ErrorText) {
				return nil, true, fmt.Errorf("rate limited: %s", msg.ErrorText)
			}
			return nil, false, e.wrapTransportErr(msg.ErrorText)
		}
	}

	return summary, false, nil
}

func (e *Executor) wrapTransportErr(text string) error {
	c := classify.Classify(text)
	return &QueryError{Message: text, Recoverable: c.Recoverable, Category: c.Category}
}
