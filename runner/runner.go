// Package runner implements the Runner component: the outer iteration
// loop that drives a step-flow run from its entry step to a terminal
// completion signal, wiring together every other component (spec.md
// §4.10).
package runner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tettuan/climpt/boundary"
	"github.com/tettuan/climpt/completion"
	"github.com/tettuan/climpt/core"
	"github.com/tettuan/climpt/events"
	"github.com/tettuan/climpt/flow"
	"github.com/tettuan/climpt/query"
)

// PromptFunc builds the prompt for one iteration. stepCtx carries the
// accumulated StepContext so far; step is the canonical step for this
// iteration.
type PromptFunc func(ctx context.Context, step *core.Step, stepCtx *core.StepContext, iteration int) (string, error)

// Result is the terminal outcome of a run.
type Result struct {
	Completed   bool
	Reason      string
	Iterations  int
	FinalStepID string
}

// Runner implements the Runner component.
type Runner struct {
	registry   *core.Registry
	orch       *flow.Orchestrator
	executor   *query.Executor
	completion *completion.Chain
	boundary   *boundary.Hook
	emitter    *events.Emitter
	logger     core.Logger
	config     *Config
	promptFn   PromptFunc
	sessionID  string
}

// New builds a Runner. config may be nil, in which case DefaultConfig
// applies.
func New(
	registry *core.Registry,
	orch *flow.Orchestrator,
	executor *query.Executor,
	completionChain *completion.Chain,
	boundaryHook *boundary.Hook,
	emitter *events.Emitter,
	logger core.Logger,
	config *Config,
	promptFn PromptFunc,
) *Runner {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	if config == nil {
		config = DefaultConfig()
	}
	if emitter == nil {
		emitter = events.New(logger)
	}
	return &Runner{
		registry:   registry,
		orch:       orch,
		executor:   executor,
		completion: completionChain,
		boundary:   boundaryHook,
		emitter:    emitter,
		logger:     logger,
		config:     config,
		promptFn:   promptFn,
		sessionID:  uuid.NewString(),
	}
}

// Run drives iterations until a terminal signal or MaxIterations is
// reached, implementing the loop in spec.md §4.10.
func (r *Runner) Run(ctx context.Context, completionType string) (*Result, error) {
	r.emitter.Emit(events.Initialized, map[string]interface{}{"sessionId": r.sessionID, "completionType": completionType})

	for i := 1; i <= r.config.MaxIterations; i++ {
		stepID, err := r.orch.GetStepIdForIteration(i, completionType)
		if err != nil {
			return nil, r.fail(core.CodeQueryError, "Runner.Run", err.Error(), err)
		}
		if i == 1 {
			r.orch.InitializeStepContext(stepID)
		}

		step, ok := r.registry.StepByID(stepID)
		if !ok {
			return nil, r.fail(core.CodeStepRouting, "Runner.Run", fmt.Sprintf("unknown step %q", stepID), nil)
		}

		r.emitter.Emit(events.IterationStart, map[string]interface{}{"iteration": i, "stepId": stepID})

		prompt, err := r.promptFn(ctx, step, r.orch.Context(), i)
		if err != nil {
			return nil, r.fail(core.CodeQueryError, "Runner.Run", "prompt construction failed", err)
		}
		r.emitter.Emit(events.PromptBuilt, map[string]interface{}{"iteration": i, "stepId": stepID, "prompt": prompt})

		summary, err := r.executor.Execute(ctx, step, prompt, r.sessionID, i)
		if err != nil {
			r.emitter.Emit(events.Error, map[string]interface{}{"iteration": i, "stepId": stepID, "error": err.Error()})
			return nil, err
		}
		r.emitter.Emit(events.QueryExecuted, map[string]interface{}{"iteration": i, "stepId": stepID, "summary": summary})

		r.orch.NormalizeStructuredOutputStepId(stepID, summary)
		r.orch.RecordStepOutput(stepID, summary)

		if i > 1 && !summary.SchemaResolutionFailed && r.orch.RoutingEnabled() && !summary.HasStructuredOutput() {
			msg := fmt.Sprintf("[StepFlow] No intent produced for iteration %d on step %q", i, stepID)
			err := r.fail(core.CodeStepRouting, "Runner.Run", msg, nil)
			r.emitter.Emit(events.Error, map[string]interface{}{"iteration": i, "stepId": stepID, "error": msg})
			return nil, err
		}

		result, err := r.orch.HandleStepTransition(stepID, summary)
		if err != nil {
			r.emitter.Emit(events.Error, map[string]interface{}{"iteration": i, "stepId": stepID, "error": err.Error()})
			return nil, err
		}

		if result == nil {
			r.emitter.Emit(events.IterationEnd, map[string]interface{}{"iteration": i, "stepId": stepID})
			continue
		}

		completionValid := true
		if result.SignalCompletion && result.Intent == core.IntentClosing {
			cr, err := r.completion.Check(ctx, r.registry, stepID, summary.StructuredOutput)
			if err != nil {
				r.emitter.Emit(events.Error, map[string]interface{}{"iteration": i, "stepId": stepID, "error": err.Error()})
				return nil, err
			}
			r.emitter.Emit(events.CompletionChecked, map[string]interface{}{"iteration": i, "stepId": stepID, "valid": cr.Valid})

			if !cr.Valid {
				completionValid = false
				r.orch.Context().Merge(stepID, map[string]interface{}{"retryPrompt": cr.RetryPrompt})
				result.SignalCompletion = false
				result.NextStepID = stepID
				r.orch.Context().SetCurrentStepID(stepID)
			}
		}

		if result.SignalCompletion {
			if r.boundary != nil {
				if err := r.boundary.Fire(ctx, stepID, step.Kind, result.Intent, completionValid, summary.StructuredOutput); err != nil {
					r.emitter.Emit(events.Error, map[string]interface{}{"iteration": i, "stepId": stepID, "error": err.Error()})
					return nil, err
				}
			}
			r.emitter.Emit(events.Completed, map[string]interface{}{"iteration": i, "stepId": stepID, "reason": result.Reason})
			return &Result{Completed: true, Reason: result.Reason, Iterations: i, FinalStepID: stepID}, nil
		}

		r.emitter.Emit(events.StateChange, map[string]interface{}{"iteration": i, "from": stepID, "to": result.NextStepID})
		r.emitter.Emit(events.IterationEnd, map[string]interface{}{"iteration": i, "stepId": stepID})
	}

	return nil, core.NewFrameworkError(
		core.CodeMaxIterations, "Runner.Run",
		fmt.Sprintf("exceeded maxIterations (%d)", r.config.MaxIterations),
		false,
		map[string]interface{}{"maxIterations": r.config.MaxIterations},
	)
}

func (r *Runner) fail(code core.Code, op, message string, err error) error {
	fe := core.NewFrameworkError(code, op, message, false, nil)
	if err != nil {
		fe = fe.WithErr(err)
	}
	return fe
}
