// Command stepflow-demo wires every step-flow component together against
// a stub model transport, to exercise a run end to end without a real
// LLM in the loop.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tettuan/climpt/boundary"
	"github.com/tettuan/climpt/completion"
	"github.com/tettuan/climpt/core"
	"github.com/tettuan/climpt/events"
	"github.com/tettuan/climpt/flow"
	"github.com/tettuan/climpt/gate"
	"github.com/tettuan/climpt/logger"
	"github.com/tettuan/climpt/query"
	"github.com/tettuan/climpt/registry"
	"github.com/tettuan/climpt/router"
	"github.com/tettuan/climpt/runner"
	"github.com/tettuan/climpt/schema"
)

// stubTransport always reports a closing step output, enough to drive
// one full iteration of the loop for demonstration purposes.
type stubTransport struct{}

func (stubTransport) Stream(ctx context.Context, req query.Request) (<-chan query.Message, error) {
	ch := make(chan query.Message, 2)
	ch <- query.Message{Type: query.MsgAssistant, Text: "work complete"}
	ch <- query.Message{
		Type: query.MsgResult,
		StructuredOutput: core.Record{
			"stepId": "",
			"next_action": map[string]interface{}{
				"action": "closing",
				"reason": "demo run satisfied",
			},
		},
		TurnCount: 1,
	}
	close(ch)
	return ch, nil
}

func main() {
	registryPath := os.Getenv("STEPFLOW_REGISTRY_PATH")
	if registryPath == "" {
		registryPath = "steps_registry.json"
	}

	log := logger.NewDefaultLogger()

	reg, err := registry.Load(registryPath)
	if err != nil {
		log.Error("failed to load step registry", map[string]interface{}{"path": registryPath, "error": err.Error()})
		os.Exit(1)
	}

	cfg := runner.ConfigFromEnv()

	schemasBase := cfg.SchemasBaseOverride
	if schemasBase == "" {
		schemasBase = schema.SchemasBaseDir(reg, mustWorkDir())
	}
	resolver := schema.NewResolver(schemasBase, log)
	manager := schema.NewManager(resolver, log)

	gateInterp := gate.NewInterpreter(log)
	rtr := router.NewRouter(log)
	orch := flow.New(reg, gateInterp, rtr, log, cfg.RoutingEnabled)

	executor := query.NewExecutor(stubTransport{}, manager, log, cfg.MaxRateLimitRetries,
		query.WithBackoff(cfg.BackoffBase, cfg.BackoffCap))

	completionChain := completion.New(log, nil)

	emitter := events.New(log)
	recorder := events.NewRecorder(200)
	for _, name := range []events.Name{
		events.Initialized, events.IterationStart, events.IterationEnd,
		events.PromptBuilt, events.QueryExecuted, events.CompletionChecked,
		events.StateChange, events.BoundaryHook, events.Error, events.Completed,
	} {
		n := name
		emitter.On(n, func(data interface{}) { recorder.Record(n, data) })
	}

	boundaryHook := boundary.New(log, emitter, nil)

	r := runner.New(reg, orch, executor, completionChain, boundaryHook, emitter, log, cfg, buildPrompt)

	result, err := r.Run(context.Background(), "")
	if err != nil {
		log.Error("run failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	fmt.Printf("run completed: stepId=%s iterations=%d reason=%s\n", result.FinalStepID, result.Iterations, result.Reason)
}

func buildPrompt(ctx context.Context, step *core.Step, stepCtx *core.StepContext, iteration int) (string, error) {
	return fmt.Sprintf("Iteration %d on step %q (%s)", iteration, step.ID, step.Name), nil
}

func mustWorkDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(wd)
}
