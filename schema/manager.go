package schema

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/tettuan/climpt/core"
)

// MaxSchemaFailures bounds consecutive schema-resolution failures on the
// same step before the run aborts (spec.md §3, the "2-strike rule").
const MaxSchemaFailures = 2

// Manager wraps a Resolver with per-step 2-strike fail-fast tracking
// (spec.md §4.2).
type Manager struct {
	resolver *Resolver
	logger   core.Logger

	mu       sync.Mutex
	failures map[string]int
}

// NewManager creates a Manager backed by resolver.
func NewManager(resolver *Resolver, logger core.Logger) *Manager {
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &Manager{resolver: resolver, logger: logger, failures: make(map[string]int)}
}

// ValidateFlowSteps checks that every non-template step declares
// structuredGate, transitions, and outputSchemaRef, consolidating all
// violations into a single ConfigurationError (spec.md §4.2).
func ValidateFlowSteps(reg *core.Registry) error {
	var issues []string
	for id, step := range reg.Steps {
		step.ID = id
		step.Kind = core.ParseStepKind(id)
		if step.IsTemplate() {
			continue
		}
		var missing []string
		if step.StructuredGate == nil {
			missing = append(missing, "structuredGate")
		}
		if step.Transitions == nil {
			missing = append(missing, "transitions")
		}
		if step.OutputSchemaRef == nil || !step.OutputSchemaRef.Valid() {
			missing = append(missing, "outputSchemaRef")
		}
		if len(missing) > 0 {
			issues = append(issues, fmt.Sprintf("step %q missing %v", id, missing))
		}
	}
	if len(issues) > 0 {
		return &core.ConfigurationError{Issues: issues}
	}
	return nil
}

// LoadSchemaForStep resolves stepID's outputSchemaRef, applying the
// 2-strike fail-fast rule. It returns (schema, schemaResolutionFailed,
// err): schema is nil when unenforced or when a strike was recorded but
// the limit was not yet reached; schemaResolutionFailed signals the
// iteration should proceed without structured enforcement; err is fatal
// (either a malformed reference or the 2nd consecutive failure).
func (m *Manager) LoadSchemaForStep(stepID string, iteration int, ref *core.OutputSchemaRef) (map[string]interface{}, bool, error) {
	if ref == nil {
		return nil, false, nil
	}
	if ref.File == "" || ref.Schema == "" {
		return nil, false, core.NewFrameworkError(
			core.CodeSchemaResolution,
			"SchemaManager.loadSchemaForStep",
			fmt.Sprintf("malformed outputSchemaRef for step %q", stepID),
			false,
			map[string]interface{}{"stepId": stepID, "iteration": iteration},
		)
	}

	schema, err := m.resolver.Resolve(ref.File, ref.Schema)
	if err == nil {
		m.clearFailures(stepID)
		return schema, false, nil
	}

	count := m.recordFailure(stepID)
	if count >= MaxSchemaFailures {
		return nil, false, core.NewFrameworkError(
			core.CodeSchemaResolution,
			"SchemaManager.loadSchemaForStep",
			fmt.Sprintf("step %q exceeded %d consecutive schema-resolution failures", stepID, MaxSchemaFailures),
			false,
			map[string]interface{}{
				"stepId":              stepID,
				"iteration":           iteration,
				"schemaRef":           ref,
				"consecutiveFailures": count,
			},
		).WithErr(err)
	}

	m.logger.Warn("schema resolution failed, proceeding without enforcement", map[string]interface{}{
		"stepId": stepID, "iteration": iteration, "failures": count, "error": err.Error(),
	})
	return nil, true, nil
}

func (m *Manager) recordFailure(stepID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[stepID]++
	return m.failures[stepID]
}

func (m *Manager) clearFailures(stepID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, stepID)
}

// SchemasBaseDir resolves the registry's schemasBase against workDir,
// falling back to ".agent/<agentId>/schemas" (spec.md §4.2).
func SchemasBaseDir(reg *core.Registry, workDir string) string {
	base := reg.SchemasBase
	if base == "" {
		base = filepath.Join(".agent", reg.AgentID, "schemas")
	}
	if filepath.IsAbs(base) {
		return base
	}
	return filepath.Join(workDir, base)
}
