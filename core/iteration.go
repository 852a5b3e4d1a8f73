package core

import "time"

// RateLimitRetry describes a pending backoff/retry cycle raised by the
// QueryExecutor when the transport reports a rate limit (spec.md §4.8).
// Never populated by Executor.Execute: it resolves the rate-limit retry
// loop synchronously (sleeping between attempts internally) rather than
// returning control to the runner's outer loop, so runner §4.10 step 6
// ("if summary.rateLimitRetry present, sleep and re-attempt without
// advancing i") has no observable trigger in this implementation. Kept
// as a spec'd field for callers that supply their own Executor.
type RateLimitRetry struct {
	Attempt int
	WaitMS  int64
}

// IterationSummary is produced once per iteration by the QueryExecutor and
// consumed by the FlowOrchestrator and Runner (spec.md §3).
type IterationSummary struct {
	Iteration              int
	SessionID              string
	AssistantResponses     []string
	ToolsUsed              []string
	StructuredOutput       Record
	Errors                 []string
	SchemaResolutionFailed bool
	RateLimitRetry         *RateLimitRetry
	CostUSD                float64
	Duration               time.Duration
	TurnCount              int
}

// HasStructuredOutput reports whether a structured output record is
// present on this iteration (absence is a signal, not a parse failure —
// spec.md §9 glossary).
func (s *IterationSummary) HasStructuredOutput() bool {
	return s.StructuredOutput != nil
}
