// Package classify implements the ErrorClassifier component: turning the
// free-text error surfaced by a transport into a stable category the
// runner can act on (retry, surface, abort) without string-matching
// scattered across the codebase (spec.md §4.8).
package classify

import "regexp"

// Category is one bucket of the fixed classification taxonomy.
type Category string

const (
	CategoryEnvironment Category = "environment"
	CategoryNetwork     Category = "network"
	CategoryAPI         Category = "api"
	CategoryInput       Category = "input"
	CategoryInternal    Category = "internal"
	CategoryUnknown     Category = "unknown"
)

// Classification is the result of classifying one error message.
type Classification struct {
	Category       Category
	Recoverable    bool
	Guidance       string
	MatchedPattern string
}

type rule struct {
	pattern     *regexp.Regexp
	category    Category
	recoverable bool
	guidance    string
}

var rateLimitPattern = regexp.MustCompile(`(?i)rate.?limit|too many requests|\b429\b`)

// rules is evaluated top to bottom; the first match wins. Patterns are
// intentionally loose — transports vary their exact wording across
// providers and versions.
var rules = []rule{
	{rateLimitPattern, CategoryAPI, true, "wait for the backoff window and retry"},
	{regexp.MustCompile(`(?i)\b(401|403)\b|unauthorized|invalid api key|forbidden`), CategoryAPI, false, "check credentials and permissions"},
	{regexp.MustCompile(`(?i)econnreset|econnrefused|dial tcp|connection refused|timeout|timed out|network is unreachable|eof`), CategoryNetwork, true, "retry; likely a transient connectivity issue"},
	{regexp.MustCompile(`(?i)enoent|no such file|permission denied|eacces|environment variable`), CategoryEnvironment, false, "check the runtime environment and configuration"},
	{regexp.MustCompile(`(?i)invalid json|schema validation|malformed|bad request|\b400\b`), CategoryInput, false, "the request payload does not satisfy the expected shape"},
	{regexp.MustCompile(`(?i)panic|nil pointer|index out of range|internal error|\b500\b`), CategoryInternal, false, "unexpected internal failure; file a bug report"},
}

// Classify maps errText onto a Classification. An error matching no rule
// is CategoryUnknown and not recoverable (fail-closed).
func Classify(errText string) Classification {
	for _, r := range rules {
		if loc := r.pattern.FindString(errText); loc != "" {
			return Classification{
				Category:       r.category,
				Recoverable:    r.recoverable,
				Guidance:       r.guidance,
				MatchedPattern: r.pattern.String(),
			}
		}
	}
	return Classification{Category: CategoryUnknown, Recoverable: false, Guidance: "no known classification matched this error"}
}

// IsRateLimit reports whether errText indicates a rate-limit response,
// independent of full classification — the query executor's backoff
// path needs this check alone, before (and regardless of) running the
// full rule set.
func IsRateLimit(errText string) bool {
	return rateLimitPattern.MatchString(errText)
}
