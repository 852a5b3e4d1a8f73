package runner

import (
	"os"
	"strconv"
	"time"
)

// Config collects the runner's environment-tunable parameters, all under
// the STEPFLOW_ prefix (SPEC_FULL.md §2 ambient stack).
type Config struct {
	MaxIterations       int
	MaxRateLimitRetries int
	BackoffBase         time.Duration
	BackoffCap          time.Duration
	SchemasBaseOverride string
	RoutingEnabled      bool
}

// DefaultConfig mirrors spec.md's stated defaults: base 5000ms, cap
// 60000ms backoff, routing enabled.
func DefaultConfig() *Config {
	return &Config{
		MaxIterations:       50,
		MaxRateLimitRetries: 3,
		BackoffBase:         5000 * time.Millisecond,
		BackoffCap:          60000 * time.Millisecond,
		RoutingEnabled:      true,
	}
}

// ConfigFromEnv loads a Config from STEPFLOW_-prefixed environment
// variables, falling back to DefaultConfig for anything unset or
// unparseable.
func ConfigFromEnv() *Config {
	c := DefaultConfig()
	c.MaxIterations = envInt("STEPFLOW_MAX_ITERATIONS", c.MaxIterations)
	c.MaxRateLimitRetries = envInt("STEPFLOW_MAX_RATE_LIMIT_RETRIES", c.MaxRateLimitRetries)
	c.BackoffBase = envDuration("STEPFLOW_BACKOFF_BASE_MS", c.BackoffBase)
	c.BackoffCap = envDuration("STEPFLOW_BACKOFF_CAP_MS", c.BackoffCap)
	c.SchemasBaseOverride = os.Getenv("STEPFLOW_SCHEMAS_BASE")
	c.RoutingEnabled = envBool("STEPFLOW_ROUTING_ENABLED", c.RoutingEnabled)
	return c
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
