package classify

import "testing"

func TestClassifyRateLimitIsRecoverableAPI(t *testing.T) {
	c := Classify("Error: rate limit exceeded, please slow down")
	if c.Category != CategoryAPI || !c.Recoverable {
		t.Errorf("expected recoverable API classification, got %+v", c)
	}
}

func TestClassifyAuthFailureIsNotRecoverable(t *testing.T) {
	c := Classify("403 Forbidden: invalid api key")
	if c.Category != CategoryAPI || c.Recoverable {
		t.Errorf("expected non-recoverable API classification, got %+v", c)
	}
}

func TestClassifyNetworkTimeoutIsRecoverable(t *testing.T) {
	c := Classify("dial tcp 10.0.0.1:443: i/o timeout")
	if c.Category != CategoryNetwork || !c.Recoverable {
		t.Errorf("expected recoverable network classification, got %+v", c)
	}
}

func TestClassifyEnvironmentIssueIsNotRecoverable(t *testing.T) {
	c := Classify("open config.yaml: no such file or directory")
	if c.Category != CategoryEnvironment || c.Recoverable {
		t.Errorf("expected environment classification, got %+v", c)
	}
}

func TestClassifyMalformedInputIsCategoryInput(t *testing.T) {
	c := Classify("schema validation failed: missing required field")
	if c.Category != CategoryInput {
		t.Errorf("expected input classification, got %+v", c)
	}
}

func TestClassifyPanicIsInternal(t *testing.T) {
	c := Classify("panic: runtime error: nil pointer dereference")
	if c.Category != CategoryInternal {
		t.Errorf("expected internal classification, got %+v", c)
	}
}

func TestClassifyUnknownErrorFailsClosed(t *testing.T) {
	c := Classify("something entirely unprecedented happened")
	if c.Category != CategoryUnknown || c.Recoverable {
		t.Errorf("expected unknown/non-recoverable for an unmatched error, got %+v", c)
	}
}

func TestClassifyFirstRuleWins(t *testing.T) {
	// Contains both a rate-limit phrase and a 500-ish internal phrase;
	// rate limit is listed first and must win.
	c := Classify("internal error: rate limit exceeded")
	if c.Category != CategoryAPI {
		t.Errorf("expected the earlier rule (rate limit) to win, got %+v", c)
	}
}

func TestIsRateLimitMatchesVariants(t *testing.T) {
	for _, s := range []string{"Rate limit hit", "too many requests", "HTTP 429"} {
		if !IsRateLimit(s) {
			t.Errorf("expected IsRateLimit to match %q", s)
		}
	}
}

func TestIsRateLimitFalseForUnrelatedError(t *testing.T) {
	if IsRateLimit("connection refused") {
		t.Error("expected IsRateLimit to be false for a non-rate-limit error")
	}
}
