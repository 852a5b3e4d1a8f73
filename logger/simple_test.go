package logger

import (
	"os"
	"testing"
)

func TestSimpleLoggerLevelFiltering(t *testing.T) {
	l := NewSimpleLogger()
	l.SetLevel("warn")

	// No assertions on log output itself (written straight to stdlib log);
	// this checks that SetLevel("warn") moves the filtering threshold to
	// WarnLevel.
	if l.level != WarnLevel {
		t.Fatalf("expected level WarnLevel after SetLevel(\"warn\"), got %v", l.level)
	}
}

func TestSimpleLoggerSetLevelUnknownIsNoOp(t *testing.T) {
	l := NewSimpleLogger()
	l.SetLevel("bogus")
	if l.level != InfoLevel {
		t.Errorf("expected an unrecognized level string to leave the level unchanged, got %v", l.level)
	}
}

func TestSimpleLoggerWithChainsFields(t *testing.T) {
	base := NewSimpleLogger().With(map[string]interface{}{"component": "flow"})
	child := base.With(map[string]interface{}{"stepId": "initial.review"})

	if child.fields["component"] != "flow" || child.fields["stepId"] != "initial.review" {
		t.Errorf("expected child to carry both base and extra fields, got %v", child.fields)
	}
	if _, ok := base.fields["stepId"]; ok {
		t.Error("expected With to return a new logger, not mutate the base")
	}
}

func TestNewDefaultLoggerSatisfiesCoreLogger(t *testing.T) {
	l := NewDefaultLogger()
	l.Debug("debug message", nil)
	l.Info("info message", map[string]interface{}{"k": "v"})
	l.Warn("warn message", nil)
	l.Error("error message", nil)
}

func TestLevelFromEnv(t *testing.T) {
	old, had := os.LookupEnv("STEPFLOW_LOG_LEVEL")
	defer func() {
		if had {
			os.Setenv("STEPFLOW_LOG_LEVEL", old)
		} else {
			os.Unsetenv("STEPFLOW_LOG_LEVEL")
		}
	}()

	os.Unsetenv("STEPFLOW_LOG_LEVEL")
	if LevelFromEnv() != "INFO" {
		t.Errorf("expected default INFO, got %q", LevelFromEnv())
	}

	os.Setenv("STEPFLOW_LOG_LEVEL", "DEBUG")
	if LevelFromEnv() != "DEBUG" {
		t.Errorf("expected DEBUG, got %q", LevelFromEnv())
	}
}
