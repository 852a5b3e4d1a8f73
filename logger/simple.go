// Package logger provides a dependency-free structured logger for the
// step-flow packages, in the spirit of the framework's pkg/logger: a
// SimpleLogger that writes key=value lines through the standard log
// package, with per-call and chained fields.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tettuan/climpt/core"
)

// LogLevel orders the four supported severities.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// SimpleLogger is a minimal structured logger with no external
// dependencies: one line per call, fields rendered as key=value pairs.
type SimpleLogger struct {
	level  LogLevel
	fields map[string]interface{}
}

// NewSimpleLogger creates a logger at InfoLevel with no base fields.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{level: InfoLevel, fields: make(map[string]interface{})}
}

// NewDefaultLogger returns a SimpleLogger satisfying core.Logger, for
// callers that only need the interface.
func NewDefaultLogger() core.Logger {
	return NewSimpleLogger()
}

func (l *SimpleLogger) Debug(msg string, fields map[string]interface{}) {
	if l.level <= DebugLevel {
		l.log("DEBUG", msg, fields)
	}
}

func (l *SimpleLogger) Info(msg string, fields map[string]interface{}) {
	if l.level <= InfoLevel {
		l.log("INFO", msg, fields)
	}
}

func (l *SimpleLogger) Warn(msg string, fields map[string]interface{}) {
	if l.level <= WarnLevel {
		l.log("WARN", msg, fields)
	}
}

func (l *SimpleLogger) Error(msg string, fields map[string]interface{}) {
	if l.level <= ErrorLevel {
		l.log("ERROR", msg, fields)
	}
}

// SetLevel parses a textual level ("debug", "warn", ...), case-insensitive.
func (l *SimpleLogger) SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		l.level = DebugLevel
	case "INFO":
		l.level = InfoLevel
	case "WARN", "WARNING":
		l.level = WarnLevel
	case "ERROR":
		l.level = ErrorLevel
	}
}

// With returns a child logger that merges extra into the base fields.
func (l *SimpleLogger) With(extra map[string]interface{}) *SimpleLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return &SimpleLogger{level: l.level, fields: merged}
}

func (l *SimpleLogger) log(level, msg string, fields map[string]interface{}) {
	parts := make([]string, 0, 2+len(l.fields)+len(fields))
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	for k, v := range l.fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	log.Println(strings.Join(parts, " "))
}

// LevelFromEnv reads STEPFLOW_LOG_LEVEL, defaulting to "INFO".
func LevelFromEnv() string {
	level := os.Getenv("STEPFLOW_LOG_LEVEL")
	if level == "" {
		return "INFO"
	}
	return level
}
