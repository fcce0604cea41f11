package domain

import (
	"fmt"
	"strings"
)

// ErrOverloaded signals that the ingestion pipeline's internal batch
// queue is saturated. Callers should retry with backoff.
var ErrOverloaded = fmt.Errorf("ingestion overloaded")

// ValidationError names the fields that made a telemetry payload
// unacceptable. It is returned synchronously at admission and is
// never retried.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid telemetry: " + strings.Join(e.Fields, ", ")
}

// RuleConfigError marks a rule definition that could not be compiled.
// It is reported once at rule-load time; the offending rule is
// disabled, never re-reported per record.
type RuleConfigError struct {
	RuleID string
	Err    error
}

func (e *RuleConfigError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleConfigError) Unwrap() error { return e.Err }
