package domain

import (
	"errors"
	"fmt"
	"time"
)

type RuleType string

const (
	RuleThreshold RuleType = "threshold"
	RuleProximity RuleType = "proximity"
	RuleZoneDwell RuleType = "zone_dwell"
)

type Operator string

const (
	OperatorGreater        Operator = ">"
	OperatorLess           Operator = "<"
	OperatorGreaterOrEqual Operator = ">="
	OperatorLessOrEqual    Operator = "<="
	OperatorEqual          Operator = "=="
)

// Valid returns true when the operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorLess, OperatorGreaterOrEqual, OperatorLessOrEqual, OperatorEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator to value against bound.
func (o Operator) Compare(value, bound float64) bool {
	switch o {
	case OperatorGreater:
		return value > bound
	case OperatorLess:
		return value < bound
	case OperatorGreaterOrEqual:
		return value >= bound
	case OperatorLessOrEqual:
		return value <= bound
	case OperatorEqual:
		return value == bound
	default:
		return false
	}
}

// AlertRule is one rule definition as loaded from configuration. Rules
// are immutable once loaded; the engine holds read-only snapshots.
type AlertRule struct {
	ID              string   `json:"id" yaml:"id"`
	Type            RuleType `json:"type" yaml:"type"`
	Path            string   `json:"path" yaml:"path"`
	Operator        Operator `json:"operator" yaml:"operator"`
	Value           float64  `json:"value" yaml:"value"`
	Severity        Severity `json:"severity" yaml:"severity"`
	DedupeWindowSec int      `json:"dedupe_window_sec" yaml:"dedupe_window_sec"`

	// Zone-dwell only.
	ZoneType   string `json:"zone_type,omitempty" yaml:"zone_type,omitempty"`
	MaxMinutes int    `json:"max_minutes,omitempty" yaml:"max_minutes,omitempty"`

	Active bool `json:"active" yaml:"active"`
}

// DedupeWindow returns the deduplication window as a duration.
func (r AlertRule) DedupeWindow() time.Duration {
	return time.Duration(r.DedupeWindowSec) * time.Second
}

// MaxDwell returns the maximum allowed continuous dwell time.
func (r AlertRule) MaxDwell() time.Duration {
	return time.Duration(r.MaxMinutes) * time.Minute
}

// Validate checks structural rule invariants common to all variants.
// Variant-specific checks (field paths) happen at compile time in the
// rules package.
func (r AlertRule) Validate() error {
	if r.ID == "" {
		return errors.New("alert rule: empty id")
	}
	switch r.Type {
	case RuleThreshold, RuleProximity:
		if !r.Operator.Valid() {
			return fmt.Errorf("alert rule %s: invalid operator %q", r.ID, r.Operator)
		}
		if r.Path == "" {
			return fmt.Errorf("alert rule %s: empty path", r.ID)
		}
	case RuleZoneDwell:
		if r.ZoneType == "" {
			return fmt.Errorf("alert rule %s: empty zone_type", r.ID)
		}
		if r.MaxMinutes < 0 {
			return fmt.Errorf("alert rule %s: negative max_minutes", r.ID)
		}
	default:
		return fmt.Errorf("alert rule %s: unknown type %q", r.ID, r.Type)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("alert rule %s: invalid severity %q", r.ID, r.Severity)
	}
	if r.DedupeWindowSec < 0 {
		return fmt.Errorf("alert rule %s: negative dedupe_window_sec", r.ID)
	}
	return nil
}
