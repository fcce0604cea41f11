package rules

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/dwell"
	"auv-monitor/ingestion/internal/geo"
)

// compiledRule pairs a rule definition with its extractors, resolved
// once at load time.
type compiledRule struct {
	rule       domain.AlertRule
	window     time.Duration
	extract    fieldExtractor
	detections listExtractor
}

// Set is an immutable compiled rule snapshot for one evaluation epoch.
type Set struct {
	rules []compiledRule
}

// Len returns the number of enabled rules in the set.
func (s *Set) Len() int { return len(s.rules) }

// Compile validates and compiles a rule list. A rule that fails to
// compile is disabled and logged once; it never surfaces at
// per-record evaluation time. Rules keep their configured order.
func Compile(defs []domain.AlertRule, log *zap.Logger) *Set {
	set := &Set{rules: make([]compiledRule, 0, len(defs))}
	for _, def := range defs {
		if !def.Active {
			continue
		}
		cr, err := compileRule(def)
		if err != nil {
			log.Error("disabling rule with bad configuration",
				zap.String("rule_id", def.ID),
				zap.Error(&domain.RuleConfigError{RuleID: def.ID, Err: err}))
			continue
		}
		set.rules = append(set.rules, cr)
	}
	return set
}

func compileRule(def domain.AlertRule) (compiledRule, error) {
	if err := def.Validate(); err != nil {
		return compiledRule{}, err
	}
	cr := compiledRule{rule: def, window: def.DedupeWindow()}
	var err error
	switch def.Type {
	case domain.RuleThreshold:
		cr.extract, err = compilePath(def.Path)
	case domain.RuleProximity:
		cr.detections, err = compileListPath(def.Path)
	case domain.RuleZoneDwell:
		// Zone category resolved against the index per record.
	}
	if err != nil {
		return compiledRule{}, err
	}
	return cr, nil
}

// Engine evaluates the compiled rule set against records. The rule
// snapshot is swapped atomically on hot reload; zone index and dwell
// tracker are external state consulted during evaluation.
type Engine struct {
	snap  atomic.Pointer[Set]
	zones *geo.Index
	dwell *dwell.Tracker
	dedup DedupIndex
	log   *zap.Logger
}

func NewEngine(set *Set, zones *geo.Index, tracker *dwell.Tracker, dedup DedupIndex, log *zap.Logger) *Engine {
	e := &Engine{zones: zones, dwell: tracker, dedup: dedup, log: log}
	e.snap.Store(set)
	return e
}

// Swap replaces the rule snapshot for the next evaluation epoch.
func (e *Engine) Swap(set *Set) { e.snap.Store(set) }

// RuleCount returns the number of enabled rules in the active set.
func (e *Engine) RuleCount() int { return e.snap.Load().Len() }

// Evaluate runs every enabled rule against the record in configured
// order and returns the alerts that survived deduplication. Records
// for one vehicle must be evaluated in timestamp order.
func (e *Engine) Evaluate(ctx context.Context, rec *domain.TelemetryRecord) []domain.AlertEvent {
	set := e.snap.Load()

	// Containment is computed once per record. Tracked zones the
	// vehicle is no longer inside are exited immediately.
	containing := e.zones.Containing(rec.Position.Lat, rec.Position.Lng)
	present := make(map[string]struct{}, len(containing))
	for _, z := range containing {
		present[z.ID] = struct{}{}
	}
	e.dwell.ClearMissing(rec.AUVID, present)

	var events []domain.AlertEvent
	for i := range set.rules {
		cr := &set.rules[i]
		for _, c := range e.candidates(cr, rec, containing) {
			ok, err := e.dedup.Claim(ctx, cr.rule.ID, rec.AUVID, rec.Timestamp, cr.window)
			if err != nil {
				e.log.Warn("dedup check failed, suppressing alert",
					zap.String("rule_id", cr.rule.ID),
					zap.String("auv_id", rec.AUVID),
					zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			events = append(events, domain.AlertEvent{
				ID:        uuid.NewString(),
				Timestamp: rec.Timestamp,
				AUVID:     rec.AUVID,
				RuleID:    cr.rule.ID,
				Severity:  cr.rule.Severity,
				Title:     c.title,
				Message:   c.message,
				Value:     c.value,
				HasValue:  c.hasValue,
			})
		}
	}
	return events
}

// candidate is a rule firing before deduplication.
type candidate struct {
	title    string
	message  string
	value    float64
	hasValue bool
}

func (e *Engine) candidates(cr *compiledRule, rec *domain.TelemetryRecord, containing []*geo.Zone) []candidate {
	switch cr.rule.Type {
	case domain.RuleThreshold:
		v, ok := cr.extract(rec)
		if !ok {
			// Sensors may omit fields; absence is not an error.
			return nil
		}
		if !cr.rule.Operator.Compare(v, cr.rule.Value) {
			return nil
		}
		return []candidate{{
			title: fmt.Sprintf("%s threshold exceeded", cr.rule.Path),
			message: fmt.Sprintf("%s %s %v (current: %v) at %.4f,%.4f",
				cr.rule.Path, cr.rule.Operator, cr.rule.Value, v,
				rec.Position.Lat, rec.Position.Lng),
			value:    v,
			hasValue: true,
		}}

	case domain.RuleProximity:
		var out []candidate
		for _, d := range cr.detections(rec) {
			if !cr.rule.Operator.Compare(d.DistanceM, cr.rule.Value) {
				continue
			}
			out = append(out, candidate{
				title: "Protected species proximity alert",
				message: fmt.Sprintf("Protected species %q detected at %vm (threshold: %vm) at %.4f,%.4f",
					d.Name, d.DistanceM, cr.rule.Value,
					rec.Position.Lat, rec.Position.Lng),
				value:    d.DistanceM,
				hasValue: true,
			})
		}
		return out

	case domain.RuleZoneDwell:
		var out []candidate
		for _, z := range containing {
			if z.ZoneType != cr.rule.ZoneType {
				continue
			}
			dur := e.dwell.Observe(rec.AUVID, z.ID, rec.Timestamp)
			maxDwell := cr.rule.MaxDwell()
			if maxDwell == 0 {
				maxDwell = z.MaxDwell
			}
			if maxDwell == 0 || dur <= maxDwell {
				continue
			}
			out = append(out, candidate{
				title: "Zone dwell time exceeded",
				message: fmt.Sprintf("AUV in %s for more than %d minutes at %.4f,%.4f",
					z.Name, int(maxDwell.Minutes()),
					rec.Position.Lat, rec.Position.Lng),
				value:    dur.Minutes(),
				hasValue: true,
			})
		}
		return out
	}
	return nil
}
