package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/dwell"
	"auv-monitor/ingestion/internal/geo"
)

var engT0 = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func sedimentRule(windowSec int) domain.AlertRule {
	return domain.AlertRule{
		ID:              "RULE-SEDIMENT-01",
		Type:            domain.RuleThreshold,
		Path:            "env.sediment_mg_l",
		Operator:        domain.OperatorGreater,
		Value:           25,
		Severity:        domain.SeverityHigh,
		DedupeWindowSec: windowSec,
		Active:          true,
	}
}

func speciesRule(windowSec int) domain.AlertRule {
	return domain.AlertRule{
		ID:              "RULE-SPECIES-01",
		Type:            domain.RuleProximity,
		Path:            "species_detections[].distance_m",
		Operator:        domain.OperatorLess,
		Value:           150,
		Severity:        domain.SeverityHigh,
		DedupeWindowSec: windowSec,
		Active:          true,
	}
}

func dwellRule(zoneType string, maxMinutes, windowSec int) domain.AlertRule {
	return domain.AlertRule{
		ID:              "RULE-ZONE-01",
		Type:            domain.RuleZoneDwell,
		Severity:        domain.SeverityMedium,
		DedupeWindowSec: windowSec,
		ZoneType:        zoneType,
		MaxMinutes:      maxMinutes,
		Active:          true,
	}
}

func record(ts time.Time, sediment float64) *domain.TelemetryRecord {
	return &domain.TelemetryRecord{
		Timestamp: ts,
		AUVID:     "AUV-01",
		Position:  domain.Position{Lat: 0, Lng: 0},
		Env:       &domain.Environment{SedimentMgL: sediment},
	}
}

func newTestEngine(t *testing.T, defs []domain.AlertRule, zones []geo.ZoneRecord) *Engine {
	t.Helper()
	log := zaptest.NewLogger(t)
	idx := geo.NewIndex()
	idx.Swap(geo.Compile(zones, log))
	tracker := dwell.NewTracker(30 * time.Second)
	return NewEngine(Compile(defs, log), idx, tracker, NewMemoryDedup(), log)
}

func TestCompileDisablesBadRule(t *testing.T) {
	set := Compile([]domain.AlertRule{
		sedimentRule(300),
		{
			ID: "RULE-BAD-01", Type: domain.RuleThreshold,
			Path: "env.no_such_field", Operator: domain.OperatorGreater,
			Severity: domain.SeverityLow, Active: true,
		},
	}, zaptest.NewLogger(t))

	// The bad rule is reported at load time and dropped; the rest of
	// the set still evaluates.
	assert.Equal(t, 1, set.Len())
}

func TestCompileSkipsInactiveRules(t *testing.T) {
	r := sedimentRule(300)
	r.Active = false
	set := Compile([]domain.AlertRule{r}, zaptest.NewLogger(t))
	assert.Equal(t, 0, set.Len())
}

func TestThresholdStrictComparison(t *testing.T) {
	e := newTestEngine(t, []domain.AlertRule{sedimentRule(0)}, nil)
	ctx := context.Background()

	// Exactly at the bound: > is strict, no alert.
	assert.Empty(t, e.Evaluate(ctx, record(engT0, 25.0)))

	events := e.Evaluate(ctx, record(engT0.Add(time.Second), 30.0))
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "RULE-SEDIMENT-01", ev.RuleID)
	assert.Equal(t, "AUV-01", ev.AUVID)
	assert.Equal(t, domain.SeverityHigh, ev.Severity)
	assert.Equal(t, 30.0, ev.Value)
	assert.NotEmpty(t, ev.ID)
	assert.Contains(t, ev.Message, "env.sediment_mg_l")
}

func TestThresholdSkipsAbsentField(t *testing.T) {
	e := newTestEngine(t, []domain.AlertRule{sedimentRule(0)}, nil)

	rec := record(engT0, 0)
	rec.Env = nil
	assert.Empty(t, e.Evaluate(context.Background(), rec),
		"omitted sensor section is skipped, not treated as zero")
}

func TestThresholdDedupeWindow(t *testing.T) {
	e := newTestEngine(t, []domain.AlertRule{sedimentRule(300)}, nil)
	ctx := context.Background()

	require.Len(t, e.Evaluate(ctx, record(engT0, 30.0)), 1)

	// Still breaching two minutes later: suppressed.
	assert.Empty(t, e.Evaluate(ctx, record(engT0.Add(2*time.Minute), 30.0)))

	// Window elapsed: fires again.
	assert.Len(t, e.Evaluate(ctx, record(engT0.Add(5*time.Minute), 30.0)), 1)
}

func TestThresholdDedupeIsPerVehicle(t *testing.T) {
	e := newTestEngine(t, []domain.AlertRule{sedimentRule(300)}, nil)
	ctx := context.Background()

	require.Len(t, e.Evaluate(ctx, record(engT0, 30.0)), 1)

	other := record(engT0, 30.0)
	other.AUVID = "AUV-02"
	assert.Len(t, e.Evaluate(ctx, other), 1,
		"one vehicle's window must not suppress another's alert")
}

func TestProximityOneAlertPerRecordUnderDedupe(t *testing.T) {
	e := newTestEngine(t, []domain.AlertRule{speciesRule(600)}, nil)

	rec := record(engT0, 0)
	rec.SpeciesDetections = []domain.SpeciesDetection{
		{Name: "Casper octopus", DistanceM: 100},
		{Name: "Dumbo octopus", DistanceM: 120},
		{Name: "Rattail", DistanceM: 200},
	}

	// Two detections qualify, but the shared (rule, vehicle) window
	// collapses them into a single alert.
	events := e.Evaluate(context.Background(), rec)
	require.Len(t, events, 1)
	assert.Equal(t, 100.0, events[0].Value)
	assert.Contains(t, events[0].Message, "Casper octopus")
}

func TestProximityZeroWindowFiresPerDetection(t *testing.T) {
	e := newTestEngine(t, []domain.AlertRule{speciesRule(0)}, nil)

	rec := record(engT0, 0)
	rec.SpeciesDetections = []domain.SpeciesDetection{
		{Name: "Casper octopus", DistanceM: 100},
		{Name: "Dumbo octopus", DistanceM: 120},
		{Name: "Rattail", DistanceM: 200},
	}

	events := e.Evaluate(context.Background(), rec)
	assert.Len(t, events, 2)
}

func TestProximityBoundaryNotIncluded(t *testing.T) {
	e := newTestEngine(t, []domain.AlertRule{speciesRule(0)}, nil)

	rec := record(engT0, 0)
	rec.SpeciesDetections = []domain.SpeciesDetection{{Name: "Rattail", DistanceM: 150}}
	assert.Empty(t, e.Evaluate(context.Background(), rec))
}

func TestZoneDwell(t *testing.T) {
	zones := []geo.ZoneRecord{{
		ID:       "Z-CCZ-A",
		Name:     "CCZ Sensitive Area A",
		ZoneType: "sensitive",
		Geometry: []byte(`{"type":"Polygon","coordinates":[[
			[-140.0,10.0],[-139.0,10.0],[-139.0,11.0],[-140.0,11.0],[-140.0,10.0]
		]]}`),
		MaxDwellMinutes: 60,
	}}
	e := newTestEngine(t, []domain.AlertRule{dwellRule("sensitive", 1, 0)}, zones)
	ctx := context.Background()

	inZone := func(ts time.Time) *domain.TelemetryRecord {
		rec := record(ts, 0)
		rec.Position = domain.Position{Lat: 10.5, Lng: -139.5}
		return rec
	}

	// Reports every 20s stay inside the 30s gap tolerance; the limit
	// is 1 minute.
	assert.Empty(t, e.Evaluate(ctx, inZone(engT0)))
	assert.Empty(t, e.Evaluate(ctx, inZone(engT0.Add(20*time.Second))))
	assert.Empty(t, e.Evaluate(ctx, inZone(engT0.Add(40*time.Second))))
	assert.Empty(t, e.Evaluate(ctx, inZone(engT0.Add(60*time.Second))),
		"dwell equal to the limit does not fire; the comparison is strict")

	events := e.Evaluate(ctx, inZone(engT0.Add(80*time.Second)))
	if assert.Len(t, events, 1) {
		assert.Equal(t, "RULE-ZONE-01", events[0].RuleID)
		assert.Contains(t, events[0].Message, "CCZ Sensitive Area A")
	}
}

func TestZoneDwellExitResetsSession(t *testing.T) {
	zones := []geo.ZoneRecord{{
		ID:       "Z-CCZ-A",
		ZoneType: "sensitive",
		Geometry: []byte(`{"type":"Polygon","coordinates":[[
			[-140.0,10.0],[-139.0,10.0],[-139.0,11.0],[-140.0,11.0],[-140.0,10.0]
		]]}`),
	}}
	e := newTestEngine(t, []domain.AlertRule{dwellRule("sensitive", 1, 0)}, zones)
	ctx := context.Background()

	at := func(ts time.Time, lat, lng float64) *domain.TelemetryRecord {
		rec := record(ts, 0)
		rec.Position = domain.Position{Lat: lat, Lng: lng}
		return rec
	}

	e.Evaluate(ctx, at(engT0, 10.5, -139.5))
	e.Evaluate(ctx, at(engT0.Add(20*time.Second), 10.5, -139.5))

	// One record from outside the zone ends the session.
	e.Evaluate(ctx, at(engT0.Add(40*time.Second), 20.0, -139.5))

	// Re-entry starts dwell from zero: 80s after t0 would have fired
	// had the session survived the exit.
	e.Evaluate(ctx, at(engT0.Add(60*time.Second), 10.5, -139.5))
	assert.Empty(t, e.Evaluate(ctx, at(engT0.Add(80*time.Second), 10.5, -139.5)))
}

func TestZoneDwellWrongZoneTypeIgnored(t *testing.T) {
	zones := []geo.ZoneRecord{{
		ID:       "Z-NOGO",
		ZoneType: "restricted",
		Geometry: []byte(`{"type":"Polygon","coordinates":[[
			[-140.0,10.0],[-139.0,10.0],[-139.0,11.0],[-140.0,11.0],[-140.0,10.0]
		]]}`),
	}}
	e := newTestEngine(t, []domain.AlertRule{dwellRule("sensitive", 1, 0)}, zones)
	ctx := context.Background()

	rec := record(engT0, 0)
	rec.Position = domain.Position{Lat: 10.5, Lng: -139.5}
	e.Evaluate(ctx, rec)

	later := record(engT0.Add(2*time.Minute), 0)
	later.Position = domain.Position{Lat: 10.5, Lng: -139.5}
	assert.Empty(t, e.Evaluate(ctx, later))
}

func TestZoneDwellFallsBackToZoneLimit(t *testing.T) {
	zones := []geo.ZoneRecord{{
		ID:       "Z-CCZ-A",
		ZoneType: "sensitive",
		Geometry: []byte(`{"type":"Polygon","coordinates":[[
			[-140.0,10.0],[-139.0,10.0],[-139.0,11.0],[-140.0,11.0],[-140.0,10.0]
		]]}`),
		MaxDwellMinutes: 1,
	}}
	// Rule sets no limit of its own; the zone's applies.
	e := newTestEngine(t, []domain.AlertRule{dwellRule("sensitive", 0, 0)}, zones)
	ctx := context.Background()

	inZone := func(ts time.Time) *domain.TelemetryRecord {
		rec := record(ts, 0)
		rec.Position = domain.Position{Lat: 10.5, Lng: -139.5}
		return rec
	}

	for i := 0; i < 4; i++ {
		e.Evaluate(ctx, inZone(engT0.Add(time.Duration(i*20)*time.Second)))
	}
	assert.Len(t, e.Evaluate(ctx, inZone(engT0.Add(80*time.Second))), 1)
}

func TestEvaluateRunsRulesInConfiguredOrder(t *testing.T) {
	low := sedimentRule(0)
	low.ID = "RULE-A"
	high := sedimentRule(0)
	high.ID = "RULE-B"
	high.Value = 20

	e := newTestEngine(t, []domain.AlertRule{low, high}, nil)

	events := e.Evaluate(context.Background(), record(engT0, 30.0))
	require.Len(t, events, 2)
	assert.Equal(t, "RULE-A", events[0].RuleID)
	assert.Equal(t, "RULE-B", events[1].RuleID)
}

func TestEngineSwap(t *testing.T) {
	e := newTestEngine(t, []domain.AlertRule{sedimentRule(0)}, nil)
	require.Equal(t, 1, e.RuleCount())

	e.Swap(Compile(nil, zaptest.NewLogger(t)))
	assert.Equal(t, 0, e.RuleCount())
	assert.Empty(t, e.Evaluate(context.Background(), record(engT0, 30.0)))
}
