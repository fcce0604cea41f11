package rules

import (
	"fmt"

	"auv-monitor/ingestion/internal/domain"
)

// fieldExtractor pulls one numeric value out of a record. ok is false
// when the sensor section backing the path was omitted.
type fieldExtractor func(*domain.TelemetryRecord) (value float64, ok bool)

// compilePath resolves a dot-notation field path to an extractor at
// rule-load time, so a bad path is reported once instead of on every
// record.
func compilePath(path string) (fieldExtractor, error) {
	switch path {
	case "position.lat":
		return func(r *domain.TelemetryRecord) (float64, bool) { return r.Position.Lat, true }, nil
	case "position.lng":
		return func(r *domain.TelemetryRecord) (float64, bool) { return r.Position.Lng, true }, nil
	case "position.depth":
		return func(r *domain.TelemetryRecord) (float64, bool) { return float64(r.Position.DepthM), true }, nil
	case "position.speed":
		return func(r *domain.TelemetryRecord) (float64, bool) { return r.Position.Speed, true }, nil
	case "position.heading":
		return func(r *domain.TelemetryRecord) (float64, bool) { return float64(r.Position.Heading), true }, nil
	case "env.turbidity_ntu":
		return envField(func(e *domain.Environment) float64 { return e.TurbidityNTU }), nil
	case "env.sediment_mg_l":
		return envField(func(e *domain.Environment) float64 { return e.SedimentMgL }), nil
	case "env.dissolved_oxygen_mg_l":
		return envField(func(e *domain.Environment) float64 { return e.DissolvedOxygenMgL }), nil
	case "env.temperature_c":
		return envField(func(e *domain.Environment) float64 { return e.TemperatureC }), nil
	case "plume.concentration_mg_l":
		return func(r *domain.TelemetryRecord) (float64, bool) {
			if r.Plume == nil {
				return 0, false
			}
			return r.Plume.ConcentrationMgL, true
		}, nil
	case "battery.level_pct":
		return func(r *domain.TelemetryRecord) (float64, bool) {
			if r.Battery == nil {
				return 0, false
			}
			return float64(r.Battery.LevelPct), true
		}, nil
	case "battery.voltage_v":
		return func(r *domain.TelemetryRecord) (float64, bool) {
			if r.Battery == nil {
				return 0, false
			}
			return r.Battery.VoltageV, true
		}, nil
	default:
		return nil, fmt.Errorf("unknown field path %q", path)
	}
}

func envField(get func(*domain.Environment) float64) fieldExtractor {
	return func(r *domain.TelemetryRecord) (float64, bool) {
		if r.Env == nil {
			return 0, false
		}
		return get(r.Env), true
	}
}

// listExtractor pulls the repeated sub-structure a proximity rule
// iterates over.
type listExtractor func(*domain.TelemetryRecord) []domain.SpeciesDetection

func compileListPath(path string) (listExtractor, error) {
	switch path {
	case "species_detections[].distance_m", "species_detections":
		return func(r *domain.TelemetryRecord) []domain.SpeciesDetection {
			return r.SpeciesDetections
		}, nil
	default:
		return nil, fmt.Errorf("unknown repeated field path %q", path)
	}
}
