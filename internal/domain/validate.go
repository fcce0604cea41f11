package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireRecord mirrors TelemetryRecord with a pointer position so a
// missing section is distinguishable from a zero one.
type wireRecord struct {
	Timestamp         time.Time          `json:"timestamp"`
	AUVID             string             `json:"auv_id"`
	Position          *Position          `json:"position"`
	Env               *Environment       `json:"env"`
	Plume             *Plume             `json:"plume"`
	SpeciesDetections []SpeciesDetection `json:"species_detections"`
	Battery           *Battery           `json:"battery"`
}

// ParseRecord decodes and validates a raw telemetry payload. Unknown
// JSON fields are ignored, not rejected. On success the returned
// record carries the original payload in Raw and its timestamp
// normalized to UTC.
func ParseRecord(raw []byte) (*TelemetryRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &ValidationError{Fields: []string{"payload: " + err.Error()}}
	}

	var bad []string
	if w.Timestamp.IsZero() {
		bad = append(bad, "timestamp: required")
	}
	if w.AUVID == "" {
		bad = append(bad, "auv_id: required")
	}
	if w.Position == nil {
		bad = append(bad, "position: required")
	} else {
		bad = append(bad, validatePosition(*w.Position)...)
	}
	if w.Battery != nil {
		if w.Battery.LevelPct < 0 || w.Battery.LevelPct > 100 {
			bad = append(bad, fmt.Sprintf("battery.level_pct: %d out of range [0,100]", w.Battery.LevelPct))
		}
		if w.Battery.VoltageV < 0 {
			bad = append(bad, "battery.voltage_v: negative")
		}
	}
	for i, d := range w.SpeciesDetections {
		if d.Name == "" {
			bad = append(bad, fmt.Sprintf("species_detections[%d].name: required", i))
		}
		if d.DistanceM < 0 {
			bad = append(bad, fmt.Sprintf("species_detections[%d].distance_m: negative", i))
		}
	}
	if len(bad) > 0 {
		return nil, &ValidationError{Fields: bad}
	}

	return &TelemetryRecord{
		Timestamp:         w.Timestamp.UTC(),
		AUVID:             w.AUVID,
		Position:          *w.Position,
		Env:               w.Env,
		Plume:             w.Plume,
		SpeciesDetections: w.SpeciesDetections,
		Battery:           w.Battery,
		Raw:               raw,
	}, nil
}

func validatePosition(p Position) []string {
	var bad []string
	if p.Lat < -90 || p.Lat > 90 {
		bad = append(bad, fmt.Sprintf("position.lat: %v out of range [-90,90]", p.Lat))
	}
	if p.Lng < -180 || p.Lng > 180 {
		bad = append(bad, fmt.Sprintf("position.lng: %v out of range [-180,180]", p.Lng))
	}
	if p.DepthM < 0 {
		bad = append(bad, "position.depth: negative")
	}
	if p.Speed < 0 {
		bad = append(bad, "position.speed: negative")
	}
	if p.Heading < 0 || p.Heading > 360 {
		bad = append(bad, fmt.Sprintf("position.heading: %d out of range [0,360]", p.Heading))
	}
	return bad
}
