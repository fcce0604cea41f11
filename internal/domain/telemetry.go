package domain

import "time"

// TelemetryRecord is one normalized reading from an AUV. Position is
// always present; environmental, plume and battery sections are nil
// when the vehicle omitted them.
type TelemetryRecord struct {
	Timestamp time.Time `json:"timestamp"`
	AUVID     string    `json:"auv_id"`

	Position          Position           `json:"position"`
	Env               *Environment       `json:"env,omitempty"`
	Plume             *Plume             `json:"plume,omitempty"`
	SpeciesDetections []SpeciesDetection `json:"species_detections,omitempty"`
	Battery           *Battery           `json:"battery,omitempty"`

	// ReceivedAt is set by the server at admission; vehicle clocks
	// drift, ReceivedAt does not.
	ReceivedAt time.Time `json:"received_at,omitempty"`

	// Raw keeps the original payload for storage and replay.
	Raw []byte `json:"-"`
}

type Position struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	DepthM  int     `json:"depth"`
	Speed   float64 `json:"speed"`
	Heading int     `json:"heading"`
}

type Environment struct {
	TurbidityNTU       float64 `json:"turbidity_ntu"`
	SedimentMgL        float64 `json:"sediment_mg_l"`
	DissolvedOxygenMgL float64 `json:"dissolved_oxygen_mg_l"`
	TemperatureC       float64 `json:"temperature_c"`
}

type Plume struct {
	ConcentrationMgL float64 `json:"concentration_mg_l"`
}

type SpeciesDetection struct {
	Name      string  `json:"name"`
	DistanceM float64 `json:"distance_m"`
}

type Battery struct {
	LevelPct int     `json:"level_pct"`
	VoltageV float64 `json:"voltage_v"`
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid returns true when the severity is one of the known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// AlertEvent is emitted by the rule engine when a rule fires. It is
// immutable once emitted; the stream hub and the alert store both
// consume it.
type AlertEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AUVID     string    `json:"auv_id"`
	RuleID    string    `json:"rule_id"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Value     float64   `json:"value,omitempty"`
	HasValue  bool      `json:"-"`
}
