// Package health tracks the pipeline-level degraded signal consumed
// by external health checks. Per-record failures never reach it; only
// a zone load yielding zero valid zones or storage unavailability
// past the retry budget flips a flag.
package health

import (
	"sync/atomic"

	"auv-monitor/ingestion/internal/metrics"
)

type State struct {
	storageDegraded atomic.Bool
	zonesDegraded   atomic.Bool
}

func NewState() *State { return &State{} }

func (s *State) SetStorageDegraded(v bool) {
	s.storageDegraded.Store(v)
	s.publish()
}

func (s *State) SetZonesDegraded(v bool) {
	s.zonesDegraded.Store(v)
	s.publish()
}

func (s *State) StorageDegraded() bool { return s.storageDegraded.Load() }
func (s *State) ZonesDegraded() bool   { return s.zonesDegraded.Load() }

// Degraded reports whether any pipeline-level failure is active.
func (s *State) Degraded() bool {
	return s.storageDegraded.Load() || s.zonesDegraded.Load()
}

// publish mirrors the combined signal into the metrics gauge so every
// setter, not just the storage path, keeps it current.
func (s *State) publish() {
	if s.Degraded() {
		metrics.PipelineDegraded.Set(1)
		return
	}
	metrics.PipelineDegraded.Set(0)
}
