package geo

import (
	"context"
	"time"

	"go.uber.org/zap"

	"auv-monitor/ingestion/internal/health"
)

// ZoneSource is the zone collaborator contract. Any returned set is
// authoritative for the next evaluation epoch.
type ZoneSource interface {
	CurrentZones(ctx context.Context) ([]ZoneRecord, error)
}

// Refresher polls the zone source and swaps the index snapshot.
type Refresher struct {
	src      ZoneSource
	idx      *Index
	interval time.Duration
	health   *health.State
	log      *zap.Logger
}

func NewRefresher(src ZoneSource, idx *Index, interval time.Duration, hs *health.State, log *zap.Logger) *Refresher {
	return &Refresher{src: src, idx: idx, interval: interval, health: hs, log: log}
}

// Run loads zones immediately, then on every tick until ctx ends.
func (r *Refresher) Run(ctx context.Context) error {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.refresh(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	recs, err := r.src.CurrentZones(ctx)
	if err != nil {
		r.log.Error("zone refresh failed, keeping previous snapshot", zap.Error(err))
		if r.idx.Len() == 0 {
			r.health.SetZonesDegraded(true)
		}
		return
	}

	zones := Compile(recs, r.log)
	if len(zones) == 0 && len(recs) > 0 {
		// Every zone was malformed; keep whatever we had.
		r.log.Error("zone refresh produced zero valid zones, keeping previous snapshot",
			zap.Int("raw_zones", len(recs)))
		if r.idx.Len() == 0 {
			r.health.SetZonesDegraded(true)
		}
		return
	}

	r.idx.Swap(zones)
	r.health.SetZonesDegraded(false)
	r.log.Info("zone index refreshed", zap.Int("zones", len(zones)))
}
