package geo

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Index answers "which zones contain point P". Readers take no locks;
// refreshes swap a whole new snapshot, never mutate one in place.
type Index struct {
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	zones  []*Zone
	byType map[string][]*Zone
}

func NewIndex() *Index {
	idx := &Index{}
	idx.snap.Store(&snapshot{byType: map[string][]*Zone{}})
	return idx
}

// Swap atomically replaces the zone set.
func (idx *Index) Swap(zones []*Zone) {
	byType := make(map[string][]*Zone)
	for _, z := range zones {
		byType[z.ZoneType] = append(byType[z.ZoneType], z)
	}
	idx.snap.Store(&snapshot{zones: zones, byType: byType})
}

// Containing returns every zone containing the point. A point may
// belong to zero, one, or several overlapping zones.
func (idx *Index) Containing(lat, lng float64) []*Zone {
	var out []*Zone
	for _, z := range idx.snap.Load().zones {
		if z.Contains(lat, lng) {
			out = append(out, z)
		}
	}
	return out
}

// ContainingByType returns the containing zones of one category.
func (idx *Index) ContainingByType(zoneType string, lat, lng float64) []*Zone {
	var out []*Zone
	for _, z := range idx.snap.Load().byType[zoneType] {
		if z.Contains(lat, lng) {
			out = append(out, z)
		}
	}
	return out
}

// Len returns the number of zones in the current snapshot.
func (idx *Index) Len() int {
	return len(idx.snap.Load().zones)
}

// Compile builds zones from raw records. A malformed polygon is
// skipped with a warning; one bad zone must not block ingestion.
func Compile(recs []ZoneRecord, log *zap.Logger) []*Zone {
	zones := make([]*Zone, 0, len(recs))
	for _, rec := range recs {
		z, err := CompileZone(rec)
		if err != nil {
			log.Warn("skipping malformed zone", zap.String("zone_id", rec.ID), zap.Error(err))
			continue
		}
		zones = append(zones, z)
	}
	return zones
}
