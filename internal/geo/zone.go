package geo

import (
	"encoding/json"
	"fmt"
	"time"
)

// ZoneRecord is the raw zone row as returned by the zone collaborator,
// geometry still in GeoJSON form.
type ZoneRecord struct {
	ID              string
	Name            string
	ZoneType        string
	Geometry        []byte
	MaxDwellMinutes int
}

// Zone is a compiled polygonal region. Immutable between index swaps.
type Zone struct {
	ID       string
	Name     string
	ZoneType string
	MaxDwell time.Duration

	// rings[0] is the outer boundary; any further rings are holes.
	rings [][]point
}

type point struct {
	lng, lat float64
}

type geoJSONGeometry struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// CompileZone parses a GeoJSON Polygon geometry into a Zone. GeoJSON
// coordinate order is [lng, lat].
func CompileZone(rec ZoneRecord) (*Zone, error) {
	var g geoJSONGeometry
	if err := json.Unmarshal(rec.Geometry, &g); err != nil {
		return nil, fmt.Errorf("zone %s: bad geometry: %w", rec.ID, err)
	}
	if g.Type != "Polygon" {
		return nil, fmt.Errorf("zone %s: unsupported geometry type %q", rec.ID, g.Type)
	}
	if len(g.Coordinates) == 0 {
		return nil, fmt.Errorf("zone %s: polygon has no rings", rec.ID)
	}

	rings := make([][]point, 0, len(g.Coordinates))
	for i, ring := range g.Coordinates {
		if len(ring) < 4 {
			return nil, fmt.Errorf("zone %s: ring %d has %d points, need at least 4", rec.ID, i, len(ring))
		}
		pts := make([]point, 0, len(ring))
		for _, c := range ring {
			if len(c) < 2 {
				return nil, fmt.Errorf("zone %s: ring %d has malformed coordinate", rec.ID, i)
			}
			pts = append(pts, point{lng: c[0], lat: c[1]})
		}
		rings = append(rings, pts)
	}

	return &Zone{
		ID:       rec.ID,
		Name:     rec.Name,
		ZoneType: rec.ZoneType,
		MaxDwell: time.Duration(rec.MaxDwellMinutes) * time.Minute,
		rings:    rings,
	}, nil
}

// Contains reports whether the point lies inside the zone. Points on
// the boundary count as contained, so dwell state does not flap at
// zone edges.
func (z *Zone) Contains(lat, lng float64) bool {
	p := point{lng: lng, lat: lat}
	if !ringContains(z.rings[0], p) {
		return false
	}
	for _, hole := range z.rings[1:] {
		if onRing(hole, p) {
			return true
		}
		if ringContains(hole, p) {
			return false
		}
	}
	return true
}

// ringContains runs a ray cast against one ring, boundary inclusive.
func ringContains(ring []point, p point) bool {
	if onRing(ring, p) {
		return true
	}
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.lat > p.lat) != (b.lat > p.lat) {
			x := (b.lng-a.lng)*(p.lat-a.lat)/(b.lat-a.lat) + a.lng
			if p.lng < x {
				inside = !inside
			}
		}
	}
	return inside
}

const boundaryEps = 1e-12

func onRing(ring []point, p point) bool {
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(ring[j], ring[i], p) {
			return true
		}
	}
	return false
}

func onSegment(a, b, p point) bool {
	cross := (b.lng-a.lng)*(p.lat-a.lat) - (b.lat-a.lat)*(p.lng-a.lng)
	if cross > boundaryEps || cross < -boundaryEps {
		return false
	}
	if p.lng < min(a.lng, b.lng)-boundaryEps || p.lng > max(a.lng, b.lng)+boundaryEps {
		return false
	}
	if p.lat < min(a.lat, b.lat)-boundaryEps || p.lat > max(a.lat, b.lat)+boundaryEps {
		return false
	}
	return true
}
