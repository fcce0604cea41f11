// Package dwell tracks continuous containment time per (vehicle,
// zone) pair. State is partitioned by vehicle id; cross-vehicle
// updates proceed in parallel. Records for one vehicle must arrive in
// timestamp order for the accounting to hold, which the pipeline's
// evaluation lanes guarantee.
package dwell

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

type session struct {
	entry    time.Time
	lastSeen time.Time
}

type shard struct {
	mu sync.Mutex
	// auv id -> zone id -> session
	sessions map[string]map[string]*session
}

// Tracker holds dwell sessions for all vehicles.
type Tracker struct {
	shards       [shardCount]shard
	gapTolerance time.Duration
}

// NewTracker builds a tracker. gapTolerance is the largest reporting
// gap still treated as continuous containment; a larger gap starts a
// new session.
func NewTracker(gapTolerance time.Duration) *Tracker {
	t := &Tracker{gapTolerance: gapTolerance}
	for i := range t.shards {
		t.shards[i].sessions = make(map[string]map[string]*session)
	}
	return t
}

func (t *Tracker) shardFor(auvID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(auvID))
	return &t.shards[h.Sum32()%shardCount]
}

// Observe records that auvID was seen inside zoneID at ts and returns
// the continuous dwell duration. The first observation of a session
// returns 0.
func (t *Tracker) Observe(auvID, zoneID string, ts time.Time) time.Duration {
	s := t.shardFor(auvID)
	s.mu.Lock()
	defer s.mu.Unlock()

	zones, ok := s.sessions[auvID]
	if !ok {
		zones = make(map[string]*session)
		s.sessions[auvID] = zones
	}

	sess, ok := zones[zoneID]
	if !ok || ts.Sub(sess.lastSeen) > t.gapTolerance {
		zones[zoneID] = &session{entry: ts, lastSeen: ts}
		return 0
	}

	sess.lastSeen = ts
	return ts.Sub(sess.entry)
}

// ClearMissing drops every tracked zone for auvID that is not in
// present. Called once per evaluated record: a vehicle observed
// outside a previously-tracked zone has exited it.
func (t *Tracker) ClearMissing(auvID string, present map[string]struct{}) {
	s := t.shardFor(auvID)
	s.mu.Lock()
	defer s.mu.Unlock()

	zones, ok := s.sessions[auvID]
	if !ok {
		return
	}
	for zoneID := range zones {
		if _, in := present[zoneID]; !in {
			delete(zones, zoneID)
		}
	}
	if len(zones) == 0 {
		delete(s.sessions, auvID)
	}
}

// Reset clears all dwell state for one vehicle (explicit session
// reset).
func (t *Tracker) Reset(auvID string) {
	s := t.shardFor(auvID)
	s.mu.Lock()
	delete(s.sessions, auvID)
	s.mu.Unlock()
}
