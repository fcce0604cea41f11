package rules

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// DedupIndex is the single deduplication mechanism shared by all rule
// variants. Claim atomically checks the (rule, vehicle) entry and, if
// the window has passed, records the new firing.
type DedupIndex interface {
	// Claim returns true when the rule may fire for the vehicle at
	// now, updating last-fired as a side effect. It returns false
	// when a prior firing is still inside the dedupe window.
	Claim(ctx context.Context, ruleID, auvID string, now time.Time, window time.Duration) (bool, error)
}

type dedupEntry struct {
	firedAt   time.Time
	expiresAt time.Time
}

type dedupShard struct {
	mu      sync.Mutex
	entries map[string]dedupEntry
}

// MemoryDedup is the in-process DedupIndex: entries partitioned by
// (rule, vehicle) key across shards, lazy expiry on Claim plus a
// periodic sweep for memory bounding.
type MemoryDedup struct {
	shards [shardCount]dedupShard
}

const shardCount = 32

func NewMemoryDedup() *MemoryDedup {
	d := &MemoryDedup{}
	for i := range d.shards {
		d.shards[i].entries = make(map[string]dedupEntry)
	}
	return d
}

func (d *MemoryDedup) shardFor(key string) *dedupShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &d.shards[h.Sum32()%shardCount]
}

func (d *MemoryDedup) Claim(_ context.Context, ruleID, auvID string, now time.Time, window time.Duration) (bool, error) {
	key := ruleID + "\x00" + auvID
	s := d.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && now.Sub(e.firedAt) < window {
		return false, nil
	}
	s.entries[key] = dedupEntry{firedAt: now, expiresAt: now.Add(window)}
	return true, nil
}

// Sweep drops entries whose windows have elapsed as of now. Not
// required for correctness, only for memory bounding.
func (d *MemoryDedup) Sweep(now time.Time) {
	for i := range d.shards {
		s := &d.shards[i]
		s.mu.Lock()
		for key, e := range s.entries {
			if now.After(e.expiresAt) {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

// Run sweeps on the given interval until ctx ends.
func (d *MemoryDedup) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.Sweep(time.Now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
