package cache

import (
	"sync/atomic"
	"time"
)

// Config controls the decision cache
type Config struct {
	Enabled      bool
	Namespace    string
	ForwardedTTL time.Duration
	BlockedTTL   time.Duration
}

// Stats tracks cache performance counters. Safe for concurrent use.
type Stats struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// Snapshot returns the current counter values
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Errors: s.errors.Load(),
	}

	total := snap.Hits + snap.Misses
	if total > 0 {
		snap.HitRate = float64(snap.Hits) / float64(total) * 100
	}
	return snap
}
