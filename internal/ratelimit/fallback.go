package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Fallback is an in-process limiter used when Redis is unreachable and
// the policy is fail-open. Limits then hold per instance rather than
// fleet-wide, which is the accepted degradation.
type Fallback struct {
	mu      sync.RWMutex
	buckets map[string]*fallbackBucket
}

type fallbackBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix seconds
}

// NewFallback creates an in-process fallback limiter
func NewFallback() *Fallback {
	return &Fallback{
		buckets: make(map[string]*fallbackBucket),
	}
}

// Check consumes cost tokens from the local bucket for key
func (f *Fallback) Check(key Key, limit Limit, cost int) Decision {
	bucket := f.getBucket(key, limit)

	if bucket.limiter.AllowN(time.Now(), cost) {
		return Decision{
			Allowed:   true,
			Dimension: key.Dimension,
			Remaining: int(bucket.limiter.Tokens()),
		}
	}

	res := bucket.limiter.ReserveN(time.Now(), cost)
	wait := res.Delay()
	res.Cancel()

	return Decision{
		Allowed:    false,
		Dimension:  key.Dimension,
		Remaining:  0,
		RetryAfter: wait,
	}
}

func (f *Fallback) getBucket(key Key, limit Limit) *fallbackBucket {
	id := key.RedisKey()

	f.mu.RLock()
	bucket, exists := f.buckets[id]
	f.mu.RUnlock()

	if exists {
		bucket.lastSeen.Store(time.Now().Unix())
		return bucket
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := f.buckets[id]; exists {
		return bucket
	}

	bucket = &fallbackBucket{
		limiter: rate.NewLimiter(rate.Limit(limit.RefillRate), limit.Capacity),
	}
	bucket.lastSeen.Store(time.Now().Unix())
	f.buckets[id] = bucket
	return bucket
}

// Cleanup removes buckets idle longer than maxIdle
func (f *Fallback) Cleanup(maxIdle time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle).Unix()
	for id, bucket := range f.buckets {
		if bucket.lastSeen.Load() < cutoff {
			delete(f.buckets, id)
		}
	}
}

// StartCleanupRoutine reaps idle buckets until stop is closed
func (f *Fallback) StartCleanupRoutine(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				f.Cleanup(time.Hour)
			case <-stop:
				return
			}
		}
	}()
}
