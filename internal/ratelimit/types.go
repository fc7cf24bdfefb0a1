package ratelimit

import (
	"fmt"
	"time"
)

// Dimension identifies which limit a bucket belongs to
type Dimension string

const (
	DimensionUser     Dimension = "user"
	DimensionIP       Dimension = "ip"
	DimensionEndpoint Dimension = "endpoint"
	DimensionGlobal   Dimension = "global"
)

// Key identifies a single bucket. The global dimension carries no
// identifier; all requests share one bucket.
type Key struct {
	Dimension Dimension
	ID        string
}

// RedisKey renders the bucket key used in Redis
func (k Key) RedisKey() string {
	if k.Dimension == DimensionGlobal {
		return "ratelimit:global"
	}
	return fmt.Sprintf("ratelimit:%s:%s", k.Dimension, k.ID)
}

// Limit describes a token bucket shape
type Limit struct {
	Capacity   int
	RefillRate float64 // tokens per second
}

// horizon is how long a full refill from empty takes. Bucket keys
// expire after twice this so idle buckets reap themselves.
func (l Limit) horizon() time.Duration {
	if l.RefillRate <= 0 {
		return time.Hour
	}
	return time.Duration(float64(l.Capacity)/l.RefillRate*2) * time.Second
}

// Decision is the outcome of a limit check
type Decision struct {
	Allowed    bool
	Dimension  Dimension
	Remaining  int
	RetryAfter time.Duration
}
