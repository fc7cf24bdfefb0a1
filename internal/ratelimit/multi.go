package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reflexhq/reflex/internal/logger"
)

// Config controls multi-dimensional rate limiting
type Config struct {
	Enabled  bool
	FailOpen bool
	Tiers    map[string]Limit
	IP       Limit
	Endpoint Limit
	Global   Limit
}

// Request carries the identities checked against each dimension.
// Empty identities skip their dimension.
type Request struct {
	UserID   string
	Tier     string
	ClientIP string
	Endpoint string
}

// ErrStoreUnavailable is returned when Redis is down and the policy is
// fail-closed.
var ErrStoreUnavailable = fmt.Errorf("rate limit store unavailable")

// MultiLimiter checks a request against user, IP, endpoint, and global
// buckets in order. All dimensions must allow; when a later dimension
// denies, tokens taken from earlier ones are refunded so a rejected
// request costs nothing.
type MultiLimiter struct {
	limiter  *Limiter
	fallback *Fallback
	config   Config
	logger   *logger.Logger
}

// NewMultiLimiter creates a multi-dimensional limiter
func NewMultiLimiter(limiter *Limiter, cfg Config, log *logger.Logger) *MultiLimiter {
	log.Info("Rate limiter initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Bool("fail_open", cfg.FailOpen),
		zap.Int("tiers", len(cfg.Tiers)))

	return &MultiLimiter{
		limiter:  limiter,
		fallback: NewFallback(),
		config:   cfg,
		logger:   log,
	}
}

type dimensionCheck struct {
	key   Key
	limit Limit
}

func (m *MultiLimiter) dimensions(req Request) []dimensionCheck {
	var checks []dimensionCheck

	if req.UserID != "" {
		limit, ok := m.config.Tiers[req.Tier]
		if !ok {
			limit = m.config.Tiers["free"]
		}
		if limit.Capacity > 0 {
			checks = append(checks, dimensionCheck{
				key:   Key{Dimension: DimensionUser, ID: req.UserID},
				limit: limit,
			})
		}
	}

	if req.ClientIP != "" {
		checks = append(checks, dimensionCheck{
			key:   Key{Dimension: DimensionIP, ID: req.ClientIP},
			limit: m.config.IP,
		})
	}

	if req.Endpoint != "" {
		checks = append(checks, dimensionCheck{
			key:   Key{Dimension: DimensionEndpoint, ID: req.Endpoint},
			limit: m.config.Endpoint,
		})
	}

	checks = append(checks, dimensionCheck{
		key:   Key{Dimension: DimensionGlobal},
		limit: m.config.Global,
	})

	return checks
}

// Allow checks every applicable dimension. The returned decision is the
// denying dimension's, or the last allowed one when all pass.
func (m *MultiLimiter) Allow(ctx context.Context, req Request) (Decision, error) {
	if !m.config.Enabled {
		return Decision{Allowed: true}, nil
	}

	checks := m.dimensions(req)
	passed := make([]dimensionCheck, 0, len(checks))

	var last Decision
	for _, check := range checks {
		decision, err := m.limiter.Check(ctx, check.key, check.limit, 1)
		if err != nil {
			m.refund(ctx, passed)
			return m.degrade(req, checks, err)
		}

		if !decision.Allowed {
			m.refund(ctx, passed)
			m.logger.Debug("Rate limit exceeded",
				zap.String("dimension", string(decision.Dimension)),
				zap.Duration("retry_after", decision.RetryAfter))
			return decision, nil
		}

		passed = append(passed, check)
		last = decision
	}

	return last, nil
}

// refund returns tokens taken by earlier dimension checks
func (m *MultiLimiter) refund(ctx context.Context, passed []dimensionCheck) {
	for _, check := range passed {
		m.limiter.Refund(ctx, check.key, check.limit, 1)
	}
}

// degrade handles a Redis failure per the configured policy. Fail-open
// reruns the checks against in-process buckets; fail-closed denies.
func (m *MultiLimiter) degrade(req Request, checks []dimensionCheck, cause error) (Decision, error) {
	if !m.config.FailOpen {
		m.logger.Error("Rate limit store unavailable, failing closed", zap.Error(cause))
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, cause)
	}

	m.logger.Warn("Rate limit store unavailable, using in-process fallback", zap.Error(cause))

	for _, check := range checks {
		decision := m.fallback.Check(check.key, check.limit, 1)
		if !decision.Allowed {
			return decision, nil
		}
	}
	return Decision{Allowed: true}, nil
}

// StartCleanup reaps idle fallback buckets until stop is closed
func (m *MultiLimiter) StartCleanup(stop <-chan struct{}) {
	m.fallback.StartCleanupRoutine(stop)
}

// withClock overrides the time source. Test hook.
func (m *MultiLimiter) withClock(clock func() time.Time) {
	m.limiter.clock = clock
}
