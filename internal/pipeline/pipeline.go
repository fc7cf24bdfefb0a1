package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reflexhq/reflex/internal/cache"
	"github.com/reflexhq/reflex/internal/injection"
	"github.com/reflexhq/reflex/internal/logger"
	"github.com/reflexhq/reflex/internal/metrics"
	"github.com/reflexhq/reflex/internal/pii"
	"github.com/reflexhq/reflex/internal/ratelimit"
)

// Outcome is the terminal state of a processed request
type Outcome string

const (
	OutcomeForwarded   Outcome = "forwarded"
	OutcomeBlocked     Outcome = "blocked"
	OutcomeRateLimited Outcome = "rate_limited"
	// OutcomeCacheHit marks a replayed decision; the stored outcome's
	// risk, reason, and redaction are carried along unchanged.
	OutcomeCacheHit Outcome = "cache_hit"
)

// Request is a unit of text to screen plus the identities used for
// rate limiting
type Request struct {
	Text     string
	UserID   string
	Tier     string
	ClientIP string
	Endpoint string
}

// Decision is the pipeline's verdict on a request
type Decision struct {
	RequestID    string             `json:"request_id"`
	Outcome      Outcome            `json:"decision"`
	RedactedText string             `json:"redacted_text,omitempty"`
	PIITypes     []pii.Type         `json:"pii_types,omitempty"`
	Risk         injection.Severity `json:"risk"`
	Confidence   float64            `json:"confidence"`
	Reason       string             `json:"reason,omitempty"`
	RetryAfterMS int64              `json:"retry_after_ms,omitempty"`
	CacheHit     bool               `json:"cache_hit"`
	LatencyMS    float64            `json:"latency_ms"`

	// fault marks conservative blocks from detector failures. Those
	// are never cached: the next attempt should re-run detection.
	fault bool
}

// Config tunes the orchestrator
type Config struct {
	MaxQueryLength    int
	BlockOnHighRisk   bool
	EnablePII         bool
	EnableInjection   bool
	RedactionStrategy pii.Strategy
	RequestTimeout    time.Duration
	ForwardedTTL      time.Duration
	BlockedTTL        time.Duration
	StoreTimeout      time.Duration
}

// Pipeline runs the fixed screening sequence: cache lookup, injection
// check, PII check, rate limit check. Detection always completes before
// rate limiting so a rejected request still yields a full analysis.
type Pipeline struct {
	config    Config
	pii       *pii.Detector
	injection *injection.Detector
	cache     *cache.Manager
	limiter   *ratelimit.MultiLimiter
	logger    *logger.Logger
}

// New assembles a pipeline from its stages
func New(cfg Config, piiDet *pii.Detector, injDet *injection.Detector, cacheMgr *cache.Manager, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Pipeline {
	return &Pipeline{
		config:    cfg,
		pii:       piiDet,
		injection: injDet,
		cache:     cacheMgr,
		limiter:   limiter,
		logger:    log,
	}
}

// Process screens a single request and returns a terminal decision.
// Errors are returned only for conditions the caller must surface
// (invalid input, store down under fail-closed, timeout); detector
// failures degrade to a conservative block instead.
func (p *Pipeline) Process(ctx context.Context, req Request) (Decision, error) {
	start := time.Now()

	if p.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.RequestTimeout)
		defer cancel()
	}

	if strings.TrimSpace(req.Text) == "" {
		return Decision{}, NewError(KindValidation, "text cannot be empty", nil)
	}
	if p.config.MaxQueryLength > 0 && len(req.Text) > p.config.MaxQueryLength {
		return Decision{}, NewError(KindValidation, "text exceeds maximum length", nil)
	}

	requestID := uuid.New().String()
	log := p.logger.WithRequestID(requestID)

	// Cache key is derived from the normalized input before any
	// redaction so identical submissions replay the same decision.
	cacheKey, err := cache.Key(p.cache.Namespace(), req.Text)
	if err != nil {
		return Decision{}, NewError(KindValidation, "text cannot be empty", err)
	}

	if decision, ok := p.lookup(ctx, cacheKey, requestID, log); ok {
		decision.LatencyMS = float64(time.Since(start).Microseconds()) / 1000.0
		return decision, nil
	}

	if err := ctx.Err(); err != nil {
		return Decision{}, NewError(KindTimeout, "request deadline exceeded", err)
	}

	decision := Decision{
		RequestID: requestID,
		Outcome:   OutcomeForwarded,
		Risk:      injection.SeverityLow,
	}

	injResult, fault := p.checkInjection(req.Text, log)
	if fault {
		decision = p.conservativeBlock(requestID)
	} else if p.shouldBlock(injResult.Risk) {
		decision.Outcome = OutcomeBlocked
		decision.Reason = "injection_detected"
		decision.Risk = injResult.Risk
		decision.Confidence = topConfidence(injResult)
		metrics.RequestsBlockedTotal.WithLabelValues("injection").Inc()
	} else {
		decision.Risk = injResult.Risk
		decision.Confidence = topConfidence(injResult)
	}

	// PII screening always runs, even for blocked requests, so the
	// decision carries redacted text safe to log downstream.
	redacted, types, piiFault := p.checkPII(req.Text, log)
	if piiFault && !decision.fault {
		decision = p.conservativeBlock(requestID)
	}
	decision.RedactedText = redacted
	decision.PIITypes = types

	if decision.Outcome == OutcomeForwarded {
		limitDecision, err := p.checkRateLimit(ctx, req)
		if err != nil {
			return Decision{}, err
		}
		if !limitDecision.Allowed {
			decision.Outcome = OutcomeRateLimited
			decision.Reason = "rate_limit_exceeded"
			decision.RetryAfterMS = limitDecision.RetryAfter.Milliseconds()
			metrics.RateLimitRejectedTotal.WithLabelValues(string(limitDecision.Dimension)).Inc()
		} else {
			metrics.RateLimitAllowedTotal.Inc()
		}
	}

	p.store(cacheKey, decision, log)

	decision.LatencyMS = float64(time.Since(start).Microseconds()) / 1000.0

	log.Debug("Request processed",
		zap.String("outcome", string(decision.Outcome)),
		zap.String("risk", decision.Risk.String()),
		zap.Int("pii_types", len(decision.PIITypes)),
		zap.Float64("latency_ms", decision.LatencyMS))

	return decision, nil
}

// lookup replays a cached decision under a fresh request ID. Store
// failures count as misses; the cache never blocks processing.
func (p *Pipeline) lookup(ctx context.Context, key, requestID string, log *logger.Logger) (Decision, bool) {
	defer metrics.ObserveCacheOp("get", time.Now())

	payload, found, err := p.cache.Get(ctx, key)
	if err != nil || !found {
		metrics.CacheMissesTotal.Inc()
		return Decision{}, false
	}

	var decision Decision
	if err := json.Unmarshal([]byte(payload), &decision); err != nil {
		log.Warn("Corrupt cache entry, re-processing", zap.Error(err))
		metrics.CacheMissesTotal.Inc()
		return Decision{}, false
	}

	decision.RequestID = requestID
	decision.Outcome = OutcomeCacheHit
	decision.CacheHit = true
	metrics.CacheHitsTotal.Inc()
	return decision, true
}

// checkInjection runs the injection detector, converting panics into a
// fault signal
func (p *Pipeline) checkInjection(text string, log *logger.Logger) (result injection.Result, fault bool) {
	if !p.config.EnableInjection {
		return injection.Result{Risk: injection.SeverityLow}, false
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Injection detector fault", zap.Any("panic", r))
			fault = true
		}
	}()

	start := time.Now()
	result = p.injection.Detect(text)
	metrics.InjectionDetectionDuration.WithLabelValues(string(p.injection.Mode())).Observe(time.Since(start).Seconds())

	for _, m := range result.Matches {
		metrics.InjectionDetectionsTotal.WithLabelValues(m.Severity.String()).Inc()
	}
	return result, false
}

// checkPII runs detection and redaction, converting panics into a
// fault signal
func (p *Pipeline) checkPII(text string, log *logger.Logger) (redacted string, types []pii.Type, fault bool) {
	if !p.config.EnablePII {
		return text, nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("PII detector fault", zap.Any("panic", r))
			redacted, types, fault = "", nil, true
		}
	}()

	start := time.Now()
	matches := p.pii.Detect(text)
	metrics.PIIDetectionDuration.Observe(time.Since(start).Seconds())

	seen := make(map[pii.Type]bool)
	for _, m := range matches {
		metrics.PIIDetectionsTotal.WithLabelValues(string(m.Type)).Inc()
		if !seen[m.Type] {
			seen[m.Type] = true
			types = append(types, m.Type)
		}
	}

	return pii.Redact(text, matches, p.config.RedactionStrategy), types, false
}

func (p *Pipeline) checkRateLimit(ctx context.Context, req Request) (ratelimit.Decision, error) {
	start := time.Now()
	defer func() {
		metrics.RateLimitDuration.Observe(time.Since(start).Seconds())
	}()

	decision, err := p.limiter.Allow(ctx, ratelimit.Request{
		UserID:   req.UserID,
		Tier:     req.Tier,
		ClientIP: req.ClientIP,
		Endpoint: req.Endpoint,
	})
	if err != nil {
		return ratelimit.Decision{}, NewError(KindStoreUnavailable, "rate limit store unavailable", err)
	}
	return decision, nil
}

// conservativeBlock is the decision issued when a detector fails: deny
// rather than forward unscreened text
func (p *Pipeline) conservativeBlock(requestID string) Decision {
	metrics.RequestsBlockedTotal.WithLabelValues("detector_fault").Inc()
	return Decision{
		RequestID: requestID,
		Outcome:   OutcomeBlocked,
		Reason:    "detector_fault",
		Risk:      injection.SeverityCritical,
		fault:     true,
	}
}

// store writes the decision back to the cache in the background.
// Forwarded and blocked outcomes are cacheable; rate-limited and
// fault decisions are not.
func (p *Pipeline) store(key string, decision Decision, log *logger.Logger) {
	if decision.fault {
		return
	}

	var ttl time.Duration
	switch decision.Outcome {
	case OutcomeForwarded:
		ttl = p.config.ForwardedTTL
	case OutcomeBlocked:
		ttl = p.config.BlockedTTL
	default:
		return
	}

	payload, err := json.Marshal(decision)
	if err != nil {
		log.Warn("Failed to serialize decision for caching", zap.Error(err))
		return
	}

	timeout := p.config.StoreTimeout
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}

	go func() {
		defer metrics.ObserveCacheOp("set", time.Now())

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// Best effort: a failed store only costs a future cache miss
		_ = p.cache.Set(ctx, key, string(payload), ttl)
	}()
}

func (p *Pipeline) shouldBlock(risk injection.Severity) bool {
	if p.config.BlockOnHighRisk {
		return risk >= injection.SeverityHigh
	}
	return risk >= injection.SeverityCritical
}

func topConfidence(result injection.Result) float64 {
	if len(result.Matches) == 0 {
		return 0
	}
	return result.Matches[0].Confidence
}
