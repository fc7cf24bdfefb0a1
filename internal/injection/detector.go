package injection

import (
	"sort"

	"github.com/reflexhq/reflex/internal/logger"
	"go.uber.org/zap"
)

// Detector scans text for prompt injection attempts. It never rewrites
// input; classification only.
type Detector struct {
	config Config
	rules  []rule
	logger *logger.Logger
}

// New creates a new injection detector instance
func New(cfg Config, log *logger.Logger) *Detector {
	d := &Detector{
		config: cfg,
		rules:  rulesFor(cfg.Mode),
		logger: log,
	}

	log.Info("Injection detector initialized",
		zap.String("mode", string(cfg.Mode)),
		zap.Int("rules", len(d.rules)),
	)

	return d
}

// Mode returns the configured detection mode
func (d *Detector) Mode() Mode {
	return d.config.Mode
}

// Detect scans text and returns all matches sorted by severity (highest
// first) plus the aggregate risk level.
func (d *Detector) Detect(text string) Result {
	var ctx ContextAnalysis
	if d.config.EnableContextAnalysis {
		ctx = AnalyzeContext(text)
	}

	entropy := 0.0
	if d.config.EnableEntropyCheck {
		entropy = shannonEntropy(text)
	}

	var matches []Match
	for _, r := range d.rules {
		for _, loc := range r.pattern.FindAllStringIndex(text, -1) {
			matched := text[loc[0]:loc[1]]

			adjusted := adjustSeverity(r.severity, ctx)
			if adjusted < d.config.SeverityThreshold {
				continue
			}

			matches = append(matches, Match{
				Category:   r.category,
				Start:      loc[0],
				End:        loc[1],
				Text:       matched,
				Severity:   adjusted,
				Confidence: d.confidence(r.category, matched, ctx, entropy),
				Indicators: extractIndicators(matched),
			})
		}
	}

	// Corroborating matches raise confidence across the board
	if len(matches) > 1 {
		boost := float64(len(matches)) * 0.05
		if boost > 0.15 {
			boost = 0.15
		}
		for i := range matches {
			matches[i].Confidence = clamp(matches[i].Confidence + boost)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Severity != matches[j].Severity {
			return matches[i].Severity > matches[j].Severity
		}
		return matches[i].Confidence > matches[j].Confidence
	})

	result := Result{
		Matches: matches,
		Risk:    overallRisk(matches),
	}

	if len(matches) > 0 {
		d.logger.Debug("Injection detected",
			zap.Int("matches", len(matches)),
			zap.String("risk", result.Risk.String()),
		)
	}

	return result
}

// confidence scores a single match
func (d *Detector) confidence(category Category, matched string, ctx ContextAnalysis, entropy float64) float64 {
	confidence := 0.8

	if ctx.HasBenignContext() {
		confidence -= 0.3
	}

	// High entropy suggests encoded payloads
	if entropy > 4.5 {
		confidence += 0.1
	}

	switch category {
	case CategoryDANVariant, CategoryIgnorePrevious, CategorySystemRole:
		confidence += 0.1
	}

	// Longer matches are more specific
	if len(matched) > 50 {
		confidence += 0.05
	}

	return clamp(confidence)
}

// overallRisk is the maximum adjusted severity, escalated one level when
// three or more matches or three or more distinct categories corroborate.
func overallRisk(matches []Match) Severity {
	if len(matches) == 0 {
		return SeverityLow
	}

	risk := SeverityLow
	categories := make(map[Category]bool)
	for _, m := range matches {
		if m.Severity > risk {
			risk = m.Severity
		}
		categories[m.Category] = true
	}

	if (len(matches) >= 3 || len(categories) >= 3) && risk < SeverityCritical {
		risk++
	}

	return risk
}

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0.0 {
		return 0.0
	}
	return v
}
