package pii

import (
	"sort"
	"strings"

	"github.com/reflexhq/reflex/internal/logger"
	"go.uber.org/zap"
)

// Detector scans text for PII using the configured pattern set
type Detector struct {
	config Config
	rules  []rule
	logger *logger.Logger
}

// New creates a new PII detector instance
func New(cfg Config, log *logger.Logger) *Detector {
	d := &Detector{
		config: cfg,
		rules:  rulesFor(cfg.PatternSet),
		logger: log,
	}

	log.Info("PII detector initialized",
		zap.String("pattern_set", string(cfg.PatternSet)),
		zap.Int("rules", len(d.rules)),
		zap.Bool("validation", cfg.EnableValidation),
	)

	return d
}

// Detect finds all PII in the given text. Matches are returned sorted by
// start offset with byte offsets valid for redaction. Validation failures
// discard the match when validation is enabled; otherwise they lower its
// confidence score.
func (d *Detector) Detect(text string) []Match {
	var matches []Match

	for _, r := range d.rules {
		for _, loc := range r.pattern.FindAllStringIndex(text, -1) {
			matched := text[loc[0]:loc[1]]

			valid := validate(r.typ, matched)
			if d.config.EnableValidation && r.requiresValidation && !valid {
				continue
			}

			matches = append(matches, Match{
				Type:       r.typ,
				Start:      loc[0],
				End:        loc[1],
				Text:       matched,
				Confidence: confidence(r.requiresValidation, valid),
			})
		}
	}

	if d.config.EnableContext {
		d.applyContextBoost(text, matches)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })

	if len(matches) > 0 {
		d.logger.Debug("PII detected", zap.Int("matches", len(matches)))
	}

	return matches
}

// DetectByType finds PII restricted to the given types
func (d *Detector) DetectByType(text string, types []Type) []Match {
	want := make(map[Type]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	var filtered []Match
	for _, m := range d.Detect(text) {
		if want[m.Type] {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// Count returns the number of matches per PII type
func (d *Detector) Count(text string) map[Type]int {
	counts := make(map[Type]int)
	for _, m := range d.Detect(text) {
		counts[m.Type]++
	}
	return counts
}

// applyContextBoost raises confidence when nearby text names the category
func (d *Detector) applyContextBoost(text string, matches []Match) {
	window := d.config.ContextWindow
	if window <= 0 {
		window = 20
	}

	for i := range matches {
		start := matches[i].Start - window
		if start < 0 {
			start = 0
		}
		end := matches[i].End + window
		if end > len(text) {
			end = len(text)
		}
		context := strings.ToLower(text[start:end])

		boost := 0.0
		switch matches[i].Type {
		case TypeSSN:
			if strings.Contains(context, "ssn") || strings.Contains(context, "social") {
				boost = 0.1
			}
		case TypeEmail:
			if strings.Contains(context, "email") || strings.Contains(context, "contact") {
				boost = 0.1
			}
		case TypePhone:
			if strings.Contains(context, "phone") || strings.Contains(context, "call") {
				boost = 0.1
			}
		case TypeCreditCard:
			if strings.Contains(context, "card") || strings.Contains(context, "payment") {
				boost = 0.1
			}
		}

		matches[i].Confidence = clamp(matches[i].Confidence + boost)
	}
}

// validate dispatches to the type-specific validator; types without a
// validator always pass
func validate(typ Type, text string) bool {
	switch typ {
	case TypeCreditCard:
		return validateLuhn(text)
	case TypeSSN:
		return validateSSN(text)
	case TypeEmail:
		return validateEmail(text)
	case TypePhone:
		return validatePhone(text)
	case TypeRoutingNumber:
		return validateRoutingNumber(text)
	default:
		return true
	}
}

// confidence scores a match: validated 1.0, failed validation 0.7,
// no validator required 0.9
func confidence(requiresValidation, valid bool) float64 {
	switch {
	case requiresValidation && valid:
		return 1.0
	case requiresValidation:
		return 0.7
	default:
		return 0.9
	}
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
