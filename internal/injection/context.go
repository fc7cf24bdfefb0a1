package injection

import (
	"math"
	"regexp"
	"strings"
)

// ContextAnalysis captures benign-context indicators found in text.
// These downgrade severity to reduce false positives on text that talks
// about injections rather than performing them.
type ContextAnalysis struct {
	IsAcademic bool
	IsTesting  bool
	IsQuoted   bool
	IsNegation bool
}

// HasBenignContext reports whether any benign indicator is present
func (c ContextAnalysis) HasBenignContext() bool {
	return c.IsAcademic || c.IsTesting || c.IsQuoted || c.IsNegation
}

var (
	academicPattern = regexp.MustCompile(`(?i)(for\s+)?(research|academic|educational|study|paper|thesis|dissertation)`)
	testingPattern  = regexp.MustCompile(`(?i)(test|example|demonstration|sample|illustration|case\s+study)`)
	quotedPattern   = regexp.MustCompile(`["'].*["']`)
	negationPattern = regexp.MustCompile(`(?i)(don't|do\s+not|avoid|never|should\s+not|shouldn't|must\s+not|mustn't)`)
)

// AnalyzeContext scans text for contextual indicators
func AnalyzeContext(text string) ContextAnalysis {
	return ContextAnalysis{
		IsAcademic: academicPattern.MatchString(text),
		IsTesting:  testingPattern.MatchString(text),
		IsQuoted:   quotedPattern.MatchString(text),
		IsNegation: negationPattern.MatchString(text),
	}
}

// adjustSeverity downgrades severity based on context. Academic or testing
// context drops one level; quoting or negation additionally drops
// critical to medium and high to low.
func adjustSeverity(severity Severity, ctx ContextAnalysis) Severity {
	adjusted := severity

	if ctx.IsAcademic || ctx.IsTesting {
		if adjusted > SeverityLow {
			adjusted--
		}
	}

	if ctx.IsQuoted || ctx.IsNegation {
		switch adjusted {
		case SeverityCritical:
			adjusted = SeverityMedium
		case SeverityHigh:
			adjusted = SeverityLow
		}
	}

	return adjusted
}

// shannonEntropy measures per-character entropy in bits. Values above
// 4.5 suggest random or encoded data.
func shannonEntropy(text string) float64 {
	if text == "" {
		return 0.0
	}

	freq := make(map[rune]int)
	total := 0
	for _, c := range text {
		freq[c]++
		total++
	}

	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// Encoding identifies a suspected encoding scheme
type Encoding string

const (
	EncodingNone   Encoding = "none"
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
)

// DetectEncoding sniffs for base64 or hex payloads without decoding them
func DetectEncoding(text string) Encoding {
	if len(text) >= 20 && len(text)%4 == 0 && isBase64Charset(text) {
		alpha := 0
		for _, c := range text {
			if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
				alpha++
			}
		}
		ratio := float64(alpha) / float64(len(text))
		if ratio > 0.3 && ratio < 0.9 {
			return EncodingBase64
		}
	}

	if len(text) >= 20 && len(text)%2 == 0 && isHex(text) {
		return EncodingHex
	}

	return EncodingNone
}

func isBase64Charset(text string) bool {
	for _, c := range text {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '+', c == '/', c == '=':
		default:
			return false
		}
	}
	return true
}

func isHex(text string) bool {
	for _, c := range text {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

var indicatorKeywords = []string{
	"ignore", "disregard", "forget", "override", "dan", "jailbreak",
	"unrestricted", "bypass", "prompt", "instructions", "system",
	"execute", "decode", "role",
}

// extractIndicators pulls known attack keywords and syntax markers from
// a matched span
func extractIndicators(matched string) []string {
	var indicators []string
	lower := strings.ToLower(matched)

	for _, kw := range indicatorKeywords {
		if strings.Contains(lower, kw) {
			indicators = append(indicators, kw)
		}
	}

	if strings.Contains(matched, "$(") || strings.Contains(matched, "`") {
		indicators = append(indicators, "shell_syntax")
	}
	if strings.Contains(matched, "{{") || strings.Contains(matched, "{%") {
		indicators = append(indicators, "template_syntax")
	}
	if strings.Contains(matched, "</") || strings.Contains(matched, "<!--") {
		indicators = append(indicators, "markup_syntax")
	}

	return indicators
}
