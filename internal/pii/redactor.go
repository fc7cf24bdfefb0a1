package pii

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Strategy selects how detected PII is rewritten
type Strategy string

const (
	// StrategyPlaceholder replaces the match with a category marker: "[SSN]"
	StrategyPlaceholder Strategy = "placeholder"
	// StrategyPartial keeps the last 4 characters and masks the rest with 'X'
	StrategyPartial Strategy = "partial"
	// StrategyToken replaces the match with a deterministic typed token,
	// stable across runs for the same input: "<ssn:1a2b3c4d5e6f7a8b>"
	StrategyToken Strategy = "token"
	// StrategyMask replaces every character with '*'
	StrategyMask Strategy = "mask"
	// StrategyRemove deletes the match entirely
	StrategyRemove Strategy = "remove"
)

// Redact returns a copy of text with all matches rewritten using the given
// strategy. Matches are applied end to start so earlier offsets stay valid.
// Redacting already-redacted text is a no-op: replacements do not match any
// detection pattern.
func Redact(text string, matches []Match, strategy Strategy) string {
	if len(matches) == 0 {
		return text
	}

	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	result := text
	for _, m := range sorted {
		result = result[:m.Start] + replacement(m, strategy) + result[m.End:]
	}
	return result
}

func replacement(m Match, strategy Strategy) string {
	switch strategy {
	case StrategyPartial:
		return partialReplacement(m.Text, 4)
	case StrategyToken:
		return fmt.Sprintf("<%s:%016x>", m.Type, xxhash.Sum64String(m.Text))
	case StrategyMask:
		return strings.Repeat("*", m.Len())
	case StrategyRemove:
		return ""
	default:
		return "[" + strings.ToUpper(string(m.Type)) + "]"
	}
}

// partialReplacement keeps the last keep characters; shorter values are
// fully masked
func partialReplacement(text string, keep int) string {
	if len(text) <= keep {
		return strings.Repeat("X", len(text))
	}
	prefix := len(text) - keep
	return strings.Repeat("X", prefix) + text[prefix:]
}
