package pii

import (
	"testing"

	"github.com/reflexhq/reflex/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(t *testing.T, cfg Config) *Detector {
	t.Helper()
	return New(cfg, logger.NewNop())
}

func TestDetectSSN(t *testing.T) {
	d := newTestDetector(t, DefaultConfig())

	matches := d.Detect("My SSN is 123-45-6789")
	require.Len(t, matches, 1)
	assert.Equal(t, TypeSSN, matches[0].Type)
	assert.Equal(t, "123-45-6789", matches[0].Text)
	assert.Equal(t, 10, matches[0].Start)
	assert.Equal(t, 21, matches[0].End)
	assert.Equal(t, 1.0, matches[0].Confidence)
}

func TestDetectEmail(t *testing.T) {
	d := newTestDetector(t, DefaultConfig())

	matches := d.Detect("Contact john.doe@example.com for more info")
	require.Len(t, matches, 1)
	assert.Equal(t, TypeEmail, matches[0].Type)
	assert.Equal(t, "john.doe@example.com", matches[0].Text)
}

func TestDetectMultiple(t *testing.T) {
	d := newTestDetector(t, DefaultConfig())

	matches := d.Detect("Email: test@example.com, Phone: 555-123-4567, SSN: 123-45-6789")
	require.GreaterOrEqual(t, len(matches), 3)

	types := make(map[Type]bool)
	for _, m := range matches {
		types[m.Type] = true
	}
	assert.True(t, types[TypeEmail])
	assert.True(t, types[TypePhone])
	assert.True(t, types[TypeSSN])

	// Sorted by start offset
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].Start, matches[i].Start)
	}
}

func TestValidationDiscardsInvalidCard(t *testing.T) {
	d := newTestDetector(t, DefaultConfig())

	// Valid Luhn checksum
	matches := d.Detect("Card: 4532-0151-1283-0366")
	require.Len(t, matches, 1)
	assert.Equal(t, TypeCreditCard, matches[0].Type)

	// Invalid Luhn checksum
	matches = d.Detect("Card: 4532-0151-1283-0367")
	for _, m := range matches {
		assert.NotEqual(t, TypeCreditCard, m.Type)
	}
}

func TestValidationDiscardsInvalidSSN(t *testing.T) {
	d := newTestDetector(t, DefaultConfig())

	for _, text := range []string{
		"SSN: 000-12-3456",
		"SSN: 666-12-3456",
		"SSN: 900-12-3456",
		"SSN: 123-00-6789",
		"SSN: 123-45-0000",
	} {
		matches := d.Detect(text)
		for _, m := range matches {
			assert.NotEqual(t, TypeSSN, m.Type, "text %q should not yield a valid SSN", text)
		}
	}
}

func TestLuhnInvalidScoresLower(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableValidation = false
	d := newTestDetector(t, cfg)

	valid := d.DetectByType("4532015112830366", []Type{TypeCreditCard})
	invalid := d.DetectByType("4532015112830367", []Type{TypeCreditCard})
	require.Len(t, valid, 1)
	require.Len(t, invalid, 1)

	assert.Equal(t, 1.0, valid[0].Confidence)
	assert.Equal(t, 0.7, invalid[0].Confidence)
	assert.Greater(t, valid[0].Confidence, invalid[0].Confidence)
}

func TestContextBoost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableContext = true
	d := newTestDetector(t, cfg)

	matches := d.Detect("SSN: 123-45-6789")
	require.Len(t, matches, 1)
	assert.Equal(t, 1.0, matches[0].Confidence) // already validated, stays clamped
}

func TestPatternSetStrict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PatternSet = SetStrict
	d := newTestDetector(t, cfg)

	matches := d.Detect("Email: test@example.com, SSN: 123-45-6789")
	types := make(map[Type]bool)
	for _, m := range matches {
		types[m.Type] = true
	}
	assert.True(t, types[TypeSSN])
	assert.False(t, types[TypeEmail])
}

func TestPatternSetRelaxed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PatternSet = SetRelaxed
	d := newTestDetector(t, cfg)

	matches := d.Detect("MAC 00:1A:2B:3C:4D:5E on host")
	require.NotEmpty(t, matches)
	assert.Equal(t, TypeMACAddress, matches[0].Type)
}

func TestDetectEmptyText(t *testing.T) {
	d := newTestDetector(t, DefaultConfig())
	assert.Empty(t, d.Detect(""))
	assert.Empty(t, d.Detect("this text contains no sensitive values"))
}

func TestCount(t *testing.T) {
	d := newTestDetector(t, DefaultConfig())
	counts := d.Count("test1@example.com and test2@example.com")
	assert.Equal(t, 2, counts[TypeEmail])
}

func TestValidateLuhn(t *testing.T) {
	assert.True(t, validateLuhn("4532015112830366"))
	assert.True(t, validateLuhn("5425233430109903"))
	assert.True(t, validateLuhn("378282246310005"))
	assert.True(t, validateLuhn("4532 0151 1283 0366"))
	assert.True(t, validateLuhn("4532-0151-1283-0366"))

	assert.False(t, validateLuhn("4532015112830367"))
	assert.False(t, validateLuhn("1234567890123456"))
	assert.False(t, validateLuhn("123456789012"))
	assert.False(t, validateLuhn("12345678901234567890"))
}

func TestValidatePhone(t *testing.T) {
	assert.True(t, validatePhone("555-123-4567"))
	assert.True(t, validatePhone("(555) 123-4567"))
	assert.True(t, validatePhone("+1-555-123-4567"))

	assert.False(t, validatePhone("123-456-7890")) // area code starts with 1
	assert.False(t, validatePhone("023-456-7890")) // area code starts with 0
	assert.False(t, validatePhone("555-1234"))     // too short
	assert.False(t, validatePhone("2-555-123-4567"))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, validateEmail("user@example.com"))
	assert.True(t, validateEmail("a@b.co"))

	assert.False(t, validateEmail("not-an-email"))
	assert.False(t, validateEmail("@example.com"))
	assert.False(t, validateEmail("user@domain"))
	assert.False(t, validateEmail("user@.com"))
	assert.False(t, validateEmail("user@domain.c"))
}

func TestValidateRoutingNumber(t *testing.T) {
	assert.True(t, validateRoutingNumber("021000021"))  // JPMorgan Chase
	assert.False(t, validateRoutingNumber("123456789")) // bad checksum
	assert.False(t, validateRoutingNumber("12345678"))
}
