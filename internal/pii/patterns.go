package pii

import "regexp"

// rule associates a PII type with its compiled pattern and metadata.
// All patterns are compiled once at package init.
type rule struct {
	typ                Type
	pattern            *regexp.Regexp
	requiresValidation bool
}

var (
	// US Social Security Number (XXX-XX-XXXX or XXXXXXXXX). The pattern
	// matches the shape; the validator filters invalid area/group/serial.
	ssnPattern = regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`)

	// Credit card numbers: Visa, MasterCard, Amex, Discover
	creditCardPattern = regexp.MustCompile(`\b(?:4\d{3}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}|5[1-5]\d{2}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}|3[47]\d{2}[\s-]?\d{6}[\s-]?\d{5}|6(?:011|5\d{2})[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4})\b`)

	// Email address (RFC 5322 simplified)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// Phone number: (XXX) XXX-XXXX, XXX-XXX-XXXX, +1-XXX-XXX-XXXX
	phonePattern = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})\b`)

	ipv4Pattern = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)

	ipv6Pattern = regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`)

	// API keys: AWS access key, GitHub token, Stripe live key
	apiKeyPattern = regexp.MustCompile(`\b(?:AKIA[0-9A-Z]{16}|ghp_[a-zA-Z0-9]{36}|sk_live_[a-zA-Z0-9]{24})\b`)

	bitcoinPattern = regexp.MustCompile(`\b(?:bc1|[13])[a-zA-HJ-NP-Z0-9]{25,62}\b`)

	ethereumPattern = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)

	macAddressPattern = regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}(?:[0-9A-Fa-f]{2})\b`)

	// Simplified: 1 letter + 7 digits (formats vary by state)
	driversLicensePattern = regexp.MustCompile(`\b[A-Z][0-9]{7}\b`)

	passportPattern = regexp.MustCompile(`\b[A-Z]{1,2}[0-9]{6,9}\b`)

	medicalRecordPattern = regexp.MustCompile(`\bMRN[:-]?\s*[0-9]{6,10}\b`)

	bankAccountPattern = regexp.MustCompile(`\b[0-9]{8,17}\b`)

	routingNumberPattern = regexp.MustCompile(`\b[0-9]{9}\b`)

	// ITIN: 9XX-XX-XXXX
	itinPattern = regexp.MustCompile(`\b9\d{2}-?\d{2}-?\d{4}\b`)

	dateOfBirthPattern = regexp.MustCompile(`\b(?:0[1-9]|1[0-2])[-/](?:0[1-9]|[12][0-9]|3[01])[-/](?:19|20)\d{2}\b`)

	ibanPattern = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)
)

var allRules = []rule{
	{TypeSSN, ssnPattern, true},
	{TypeCreditCard, creditCardPattern, true},
	{TypeEmail, emailPattern, true},
	{TypePhone, phonePattern, true},
	{TypeIPv4, ipv4Pattern, false},
	{TypeIPv6, ipv6Pattern, false},
	{TypeAPIKey, apiKeyPattern, false},
	{TypeBitcoinAddress, bitcoinPattern, false},
	{TypeEthereumAddress, ethereumPattern, false},
	{TypeMACAddress, macAddressPattern, false},
	{TypeDriversLicense, driversLicensePattern, false},
	{TypePassport, passportPattern, false},
	{TypeMedicalRecordNumber, medicalRecordPattern, false},
	{TypeBankAccount, bankAccountPattern, false},
	{TypeRoutingNumber, routingNumberPattern, true},
	{TypeITIN, itinPattern, false},
	{TypeDateOfBirth, dateOfBirthPattern, false},
	{TypeIBAN, ibanPattern, false},
}

var patternSets = map[PatternSet]map[Type]bool{
	SetStrict: {
		TypeSSN:                 true,
		TypeCreditCard:          true,
		TypeAPIKey:              true,
		TypePassport:            true,
		TypeMedicalRecordNumber: true,
	},
	SetStandard: {
		TypeSSN:                 true,
		TypeCreditCard:          true,
		TypeEmail:               true,
		TypePhone:               true,
		TypeIPv4:                true,
		TypeAPIKey:              true,
		TypeBitcoinAddress:      true,
		TypeEthereumAddress:     true,
		TypeDriversLicense:      true,
		TypePassport:            true,
		TypeMedicalRecordNumber: true,
		TypeITIN:                true,
		TypeDateOfBirth:         true,
	},
	SetRelaxed: {
		TypeSSN:                 true,
		TypeCreditCard:          true,
		TypeEmail:               true,
		TypePhone:               true,
		TypeIPv4:                true,
		TypeIPv6:                true,
		TypeAPIKey:              true,
		TypeBitcoinAddress:      true,
		TypeEthereumAddress:     true,
		TypeMACAddress:          true,
		TypeDriversLicense:      true,
		TypePassport:            true,
		TypeMedicalRecordNumber: true,
		TypeBankAccount:         true,
		TypeRoutingNumber:       true,
		TypeITIN:                true,
		TypeDateOfBirth:         true,
		TypeIBAN:                true,
	},
}

// rulesFor returns the rules enabled for a pattern set
func rulesFor(set PatternSet) []rule {
	enabled, ok := patternSets[set]
	if !ok {
		enabled = patternSets[SetStandard]
	}

	rules := make([]rule, 0, len(enabled))
	for _, r := range allRules {
		if enabled[r.typ] {
			rules = append(rules, r)
		}
	}
	return rules
}
