package pii

// Type identifies a category of personally identifiable information
type Type string

const (
	TypeSSN                 Type = "ssn"
	TypeCreditCard          Type = "credit_card"
	TypeEmail               Type = "email"
	TypePhone               Type = "phone"
	TypeIPv4                Type = "ipv4"
	TypeIPv6                Type = "ipv6"
	TypeAPIKey              Type = "api_key"
	TypeBitcoinAddress      Type = "bitcoin_address"
	TypeEthereumAddress     Type = "ethereum_address"
	TypeMACAddress          Type = "mac_address"
	TypeDriversLicense      Type = "drivers_license"
	TypePassport            Type = "passport"
	TypeMedicalRecordNumber Type = "medical_record_number"
	TypeBankAccount         Type = "bank_account"
	TypeRoutingNumber       Type = "routing_number"
	TypeITIN                Type = "itin"
	TypeDateOfBirth         Type = "date_of_birth"
	TypeIBAN                Type = "iban"
)

// PatternSet selects which detection rules are active
type PatternSet string

const (
	// SetStrict enables only high-confidence, critical patterns
	SetStrict PatternSet = "strict"
	// SetStandard enables the balanced default pattern set
	SetStandard PatternSet = "standard"
	// SetRelaxed enables every pattern for maximum detection
	SetRelaxed PatternSet = "relaxed"
)

// Match describes a single PII occurrence in scanned text.
// Start and End are byte offsets into the original text.
type Match struct {
	Type       Type    `json:"type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Text       string  `json:"-"`
	Confidence float64 `json:"confidence"`
}

// Len returns the matched span length in bytes
func (m Match) Len() int {
	return m.End - m.Start
}

// Config contains PII detector configuration
type Config struct {
	PatternSet       PatternSet
	EnableValidation bool
	EnableContext    bool
	ContextWindow    int
}

// DefaultConfig returns the standard detector configuration
func DefaultConfig() Config {
	return Config{
		PatternSet:       SetStandard,
		EnableValidation: true,
		EnableContext:    false,
		ContextWindow:    20,
	}
}
