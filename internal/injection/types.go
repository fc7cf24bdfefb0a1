package injection

// Category identifies a class of prompt injection technique
type Category string

const (
	CategoryIgnorePrevious     Category = "ignore_previous_instructions"
	CategoryNewInstruction     Category = "new_instruction_injection"
	CategorySystemRole         Category = "system_role_manipulation"
	CategoryDirectExtraction   Category = "direct_prompt_extraction"
	CategoryIndirectExtraction Category = "indirect_prompt_extraction"
	CategoryRoleplayJailbreak  Category = "roleplay_jailbreak"
	CategoryDANVariant         Category = "dan_variant"
	CategoryDelimiterInjection Category = "delimiter_injection"
	CategoryNestedPrompt       Category = "nested_prompt"
	CategoryEncodedInstruction Category = "encoded_instruction"
	CategoryCommandInjection   Category = "command_injection"
	CategoryTemplateInjection  Category = "template_injection"
	CategoryDataExfiltration   Category = "data_exfiltration"
	CategoryMemoryStateAccess  Category = "memory_state_access"
)

// Severity ranks how dangerous a detection is. Values are ordered so
// severities compare with < and >.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String implements fmt.Stringer
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler for JSON output
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "medium":
		*s = SeverityMedium
	case "high":
		*s = SeverityHigh
	case "critical":
		*s = SeverityCritical
	default:
		*s = SeverityLow
	}
	return nil
}

// Mode selects which detection rules are active
type Mode string

const (
	// ModeStrict enables only critical severity patterns
	ModeStrict Mode = "strict"
	// ModeStandard enables critical and high severity patterns
	ModeStandard Mode = "standard"
	// ModeRelaxed enables every pattern including medium severity
	ModeRelaxed Mode = "relaxed"
)

// Match describes a single injection detection
type Match struct {
	Category   Category `json:"category"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Text       string   `json:"-"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators,omitempty"`
}

// Result aggregates all matches for a piece of text
type Result struct {
	Matches []Match  `json:"matches"`
	Risk    Severity `json:"risk"`
}

// HasCritical reports whether any match carries critical severity
func (r Result) HasCritical() bool {
	for _, m := range r.Matches {
		if m.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Config contains injection detector configuration
type Config struct {
	Mode                  Mode
	EnableContextAnalysis bool
	EnableEntropyCheck    bool
	SeverityThreshold     Severity
}

// DefaultConfig returns the standard detector configuration
func DefaultConfig() Config {
	return Config{
		Mode:                  ModeStandard,
		EnableContextAnalysis: true,
		EnableEntropyCheck:    true,
		SeverityThreshold:     SeverityLow,
	}
}
