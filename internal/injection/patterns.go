package injection

import "regexp"

// rule pairs a category with its compiled pattern and base severity.
// Context analysis may later downgrade the severity per match.
type rule struct {
	category Category
	pattern  *regexp.Regexp
	severity Severity
}

var (
	// Attempts to override the system prompt with new instructions
	ignorePrevious = regexp.MustCompile(`(?i)(ignore|disregard|forget|override)\s+((all|everything|the|my|your)\s+)?(((previous|above|prior|earlier|below)(\s+(and|or)\s+(above|below|previous|earlier))?\s*(instructions?|prompts?|directions?|commands?|programming|guidelines?)?)|(instructions?|prompts?|directions?|commands?|programming|guidelines?))`)

	// "now you are", "from now on" style instruction injection
	newInstruction = regexp.MustCompile(`(?i)(now|from\s+now\s+on|henceforth|starting\s+now),?\s+(you\s+are|act\s+as|behave\s+like|your\s+role\s+is|your\s+task\s+is)`)

	// Attempting to change the assistant's role or behavior
	systemRole = regexp.MustCompile(`(?i)(pretend\s+you\s+are|act\s+as(\s+if\s+you're)?|simulate\s+being|imagine\s+you\s+are|you\s+are\s+now|you're\s+now)\s+(an?\s+)?(unrestricted|unfiltered|(unrestricted\s+)?(assistant|AI|bot|system|chatbot|agent|human|person))`)

	// Directly asking to reveal the system prompt
	directExtraction = regexp.MustCompile(`(?i)(show|reveal|display|print|output|tell\s+me|what\s+is|what's)\s+(me\s+)?(your|the)?\s*(initial\s+|system\s+)?(prompt|instructions?|directives?|configuration|guidelines?)`)

	// Subtle attempts to extract system information
	indirectExtraction = regexp.MustCompile(`(?i)(tell\s+me|explain|describe|what\s+are)\s+(what\s+you\s+were\s+told|your\s+programming|your\s+rules|your\s+guidelines|your\s+constraints|your\s+limitations|your\s+capabilities)`)

	// Hypothetical scenarios or games used to bypass restrictions
	roleplayJailbreak = regexp.MustCompile(`(?i)(let's\s+play|imagine|hypothetically|in\s+a\s+hypothetical\s+scenario|for\s+(educational|research|academic)\s+purposes)\s+(a\s+)?(game|scenario|simulation|exercise)`)

	// DAN and related jailbreak technique names
	danVariant = regexp.MustCompile(`(?:^|\s|\W)(DAN)(?:\s|\W|$)|(?i)do\s+anything\s+now|no\s+restrictions?|unrestricted\s+mode|jailbreak\s+mode|developer\s+mode|god\s+mode|admin\s+mode`)

	// Special markers used to confuse prompt parsing
	delimiterInjection = regexp.MustCompile(`(?i)(</?system>|</?prompt>|</?context>|<!--\s*end|--!>|:::\s*end\s*:::|\[END\]|\{/?prompt\})`)

	// Prompts embedded within prompts
	nestedPrompt = regexp.MustCompile(`(?i)(respond\s+to|execute|process|evaluate):\s*['"` + "`" + `].*(ignore|override|bypass)`)

	// Base64, ROT13, or other encoding schemes followed by execution
	encodedInstruction = regexp.MustCompile(`(?i)(decode|decrypt|deobfuscate|translate|convert)(\s+\w+)*\s+(and\s+)?(then\s+)?(execute|run|process|evaluate)`)

	// Shell-like syntax: command substitution, backticks, pipes, chained commands
	commandInjection = regexp.MustCompile("\\$\\([^)]*\\)|`.+`|&&|\\|\\||<\\(|>\\(|;\\s*(rm|curl|wget|nc|bash|sh|python)")

	// Jinja2/Flask-style braces, shell dollar braces, ERB angle percent
	templateInjection = regexp.MustCompile(`\{\{[^}]*\}\}|\{%[^%]*%\}|\$\{[^}]+\}|<%[^%]*%>`)

	// Attempting to extract or transmit data
	dataExfiltration = regexp.MustCompile(`(?i)(send|email|post|upload|transmit|export)\s+(all\s+)?(data|conversation|history|logs|messages)|(https?://|mailto:)`)

	// Trying to access internal memory or conversation state
	memoryStateAccess = regexp.MustCompile(`(?i)(show|list|display|dump|access)\s+(all\s+)?(memory|cache|history|state|context|buffer|previous\s+conversations?)`)
)

var allRules = []rule{
	{CategoryIgnorePrevious, ignorePrevious, SeverityCritical},
	{CategoryNewInstruction, newInstruction, SeverityCritical},
	{CategorySystemRole, systemRole, SeverityCritical},
	{CategoryDirectExtraction, directExtraction, SeverityHigh},
	{CategoryIndirectExtraction, indirectExtraction, SeverityHigh},
	{CategoryRoleplayJailbreak, roleplayJailbreak, SeverityMedium},
	{CategoryDANVariant, danVariant, SeverityCritical},
	{CategoryDelimiterInjection, delimiterInjection, SeverityHigh},
	{CategoryNestedPrompt, nestedPrompt, SeverityMedium},
	{CategoryEncodedInstruction, encodedInstruction, SeverityMedium},
	{CategoryCommandInjection, commandInjection, SeverityHigh},
	{CategoryTemplateInjection, templateInjection, SeverityHigh},
	{CategoryDataExfiltration, dataExfiltration, SeverityHigh},
	{CategoryMemoryStateAccess, memoryStateAccess, SeverityMedium},
}

// rulesFor returns the rules enabled for a detection mode. Strict keeps
// only critical patterns, standard adds high, relaxed enables all 14.
func rulesFor(mode Mode) []rule {
	var min Severity
	switch mode {
	case ModeStrict:
		min = SeverityCritical
	case ModeRelaxed:
		min = SeverityLow
	default:
		min = SeverityHigh
	}

	rules := make([]rule, 0, len(allRules))
	for _, r := range allRules {
		if r.severity >= min {
			rules = append(rules, r)
		}
	}
	return rules
}
