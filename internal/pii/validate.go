package pii

import (
	"strconv"
	"strings"
)

// validateLuhn checks a credit card number with the mod-10 checksum.
// Spaces and hyphens are ignored; length must be 13-19 digits.
func validateLuhn(number string) bool {
	digits := extractDigits(number)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[len(digits)-1-i] - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// validateSSN applies the SSA issuance rules: area must be 001-899
// excluding 666, group must be 01-99, serial must be 0001-9999.
func validateSSN(ssn string) bool {
	digits := extractDigits(ssn)
	if len(digits) != 9 {
		return false
	}

	area, err := strconv.Atoi(digits[0:3])
	if err != nil {
		return false
	}
	group, err := strconv.Atoi(digits[3:5])
	if err != nil {
		return false
	}
	serial, err := strconv.Atoi(digits[5:9])
	if err != nil {
		return false
	}

	if area == 0 || area == 666 || area >= 900 {
		return false
	}
	if group == 0 {
		return false
	}
	if serial == 0 {
		return false
	}
	return true
}

// validateEmail performs a structural check on local part, domain, and TLD
func validateEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}

	local, domain := parts[0], parts[1]
	if local == "" {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}

	domainParts := strings.Split(domain, ".")
	for _, p := range domainParts {
		if p == "" {
			return false
		}
	}

	// TLD must be at least 2 characters
	return len(domainParts[len(domainParts)-1]) >= 2
}

// validatePhone checks NANP shape: 10 digits (or 11 with a leading 1)
// and an area code that does not start with 0 or 1.
func validatePhone(phone string) bool {
	digits := extractDigits(phone)
	if len(digits) != 10 && len(digits) != 11 {
		return false
	}
	if len(digits) == 11 {
		if digits[0] != '1' {
			return false
		}
		digits = digits[1:]
	}

	areaCode, err := strconv.Atoi(digits[0:3])
	if err != nil {
		return false
	}
	return areaCode >= 200
}

// validateRoutingNumber checks the ABA checksum for 9-digit routing numbers
func validateRoutingNumber(number string) bool {
	digits := extractDigits(number)
	if len(digits) != 9 {
		return false
	}

	sum := 0
	for i := 0; i < 9; i += 3 {
		sum += 3 * int(digits[i]-'0')
		sum += 7 * int(digits[i+1]-'0')
		sum += int(digits[i+2] - '0')
	}
	return sum%10 == 0
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
