package utils

import (
	"strings"
	"unicode"
)

// NormalizeString trims and collapses inner whitespace runs to one space.
func NormalizeString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizePhone keeps digits and a leading +. Channel sender ids arrive
// without the +, so compare with PhoneDigits.
func NormalizePhone(phone string) string {
	cleaned := strings.TrimSpace(phone)
	if cleaned == "" {
		return ""
	}

	var result strings.Builder
	for i, r := range cleaned {
		if i == 0 && r == '+' {
			result.WriteRune(r)
		} else if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}

	if result.String() == "+" {
		return ""
	}
	return result.String()
}

// PhoneDigits returns only the digits of phone.
func PhoneDigits(phone string) string {
	return strings.TrimPrefix(NormalizePhone(phone), "+")
}

// IsValidPhone performs basic phone validation
func IsValidPhone(phone string) bool {
	digits := PhoneDigits(phone)
	return len(digits) >= 7 && len(digits) <= 15
}
