package gateway

import "strings"

// NormalizePhone strips non-digit characters and prepends the default
// country code when the remainder is a bare 10-digit national number.
func NormalizePhone(phone, defaultCountryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if len(cleaned) == 10 {
		return defaultCountryCode + cleaned
	}
	return cleaned
}

// DigitCount returns the number of digit characters in phone.
func DigitCount(phone string) int {
	n := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
