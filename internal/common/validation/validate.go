// internal/common/validation/validate.go

// Package validation holds the destination checks the channel dispatchers
// run before handing a send to a provider.
package validation

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail reports whether the address is a plausible mailbox.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizePhone strips formatting characters and prefixes the default
// country code when the number carries none. The result is E.164 shaped,
// which is what SNS expects for direct SMS publishes.
func NormalizePhone(phone, defaultCountryCode string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		return "+" + cleaned
	}
	if cleaned == "" {
		return ""
	}
	return "+" + defaultCountryCode + cleaned
}
