// internal/common/validation/validate_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		email string
		valid bool
	}{
		{"ann@example.com", true},
		{"a.b+tag@sub.example.co", true},
		{"", false},
		{"not-an-email", false},
		{"@example.com", false},
		{"ann@example", false},
		{"ann @example.com", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.valid, ValidateEmail(tc.email), tc.email)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name        string
		phone       string
		countryCode string
		want        string
	}{
		{"formatted national", "(555) 123-4567", "1", "+15551234567"},
		{"already e164", "+447911123456", "1", "+447911123456"},
		{"e164 with spaces", "+44 7911 123 456", "1", "+447911123456"},
		{"plain digits", "5551234567", "1", "+15551234567"},
		{"uk default code", "7911123456", "44", "+447911123456"},
		{"empty", "", "1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhone(tc.phone, tc.countryCode))
		})
	}
}
