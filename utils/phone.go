package utils

import (
	"strings"

	"invoicebot/internal/models"
)

// DefaultCountryCode is prepended to bare 10-digit numbers.
const DefaultCountryCode = "91"

// Digits strips everything except ASCII digits.
func Digits(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// FormatPhone canonicalizes a phone number into +<country><number> form.
// It does not validate; see IsValidPhone.
func FormatPhone(raw string) string {
	digits := Digits(raw)
	if len(digits) == 10 {
		digits = DefaultCountryCode + digits
	}
	return "+" + digits
}

// IsValidPhone rejects numbers with fewer than 10 digits or with any run of
// three identical digits; the payment provider refuses such contacts.
func IsValidPhone(phone string) bool {
	digits := Digits(phone)
	if len(digits) < 10 {
		return false
	}
	for i := 0; i+2 < len(digits); i++ {
		if digits[i] == digits[i+1] && digits[i+1] == digits[i+2] {
			return false
		}
	}
	return true
}

// NormalizePhone formats and validates in one step.
func NormalizePhone(raw string) (string, error) {
	phone := FormatPhone(raw)
	if !IsValidPhone(phone) {
		return "", models.ErrInvalidPhone
	}
	return phone, nil
}
