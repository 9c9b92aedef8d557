// utils/validator.go - Input validation
package utils

import (
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// Kenyan mobile numbers after normalization: +254 followed by 7xx or 1xx.
	phoneRegex = regexp.MustCompile(`^\+254[17][0-9]{8}$`)
)

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword checks password strength
func ValidatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}

	return true, ""
}

// NormalizePhone rewrites a local or international number to +254XXXXXXXXX.
func NormalizePhone(phone string) string {
	phone = SanitizeInput(phone)
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	if phone == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(phone, "+254"):
		return phone
	case strings.HasPrefix(phone, "254"):
		return "+" + phone
	case strings.HasPrefix(phone, "0"):
		return "+254" + phone[1:]
	default:
		return "+254" + phone
	}
}

// ValidatePhone reports whether phone normalizes to a valid mobile number
func ValidatePhone(phone string) bool {
	return phoneRegex.MatchString(NormalizePhone(phone))
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}
