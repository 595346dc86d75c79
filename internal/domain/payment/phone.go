package payment

import (
	"errors"
	"strings"
)

// ErrInvalidPhone indicates a phone number that cannot be normalized to E.164
var ErrInvalidPhone = errors.New("phone number is not E.164-normalizable")

// NormalizePhone converts a Kenyan mobile number to E.164 form (+254XXXXXXXXX).
// Accepted inputs: +254XXXXXXXXX, 254XXXXXXXXX, 0XXXXXXXXX. Spaces and dashes
// are ignored.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	digits := cleaned
	if strings.HasPrefix(digits, "+") {
		digits = digits[1:]
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "254"):
		return "+" + digits, nil
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return "+254" + digits[1:], nil
	default:
		return "", ErrInvalidPhone
	}
}
