package payment

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidAmountFormat indicates a decimal string that cannot be parsed
// into minor units at two decimal places of precision
var ErrInvalidAmountFormat = errors.New("amount must be a positive decimal with at most two decimal places")

// ParseAmount converts a decimal string ("100", "100.5", "100.00") into minor
// units (cents). Amounts are parsed as strings end to end so no float rounding
// can corrupt a ledger figure.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmountFormat
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
		if len(frac) == 0 || len(frac) > 2 {
			return 0, ErrInvalidAmountFormat
		}
	}
	if whole == "" {
		return 0, ErrInvalidAmountFormat
	}

	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmountFormat
	}

	minor := int64(0)
	if frac != "" {
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmountFormat
		}
		if len(frac) == 1 {
			minor *= 10
		}
	}

	amount := major*100 + minor
	if amount <= 0 {
		return 0, ErrInvalidAmountFormat
	}
	return amount, nil
}

// FormatAmount renders minor units as a two-decimal string for API responses.
func FormatAmount(amount int64) string {
	return strconv.FormatInt(amount/100, 10) + "." + pad2(amount%100)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// MajorUnits truncates minor units to whole currency units, which is the
// precision the gateway accepts for both collections and disbursements.
func MajorUnits(amount int64) int64 {
	return amount / 100
}
