package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary value in minor units (cents for 2-exponent currencies).
// Payment gateways take minor units on the wire, so this is also the storage
// representation; it is never recomputed after an order is created.
type Amount int64

var (
	ErrInvalidCurrency = errors.New("currency must be a 3-letter ISO code")
	ErrInvalidAmount   = errors.New("invalid monetary amount")
)

// ValidateCurrency accepts well-formed 3-letter uppercase codes.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return ErrInvalidCurrency
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

// Parse converts a decimal string like "100.00" or "99.9" into minor units.
// At most two fractional digits are accepted; negative and zero amounts are
// rejected.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" || len(frac) > 2 {
		return 0, ErrInvalidAmount
	}

	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	minor := int64(0)
	if frac != "" {
		minor, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		if len(frac) == 1 {
			minor *= 10
		}
	}

	total := major*100 + minor
	if total <= 0 {
		return 0, ErrInvalidAmount
	}
	return Amount(total), nil
}

// String renders the amount back to a two-decimal string.
func (a Amount) String() string {
	return fmt.Sprintf("%d.%02d", int64(a)/100, int64(a)%100)
}
