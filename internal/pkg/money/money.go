package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// All monetary amounts inside the service are int64 minor units (cents).
// Decimal values exist only at boundaries: the settlement payload, the
// payout request body and display formatting.

var ErrMalformedAmount = errors.New("malformed amount")

// ToMinorUnits parses a major-unit decimal string ("9.99", "50") into minor
// units. Amounts with more than two fractional digits are rejected rather
// than rounded.
func ToMinorUnits(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, ErrMalformedAmount
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: %q has sub-cent precision", ErrMalformedAmount, s)
	}
	return cents.IntPart(), nil
}

// FromMinorUnits converts minor units to a major-unit decimal with exactly
// two fractional digits.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatMinorUnits renders minor units as a major-unit string, e.g. 375 -> "3.75".
func FormatMinorUnits(cents int64) string {
	return FromMinorUnits(cents).StringFixed(2)
}
