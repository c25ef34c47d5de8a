// Package utils holds the amount, formatting, and wire-parsing helpers
// shared by the payment client and server.
package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the subunit precision of USDC.
const USDCDecimals = 6

// FormatDisplayAmount renders a USDC decimal amount string as a $-prefixed
// two-decimal display value. The input is truncated to USDC's six decimal
// places before rounding, matching on-chain precision; the final two-decimal
// rounding is standard half-up rounding, never truncation.
func FormatDisplayAmount(amount string) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return "$" + d.Truncate(USDCDecimals).StringFixed(2), nil
}

// FormatSubunits renders a raw 6-decimal subunit amount for display.
func FormatSubunits(subunits *big.Int) string {
	return "$" + decimal.NewFromBigInt(subunits, -USDCDecimals).StringFixed(2)
}

// ParseSubunits converts a USDC decimal string into raw 6-decimal subunits.
func ParseSubunits(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	return d.Shift(USDCDecimals).Truncate(0).BigInt(), nil
}

// ValidateAmount reports whether amount parses as a decimal, is strictly
// positive, and does not exceed max. Malformed input is invalid, not an
// error.
func ValidateAmount(amount, max string) bool {
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return false
	}
	m, err := decimal.NewFromString(max)
	if err != nil {
		return false
	}
	return a.IsPositive() && a.LessThanOrEqual(m)
}
