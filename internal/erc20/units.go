package erc20

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// DisplayDecimals is the fixed precision used for every human-facing amount.
const DisplayDecimals = 2

var ErrPrecision = errors.New("erc20: amount has more fractional digits than the token supports")

// FormatUnits renders raw / 10^decimals with two fractional digits.
// Digits past the second are truncated, never rounded up, so a formatted
// balance never overstates what the wallet holds.
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return decimal.Zero.StringFixed(DisplayDecimals)
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).Truncate(DisplayDecimals).StringFixed(DisplayDecimals)
}

// ToBaseUnits scales a human amount to the token's smallest unit.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.Sign() <= 0 {
		return nil, ErrBadAmount
	}
	scaled := amount.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, errors.Wrapf(ErrPrecision, "%s with %d decimals", amount.String(), decimals)
	}
	out := scaled.BigInt()
	if out.Cmp(maxUint256) > 0 {
		return nil, ErrBadAmount
	}
	return out, nil
}

// ParseUnits is ToBaseUnits for a decimal string such as a formatted balance.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrapf(err, "parse amount %q", amount)
	}
	return ToBaseUnits(d, decimals)
}
