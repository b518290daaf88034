package erc20

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatUnitsPerDecimals(t *testing.T) {
	eighteen, ok := new(big.Int).SetString("1000000000000000000", 10)
	require.True(t, ok)

	require.Equal(t, "1.00", FormatUnits(eighteen, 18))
	require.Equal(t, "1.00", FormatUnits(big.NewInt(1_000_000), 6))
	require.Equal(t, "500.00", FormatUnits(big.NewInt(500_000_000), 6))
	require.Equal(t, "0.00", FormatUnits(nil, 6))
	require.Equal(t, "0.00", FormatUnits(big.NewInt(0), 18))
}

func TestFormatUnitsTruncates(t *testing.T) {
	// 249.999999 must not render as 250.00
	require.Equal(t, "249.99", FormatUnits(big.NewInt(249_999_999), 6))
}

func TestFormatThenParseRoundTrip(t *testing.T) {
	cases := []struct {
		raw      string
		decimals uint8
	}{
		{"1000000", 6},
		{"1000000000000000000", 18},
		{"123450000", 6},
		{"250000000000000000000", 18},
		{"10000", 6},
	}

	for _, tc := range cases {
		raw, ok := new(big.Int).SetString(tc.raw, 10)
		require.True(t, ok)

		back, err := ParseUnits(FormatUnits(raw, tc.decimals), tc.decimals)
		require.NoError(t, err)
		require.Equal(t, 0, raw.Cmp(back), "raw %s decimals %d", tc.raw, tc.decimals)
	}
}

func TestToBaseUnits(t *testing.T) {
	v, err := ToBaseUnits(decimal.RequireFromString("250"), 18)
	require.NoError(t, err)
	require.Equal(t, "250000000000000000000", v.String())

	_, err = ToBaseUnits(decimal.RequireFromString("0.0000001"), 6)
	require.ErrorIs(t, err, ErrPrecision)

	_, err = ToBaseUnits(decimal.Zero, 6)
	require.ErrorIs(t, err, ErrBadAmount)

	_, err = ToBaseUnits(decimal.RequireFromString("-1"), 6)
	require.ErrorIs(t, err, ErrBadAmount)

	_, err = ParseUnits("abc", 6)
	require.Error(t, err)
}
