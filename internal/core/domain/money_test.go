package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBTCToSatsExact(t *testing.T) {
	require.Equal(t, int64(300000), BTCToSats(decimal.RequireFromString("0.003")))
	require.Equal(t, int64(1), BTCToSats(decimal.RequireFromString("0.00000001")))
	require.Equal(t, int64(100000000), BTCToSats(decimal.RequireFromString("1")))
	require.Equal(t, int64(0), BTCToSats(decimal.Zero))
}

func TestSatsToBTCRoundTrip(t *testing.T) {
	for _, sats := range []int64{0, 1, 546, 300000, 100000000, 2100000000000000} {
		require.Equal(t, sats, BTCToSats(SatsToBTC(sats)))
	}
}

func TestSumLinesExactDecimals(t *testing.T) {
	// 3 * 0.1 would drift under float64; decimals must stay exact.
	lines := []CartLine{
		{ProductID: uuid.New(), Quantity: 3, UnitPrice: decimal.RequireFromString("0.10"), UnitBTC: decimal.RequireFromString("0.001")},
		{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.RequireFromString("19.99"), UnitBTC: decimal.RequireFromString("0.00042")},
	}
	totals := SumLines(lines)

	require.Equal(t, 5, totals.ItemCount)
	require.True(t, totals.Total.Equal(decimal.RequireFromString("40.28")), "got %s", totals.Total)
	require.True(t, totals.TotalBTC.Equal(decimal.RequireFromString("0.00384")), "got %s", totals.TotalBTC)
}

func TestSumLinesEmptyCart(t *testing.T) {
	totals := SumLines(nil)
	require.Zero(t, totals.ItemCount)
	require.True(t, totals.Total.IsZero())
	require.True(t, totals.TotalBTC.IsZero())
}
