package domain

import "github.com/shopspring/decimal"

// satsPerBTC is the exact 1e8 scale factor between bitcoin and satoshis.
var satsPerBTC = decimal.New(1, 8)

// BTCToSats converts a BTC amount to whole satoshis. Sub-satoshi precision
// is truncated; product prices are stored at 8 decimal places so nothing
// is lost in practice.
func BTCToSats(btc decimal.Decimal) int64 {
	return btc.Mul(satsPerBTC).IntPart()
}

// SatsToBTC converts whole satoshis to an exact BTC decimal.
func SatsToBTC(sats int64) decimal.Decimal {
	return decimal.New(sats, -8)
}

// SumLines computes the exact fiat and BTC totals plus the summed quantity
// across a set of cart lines. Everything stays decimal, never float.
func SumLines(lines []CartLine) CartTotals {
	totals := CartTotals{
		Total:    decimal.Zero,
		TotalBTC: decimal.Zero,
	}
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		totals.ItemCount += line.Quantity
		totals.Total = totals.Total.Add(line.UnitPrice.Mul(qty))
		totals.TotalBTC = totals.TotalBTC.Add(line.UnitBTC.Mul(qty))
	}
	return totals
}
