package pricing

import "github.com/shopspring/decimal"

// Quote derives the amounts owed at the register from a cart's net subtotal.
// Tax and grand total live outside the cart invariants: they are computed
// from NetSubtotal alone and rounded for presentation.
type Quote struct {
	NetSubtotal decimal.Decimal `json:"net_subtotal"`
	TaxRateBPS  int             `json:"tax_rate_bps"`
	Tax         decimal.Decimal `json:"tax"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

// QuoteTotals applies the configured tax rate (basis points) on top of the
// net subtotal.
func QuoteTotals(net decimal.Decimal, taxRateBPS int) Quote {
	if taxRateBPS < 0 {
		taxRateBPS = 0
	}
	rate := decimal.NewFromInt(int64(taxRateBPS)).Div(decimal.NewFromInt(10000))
	tax := Round2(net.Mul(rate))
	return Quote{
		NetSubtotal: Round2(net),
		TaxRateBPS:  taxRateBPS,
		Tax:         tax,
		GrandTotal:  Round2(net).Add(tax),
	}
}

// Change computes the cash change owed, or false when the tendered amount
// does not cover the total.
func Change(grandTotal, cashReceived decimal.Decimal) (decimal.Decimal, bool) {
	change := cashReceived.Sub(grandTotal)
	if change.IsNegative() {
		return decimal.Zero, false
	}
	return Round2(change), true
}
