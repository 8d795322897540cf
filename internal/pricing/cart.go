package pricing

import "github.com/shopspring/decimal"

// minimumNet is the lowest payable net subtotal for a non-empty cart.
// Stacking discounts past 100% floors here instead of going to zero.
var minimumNet = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// Product carries the catalog fields needed to seed a cart line. UnitPrice is
// captured at scan time and never re-fetched for the life of the line.
type Product struct {
	ID        string
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
}

// Line is one product's presence in the cart.
type Line struct {
	ProductID       string          `json:"product_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percentage"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// Totals aggregates the derived cart amounts. Every field is a pure function
// of the lines and the order-level discount inputs.
type Totals struct {
	GrossSubtotal      decimal.Decimal `json:"gross_subtotal"`
	LineDiscountTotal  decimal.Decimal `json:"line_discount_total"`
	OrderDiscountTotal decimal.Decimal `json:"order_discount_total"`
	DiscountTotal      decimal.Decimal `json:"discount_total"`
	NetSubtotal        decimal.Decimal `json:"net_subtotal"`
}

// Cart is the aggregate the engine transforms. Lines preserve insertion order
// and hold at most one entry per product.
type Cart struct {
	Lines                []Line          `json:"lines"`
	OrderDiscountPercent decimal.Decimal `json:"order_discount_percentage"`
	OrderDiscountAmount  decimal.Decimal `json:"order_discount_amount"`
	Totals               Totals          `json:"totals"`
}

// NewCart returns the canonical empty cart.
func NewCart() Cart {
	return Cart{}.recompute()
}

// Empty reports whether the cart holds no lines.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

// FindLine returns the line for the product and whether it exists.
func (c Cart) FindLine(productID string) (Line, bool) {
	for _, ln := range c.Lines {
		if ln.ProductID == productID {
			return ln, true
		}
	}
	return Line{}, false
}

// grossLine is quantity times captured unit price, before any discount.
func grossLine(ln Line) decimal.Decimal {
	return decimal.NewFromInt(int64(ln.Quantity)).Mul(ln.UnitPrice)
}

// lineDiscount combines the percentage and fixed portions of a line discount.
func lineDiscount(ln Line, gross decimal.Decimal) decimal.Decimal {
	pct := clampPercent(ln.DiscountPercent)
	amt := clampAmount(ln.DiscountAmount)
	return gross.Mul(pct).Div(hundred).Add(amt)
}

// recompute derives every total from scratch. The sequencing is load-bearing:
// line discounts apply to gross lines first, and the order-level discount
// applies to the remainder, never to the gross subtotal.
func (c Cart) recompute() Cart {
	lines := make([]Line, len(c.Lines))
	gross := decimal.Zero
	lineDisc := decimal.Zero
	for i, ln := range c.Lines {
		g := grossLine(ln)
		d := lineDiscount(ln, g)
		sub := g.Sub(d)
		if sub.IsNegative() {
			sub = decimal.Zero
		}
		ln.DiscountPercent = clampPercent(ln.DiscountPercent)
		ln.DiscountAmount = clampAmount(ln.DiscountAmount)
		ln.Subtotal = sub
		lines[i] = ln
		gross = gross.Add(g)
		lineDisc = lineDisc.Add(d)
	}

	orderPct := clampPercent(c.OrderDiscountPercent)
	orderAmt := clampAmount(c.OrderDiscountAmount)

	afterLine := gross.Sub(lineDisc)
	orderDisc := afterLine.Mul(orderPct).Div(hundred).Add(orderAmt)
	net := afterLine.Sub(orderDisc)
	if len(lines) > 0 && net.LessThan(minimumNet) {
		net = minimumNet
	}
	if len(lines) == 0 {
		net = decimal.Zero
	}

	c.Lines = lines
	c.OrderDiscountPercent = orderPct
	c.OrderDiscountAmount = orderAmt
	c.Totals = Totals{
		GrossSubtotal:      gross,
		LineDiscountTotal:  lineDisc,
		OrderDiscountTotal: orderDisc,
		DiscountTotal:      lineDisc.Add(orderDisc),
		NetSubtotal:        net,
	}
	return c
}

// clampPercent confines a discount percentage to [0,100].
func clampPercent(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

func clampAmount(amt decimal.Decimal) decimal.Decimal {
	if amt.IsNegative() {
		return decimal.Zero
	}
	return amt
}

// Round2 normalises a monetary value to two decimal places for anything that
// crosses an API boundary.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
