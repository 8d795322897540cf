package pricing

import "github.com/shopspring/decimal"

// The engine is a pure state-transition function: every operation takes a Cart
// value, returns a fully recomputed Cart value, and performs no I/O. Callers
// own the state and serialise mutations per cart.

// AddItem merges the product into the cart. An existing line for the same
// product has its quantity increased; otherwise a fresh undiscounted line is
// appended. Quantities at or below zero fall back to one.
func (c Cart) AddItem(p Product, qty int) Cart {
	if qty <= 0 {
		qty = 1
	}
	lines := append([]Line(nil), c.Lines...)
	merged := false
	for i, ln := range lines {
		if ln.ProductID == p.ID {
			lines[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		lines = append(lines, Line{
			ProductID:       p.ID,
			SKU:             p.SKU,
			Name:            p.Name,
			UnitPrice:       p.UnitPrice,
			Quantity:        qty,
			DiscountPercent: decimal.Zero,
			DiscountAmount:  decimal.Zero,
		})
	}
	c.Lines = lines
	return c.recompute()
}

// SetQuantity replaces the line's quantity. Driving it to zero or below
// removes the line; lines never persist at non-positive quantity. Unknown
// products are a no-op.
func (c Cart) SetQuantity(productID string, qty int) Cart {
	if qty <= 0 {
		return c.RemoveItem(productID)
	}
	lines := append([]Line(nil), c.Lines...)
	for i, ln := range lines {
		if ln.ProductID == productID {
			lines[i].Quantity = qty
			c.Lines = lines
			return c.recompute()
		}
	}
	return c
}

// SetLineDiscount overwrites both discount fields on the line. Calls do not
// accumulate: the previous values are discarded entirely.
func (c Cart) SetLineDiscount(productID string, percent, amount decimal.Decimal) Cart {
	lines := append([]Line(nil), c.Lines...)
	for i, ln := range lines {
		if ln.ProductID == productID {
			lines[i].DiscountPercent = clampPercent(percent)
			lines[i].DiscountAmount = clampAmount(amount)
			c.Lines = lines
			return c.recompute()
		}
	}
	return c
}

// SetOrderDiscount overwrites both order-level discount fields.
func (c Cart) SetOrderDiscount(percent, amount decimal.Decimal) Cart {
	c.OrderDiscountPercent = clampPercent(percent)
	c.OrderDiscountAmount = clampAmount(amount)
	return c.recompute()
}

// RemoveItem deletes the line when present and is a no-op otherwise.
func (c Cart) RemoveItem(productID string) Cart {
	for i, ln := range c.Lines {
		if ln.ProductID == productID {
			lines := append([]Line(nil), c.Lines[:i]...)
			lines = append(lines, c.Lines[i+1:]...)
			c.Lines = lines
			return c.recompute()
		}
	}
	return c
}

// Clear resets to the canonical empty cart.
func (c Cart) Clear() Cart {
	return NewCart()
}
