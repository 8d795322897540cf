package pricing

import "github.com/shopspring/decimal"

// Op is the closed set of cart mutations. Dispatching through Apply keeps the
// whole engine reachable from a single transition function, which is what the
// register layer feeds with decoded HTTP requests.
type Op interface {
	isOp()
}

// AddItemOp appends or merges a product line.
type AddItemOp struct {
	Product  Product
	Quantity int
}

// SetQuantityOp replaces a line quantity; non-positive values remove the line.
type SetQuantityOp struct {
	ProductID string
	Quantity  int
}

// SetLineDiscountOp overwrites a line's discount pair.
type SetLineDiscountOp struct {
	ProductID string
	Percent   decimal.Decimal
	Amount    decimal.Decimal
}

// SetOrderDiscountOp overwrites the order-level discount pair.
type SetOrderDiscountOp struct {
	Percent decimal.Decimal
	Amount  decimal.Decimal
}

// RemoveItemOp deletes a line when present.
type RemoveItemOp struct {
	ProductID string
}

// ClearOp resets the cart.
type ClearOp struct{}

func (AddItemOp) isOp()          {}
func (SetQuantityOp) isOp()      {}
func (SetLineDiscountOp) isOp()  {}
func (SetOrderDiscountOp) isOp() {}
func (RemoveItemOp) isOp()       {}
func (ClearOp) isOp()            {}

// Apply runs one operation against the cart and returns the next state.
func Apply(c Cart, op Op) Cart {
	switch o := op.(type) {
	case AddItemOp:
		return c.AddItem(o.Product, o.Quantity)
	case SetQuantityOp:
		return c.SetQuantity(o.ProductID, o.Quantity)
	case SetLineDiscountOp:
		return c.SetLineDiscount(o.ProductID, o.Percent, o.Amount)
	case SetOrderDiscountOp:
		return c.SetOrderDiscount(o.Percent, o.Amount)
	case RemoveItemOp:
		return c.RemoveItem(o.ProductID)
	case ClearOp:
		return c.Clear()
	default:
		return c
	}
}
