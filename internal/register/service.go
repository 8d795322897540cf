package register

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dilmapos/backend-pos/internal/catalog"
	"github.com/dilmapos/backend-pos/internal/common"
	"github.com/dilmapos/backend-pos/internal/lock"
	"github.com/dilmapos/backend-pos/internal/obs"
	"github.com/dilmapos/backend-pos/internal/pricing"
)

// ProductLookup is the scan-path dependency: exact SKU to product.
type ProductLookup interface {
	SearchBySKU(ctx context.Context, sku string) (catalog.Product, error)
}

// CartView is the API shape of a register cart with its current quote.
type CartView struct {
	ID    string        `json:"id"`
	Cart  pricing.Cart  `json:"cart"`
	Quote pricing.Quote `json:"quote"`
}

// LinePatch carries the mutable fields of PATCH /carts/{id}/items/{productId}.
// Pointers distinguish "not sent" from zero.
type LinePatch struct {
	Quantity           *int             `json:"quantity"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount"`
}

// Service owns server-held register carts. Every mutation is applied through
// the cart engine under a per-cart Redis lock.
type Service struct {
	store      *RedisStore
	locker     lock.Locker
	products   ProductLookup
	taxRateBPS int
	lockTTL    time.Duration
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store      *RedisStore
	Locker     lock.Locker
	Products   ProductLookup
	TaxRateBPS int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("register: store is required")
	}
	if cfg.Products == nil {
		return nil, errors.New("register: product lookup is required")
	}
	return &Service{
		store:      cfg.Store,
		locker:     cfg.Locker,
		products:   cfg.Products,
		taxRateBPS: cfg.TaxRateBPS,
		lockTTL:    5 * time.Second,
	}, nil
}

// Create opens a new empty register cart.
func (s *Service) Create(ctx context.Context) (CartView, error) {
	id := uuid.NewString()
	cart := pricing.NewCart()
	if err := s.store.Save(ctx, id, cart); err != nil {
		return CartView{}, fmt.Errorf("save cart: %w", err)
	}
	countCartOp("create")
	return s.view(id, cart), nil
}

// Get returns the current cart state.
func (s *Service) Get(ctx context.Context, id string) (CartView, error) {
	cart, ok, err := s.store.Load(ctx, strings.TrimSpace(id))
	if err != nil {
		return CartView{}, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return CartView{}, cartNotFound()
	}
	return s.view(id, cart), nil
}

// AddItemBySKU scans a product into the cart. The SKU lookup seeds the unit
// price; client prices are never accepted.
func (s *Service) AddItemBySKU(ctx context.Context, id, sku string, quantity int) (CartView, error) {
	product, err := s.products.SearchBySKU(ctx, sku)
	if err != nil {
		return CartView{}, err
	}
	return s.mutate(ctx, id, "add_item", pricing.AddItemOp{
		Product:  product.PricingProduct(),
		Quantity: quantity,
	})
}

// PatchLine updates quantity and/or line discount fields of one cart line.
func (s *Service) PatchLine(ctx context.Context, id, productID string, patch LinePatch) (CartView, error) {
	if patch.Quantity == nil && patch.DiscountPercentage == nil && patch.DiscountAmount == nil {
		return CartView{}, common.NewAppError("BAD_REQUEST", "nothing to update", http.StatusBadRequest, nil)
	}
	var ops []pricing.Op
	opName := "set_quantity"
	if patch.Quantity != nil {
		ops = append(ops, pricing.SetQuantityOp{ProductID: productID, Quantity: *patch.Quantity})
	}
	if patch.DiscountPercentage != nil || patch.DiscountAmount != nil {
		opName = "set_line_discount"
		pct := decimal.Zero
		amt := decimal.Zero
		if patch.DiscountPercentage != nil {
			pct = *patch.DiscountPercentage
		}
		if patch.DiscountAmount != nil {
			amt = *patch.DiscountAmount
		}
		ops = append(ops, pricing.SetLineDiscountOp{ProductID: productID, Percent: pct, Amount: amt})
	}
	return s.mutate(ctx, id, opName, ops...)
}

// RemoveLine drops one line from the cart.
func (s *Service) RemoveLine(ctx context.Context, id, productID string) (CartView, error) {
	return s.mutate(ctx, id, "remove_item", pricing.RemoveItemOp{ProductID: productID})
}

// SetOrderDiscount overwrites the order-level discount.
func (s *Service) SetOrderDiscount(ctx context.Context, id string, percent, amount decimal.Decimal) (CartView, error) {
	return s.mutate(ctx, id, "set_order_discount", pricing.SetOrderDiscountOp{Percent: percent, Amount: amount})
}

// Clear drops the stored cart entirely. The register starts a fresh cart via
// Create for the next customer, so nothing is kept alive after a sale.
func (s *Service) Clear(ctx context.Context, id string) (CartView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CartView{}, cartNotFound()
	}
	var result CartView
	err := s.locker.WithLock(ctx, "register:lock:"+id, s.lockTTL, func(ctx context.Context) error {
		_, ok, err := s.store.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if !ok {
			return cartNotFound()
		}
		if err := s.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
		result = s.view(id, pricing.NewCart())
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	countCartOp("clear")
	return result, nil
}

// QuoteCart computes totals for a full client-supplied cart without touching
// any stored state. Used by the stateless POST /carts/quote endpoint.
func (s *Service) QuoteCart(lines []QuoteLine, orderPercent, orderAmount decimal.Decimal) CartView {
	cart := pricing.NewCart()
	for _, ln := range lines {
		cart = cart.AddItem(pricing.Product{
			ID:        ln.ProductID,
			SKU:       ln.SKU,
			Name:      ln.Name,
			UnitPrice: ln.UnitPrice,
		}, ln.Quantity)
		cart = cart.SetLineDiscount(ln.ProductID, ln.DiscountPercentage, ln.DiscountAmount)
	}
	cart = cart.SetOrderDiscount(orderPercent, orderAmount)
	return s.view("", cart)
}

// QuoteLine is one line of a stateless quote request.
type QuoteLine struct {
	ProductID          string          `json:"product_id" validate:"required"`
	SKU                string          `json:"sku"`
	Name               string          `json:"name"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Quantity           int             `json:"quantity"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
}

func (s *Service) mutate(ctx context.Context, id, opName string, ops ...pricing.Op) (CartView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CartView{}, cartNotFound()
	}
	var result CartView
	err := s.locker.WithLock(ctx, "register:lock:"+id, s.lockTTL, func(ctx context.Context) error {
		cart, ok, err := s.store.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if !ok {
			return cartNotFound()
		}
		for _, op := range ops {
			cart = pricing.Apply(cart, op)
		}
		if err := s.store.Save(ctx, id, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		result = s.view(id, cart)
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	countCartOp(opName)
	return result, nil
}

func (s *Service) view(id string, cart pricing.Cart) CartView {
	return CartView{
		ID:    id,
		Cart:  cart,
		Quote: pricing.QuoteTotals(cart.Totals.NetSubtotal, s.taxRateBPS),
	}
}

func cartNotFound() error {
	return common.NewAppError("CART_NOT_FOUND", "register cart not found", http.StatusNotFound, nil)
}

func countCartOp(op string) {
	if obs.CartOpsTotal != nil {
		obs.CartOpsTotal.WithLabelValues(op).Inc()
	}
}
