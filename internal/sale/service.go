package sale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dilmapos/backend-pos/internal/common"
	"github.com/dilmapos/backend-pos/internal/obs"
	"github.com/dilmapos/backend-pos/internal/pricing"
)

// Accepted payment methods.
const (
	PaymentCash   = "Cash"
	PaymentCard   = "Card"
	PaymentCredit = "Credit"
)

// ItemInput is one requested sale line.
type ItemInput struct {
	ProductID          string          `json:"product_id" validate:"required"`
	Quantity           int             `json:"quantity" validate:"required,gt=0"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
}

// CreateInput is the full sale submission. Client-side totals are never part
// of it; everything is recomputed server-side.
type CreateInput struct {
	Items              []ItemInput      `json:"items" validate:"required,min=1,dive"`
	PaymentMethod      string           `json:"payment_method" validate:"required"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal  `json:"discount_amount"`
	CashReceived       *decimal.Decimal `json:"cash_received"`
}

// CompanyInfo is printed on receipts.
type CompanyInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	TaxID   string `json:"tax_id,omitempty"`
}

// Receipt is the printable payload for a completed sale.
type Receipt struct {
	TransactionID  string            `json:"transaction_id"`
	Company        CompanyInfo       `json:"company"`
	Currency       string            `json:"currency"`
	CashierName    string            `json:"cashier_name"`
	CreatedAt      time.Time         `json:"created_at"`
	Items          []TransactionItem `json:"items"`
	GrossSubtotal  decimal.Decimal   `json:"gross_subtotal"`
	DiscountTotal  decimal.Decimal   `json:"discount_total"`
	NetSubtotal    decimal.Decimal   `json:"net_subtotal"`
	TaxRatePercent decimal.Decimal   `json:"tax_rate_percent"`
	TaxAmount      decimal.Decimal   `json:"tax_amount"`
	GrandTotal     decimal.Decimal   `json:"grand_total"`
	PaymentMethod  string            `json:"payment_method"`
	CashReceived   *decimal.Decimal  `json:"cash_received,omitempty"`
	ChangeAmount   *decimal.Decimal  `json:"change_amount,omitempty"`
}

// ListParams captures sale listing filters.
type ListParams struct {
	Start         *time.Time
	End           *time.Time
	CashierID     string
	PaymentMethod string
	Page          int
	Limit         int
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []Transaction
	Total int64
	Page  int
	Limit int
}

// Service owns sale creation and retrieval.
type Service struct {
	store        Store
	taxRateBPS   int
	currency     string
	company      CompanyInfo
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	TaxRateBPS   int
	Currency     string
	Company      CompanyInfo
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("sale: store is required")
	}
	if cfg.TaxRateBPS < 0 {
		return nil, errors.New("sale: tax rate must not be negative")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 200
	}
	currency := strings.TrimSpace(cfg.Currency)
	if currency == "" {
		currency = "AED"
	}
	return &Service{
		store:        cfg.Store,
		taxRateBPS:   cfg.TaxRateBPS,
		currency:     currency,
		company:      cfg.Company,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// Create submits a sale atomically: stock is validated and decremented, and
// totals recomputed through the cart engine, inside one DB transaction.
func (s *Service) Create(ctx context.Context, cashierID string, input CreateInput) (Transaction, error) {
	if strings.TrimSpace(cashierID) == "" {
		return Transaction{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, nil)
	}
	if err := validateInput(input); err != nil {
		s.countSale(input.PaymentMethod, "rejected")
		return Transaction{}, err
	}

	var result Transaction
	err := s.store.InTx(ctx, func(tx Tx) error {
		ids := make([]string, 0, len(input.Items))
		for _, item := range input.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}

		cart := pricing.NewCart()
		for _, item := range input.Items {
			p, ok := products[item.ProductID]
			if !ok {
				return common.NewAppError("NOT_FOUND", "unknown product in sale",
					http.StatusNotFound, nil)
			}
			if p.StockQuantity < item.Quantity {
				return common.NewAppError("INSUFFICIENT_STOCK",
					fmt.Sprintf("not enough stock for %s", p.SKU),
					http.StatusBadRequest,
					nil)
			}
			cart = cart.AddItem(pricing.Product{ID: p.ID, SKU: p.SKU, Name: p.Name, UnitPrice: p.UnitPrice}, item.Quantity)
			cart = cart.SetLineDiscount(item.ProductID, item.DiscountPercentage, item.DiscountAmount)
		}
		cart = cart.SetOrderDiscount(input.DiscountPercentage, input.DiscountAmount)

		quote := pricing.QuoteTotals(cart.Totals.NetSubtotal, s.taxRateBPS)

		tr := transactionFromCart(cashierID, input.PaymentMethod, cart, quote)
		if input.PaymentMethod == PaymentCash {
			if input.CashReceived == nil {
				return common.NewAppError("CASH_REQUIRED", "cash_received is required for cash payments", http.StatusBadRequest, nil)
			}
			received := pricing.Round2(*input.CashReceived)
			change, ok := pricing.Change(quote.GrandTotal, received)
			if !ok {
				return &common.AppError{
					Code:       "INSUFFICIENT_CASH",
					Message:    "cash received is less than the total due",
					HTTPStatus: http.StatusBadRequest,
					Details:    map[string]any{"grand_total": quote.GrandTotal, "cash_received": received},
				}
			}
			tr.CashReceived = &received
			tr.ChangeAmount = &change
		}

		if err := tx.InsertTransaction(ctx, &tr); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		if err := tx.InsertItems(ctx, tr.ID, tr.Items); err != nil {
			return err
		}
		for _, item := range tr.Items {
			if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, ErrStockConflict) {
					return common.NewAppError("INSUFFICIENT_STOCK",
						fmt.Sprintf("not enough stock for %s", item.SKU), http.StatusBadRequest, err)
				}
				return err
			}
		}
		result = tr
		return nil
	})
	if err != nil {
		if common.IsAppError(err) {
			s.countSale(input.PaymentMethod, "rejected")
			return Transaction{}, err
		}
		s.countSale(input.PaymentMethod, "error")
		return Transaction{}, fmt.Errorf("create sale: %w", err)
	}

	s.countSale(input.PaymentMethod, "success")
	s.observeSale(result)
	return result, nil
}

// Get returns a sale with its items.
func (s *Service) Get(ctx context.Context, id string) (Transaction, error) {
	tr, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, common.NewAppError("NOT_FOUND", "sale not found", http.StatusNotFound, err)
		}
		return Transaction{}, fmt.Errorf("get sale: %w", err)
	}
	return tr, nil
}

// List returns a filtered, paginated sale listing.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	items, total, err := s.store.List(ctx, ListFilter{
		Start:         params.Start,
		End:           params.End,
		CashierID:     params.CashierID,
		PaymentMethod: params.PaymentMethod,
		Offset:        (page - 1) * limit,
		Limit:         limit,
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("list sales: %w", err)
	}
	return ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// BuildReceipt renders the printable payload for a sale.
func (s *Service) BuildReceipt(ctx context.Context, id string) (Receipt, error) {
	tr, err := s.Get(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{
		TransactionID:  tr.ID,
		Company:        s.company,
		Currency:       s.currency,
		CashierName:    tr.CashierName,
		CreatedAt:      tr.CreatedAt,
		Items:          tr.Items,
		GrossSubtotal:  tr.GrossSubtotal,
		DiscountTotal:  tr.DiscountTotal,
		NetSubtotal:    tr.NetSubtotal,
		TaxRatePercent: decimal.NewFromInt(int64(s.taxRateBPS)).Div(decimal.NewFromInt(100)),
		TaxAmount:      tr.TaxAmount,
		GrandTotal:     tr.GrandTotal,
		PaymentMethod:  tr.PaymentMethod,
		CashReceived:   tr.CashReceived,
		ChangeAmount:   tr.ChangeAmount,
	}, nil
}

func validateInput(input CreateInput) error {
	if len(input.Items) == 0 {
		return common.NewAppError("VALIDATION_ERROR", "items must not be empty", http.StatusBadRequest, nil)
	}
	seen := make(map[string]struct{}, len(input.Items))
	for _, item := range input.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return common.NewAppError("VALIDATION_ERROR", "product_id is required", http.StatusBadRequest, nil)
		}
		if item.Quantity <= 0 {
			return common.NewAppError("VALIDATION_ERROR", "quantity must be positive", http.StatusBadRequest, nil)
		}
		if _, dup := seen[item.ProductID]; dup {
			return common.NewAppError("VALIDATION_ERROR", "duplicate product in items", http.StatusBadRequest, nil)
		}
		seen[item.ProductID] = struct{}{}
	}
	switch input.PaymentMethod {
	case PaymentCash, PaymentCard, PaymentCredit:
		return nil
	default:
		return common.NewAppError("VALIDATION_ERROR", "payment_method must be Cash, Card, or Credit", http.StatusBadRequest, nil)
	}
}

func transactionFromCart(cashierID, paymentMethod string, cart pricing.Cart, quote pricing.Quote) Transaction {
	items := make([]TransactionItem, 0, len(cart.Lines))
	for _, ln := range cart.Lines {
		gross := ln.UnitPrice.Mul(decimal.NewFromInt(int64(ln.Quantity)))
		items = append(items, TransactionItem{
			ProductID:       ln.ProductID,
			SKU:             ln.SKU,
			Name:            ln.Name,
			UnitPrice:       pricing.Round2(ln.UnitPrice),
			Quantity:        ln.Quantity,
			DiscountPercent: ln.DiscountPercent,
			DiscountAmount:  pricing.Round2(ln.DiscountAmount),
			LineDiscount:    pricing.Round2(gross.Sub(ln.Subtotal)),
			Subtotal:        pricing.Round2(ln.Subtotal),
		})
	}
	return Transaction{
		CashierID:            cashierID,
		PaymentMethod:        paymentMethod,
		GrossSubtotal:        pricing.Round2(cart.Totals.GrossSubtotal),
		LineDiscountTotal:    pricing.Round2(cart.Totals.LineDiscountTotal),
		OrderDiscountPercent: cart.OrderDiscountPercent,
		OrderDiscountAmount:  pricing.Round2(cart.OrderDiscountAmount),
		OrderDiscountTotal:   pricing.Round2(cart.Totals.OrderDiscountTotal),
		DiscountTotal:        pricing.Round2(cart.Totals.DiscountTotal),
		NetSubtotal:          pricing.Round2(cart.Totals.NetSubtotal),
		TaxAmount:            quote.Tax,
		GrandTotal:           quote.GrandTotal,
		Items:                items,
	}
}

func (s *Service) countSale(paymentMethod, result string) {
	if obs.SalesTotal == nil {
		return
	}
	if paymentMethod == "" {
		paymentMethod = "unknown"
	}
	obs.SalesTotal.WithLabelValues(paymentMethod, result).Inc()
}

func (s *Service) observeSale(tr Transaction) {
	if obs.SaleAmount != nil {
		amount, _ := tr.NetSubtotal.Float64()
		obs.SaleAmount.Observe(amount)
	}
	if obs.SaleItemsPerTransaction != nil {
		obs.SaleItemsPerTransaction.Observe(float64(len(tr.Items)))
	}
	if obs.StockDecrementsTotal != nil {
		units := 0
		for _, item := range tr.Items {
			units += item.Quantity
		}
		obs.StockDecrementsTotal.Add(float64(units))
	}
}
