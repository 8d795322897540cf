package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dilmapos/backend-pos/internal/common"
	"github.com/dilmapos/backend-pos/internal/obs"
	"github.com/dilmapos/backend-pos/internal/pricing"
)

// Service orchestrates product persistence, validation, and scan-path caching.
type Service struct {
	store             Store
	cache             *Cache
	lowStockThreshold int
	defaultLimit      int
	maxLimit          int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store             Store
	Cache             *Cache
	LowStockThreshold int
	DefaultLimit      int
	MaxLimit          int
}

// ProductInput carries create/update fields after JSON decoding.
type ProductInput struct {
	SKU           string          `json:"sku" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Category      string          `json:"category"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Cost          decimal.Decimal `json:"cost"`
	StockQuantity int             `json:"stock_quantity"`
}

// ListParams captures filters for product listing.
type ListParams struct {
	Search   string
	Category string
	LowStock bool
	Page     int
	Limit    int
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []Product
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	threshold := cfg.LowStockThreshold
	if threshold <= 0 {
		threshold = 10
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 200
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		store:             cfg.Store,
		cache:             cfg.Cache,
		lowStockThreshold: threshold,
		defaultLimit:      defaultLimit,
		maxLimit:          maxLimit,
	}, nil
}

// LowStockThreshold exposes the configured default threshold.
func (s *Service) LowStockThreshold() int {
	return s.lowStockThreshold
}

// Create inserts a product with its opening stock count.
func (s *Service) Create(ctx context.Context, input ProductInput) (Product, error) {
	p, err := productFromInput(input)
	if err != nil {
		return Product{}, err
	}
	created, err := s.store.Create(ctx, p)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, common.NewAppError("SKU_ALREADY_EXISTS", "a product with this SKU already exists", http.StatusConflict, err)
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

// Get returns a single product by ID.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	p, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Product{}, notFoundOrInternal(err, "get product")
	}
	return p, nil
}

// Update replaces product fields and invalidates the scan cache.
func (s *Service) Update(ctx context.Context, id string, input ProductInput) (Product, error) {
	p, err := productFromInput(input)
	if err != nil {
		return Product{}, err
	}
	existing, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Product{}, notFoundOrInternal(err, "get product")
	}
	p.ID = existing.ID
	updated, err := s.store.Update(ctx, p)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, common.NewAppError("SKU_ALREADY_EXISTS", "a product with this SKU already exists", http.StatusConflict, err)
		}
		return Product{}, notFoundOrInternal(err, "update product")
	}
	_ = s.cache.Delete(ctx, skuCacheKey(existing.SKU), skuCacheKey(updated.SKU))
	return updated, nil
}

// Delete removes a product and invalidates the scan cache.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return notFoundOrInternal(err, "get product")
	}
	if err := s.store.Delete(ctx, existing.ID); err != nil {
		return notFoundOrInternal(err, "delete product")
	}
	_ = s.cache.Delete(ctx, skuCacheKey(existing.SKU))
	return nil
}

// List returns a filtered, paginated product listing.
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
		Search:            params.Search,
		Category:          params.Category,
		LowStockOnly:      params.LowStock,
		LowStockThreshold: s.lowStockThreshold,
		Offset:            (page - 1) * limit,
		Limit:             limit,
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("list products: %w", err)
	}
	return ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// SearchBySKU is the register scan path: exact SKU lookup, cached in Redis.
func (s *Service) SearchBySKU(ctx context.Context, sku string) (Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return Product{}, common.NewAppError("BAD_REQUEST", "sku is required", http.StatusBadRequest, nil)
	}
	key := skuCacheKey(sku)
	var cached Product
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		countSKULookup("cache")
		return cached, nil
	}
	p, err := s.store.GetBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			countSKULookup("miss")
			return Product{}, common.NewAppError("NOT_FOUND", "no product with this SKU", http.StatusNotFound, err)
		}
		return Product{}, fmt.Errorf("get product by sku: %w", err)
	}
	countSKULookup("hit")
	_ = s.cache.SetJSON(ctx, key, p)
	return p, nil
}

// LowStock lists products at or under the threshold. A zero threshold uses the default.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]Product, error) {
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}
	items, _, err := s.store.List(ctx, ListFilter{
		LowStockOnly:      true,
		LowStockThreshold: threshold,
		Limit:             s.maxLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	if obs.LowStockProducts != nil {
		obs.LowStockProducts.Set(float64(len(items)))
	}
	return items, nil
}

// PricingProduct converts a catalog product to the cart engine's view of it.
func (p Product) PricingProduct() pricing.Product {
	return pricing.Product{ID: p.ID, SKU: p.SKU, Name: p.Name, UnitPrice: p.UnitPrice}
}

func productFromInput(input ProductInput) (Product, error) {
	sku := strings.TrimSpace(input.SKU)
	name := strings.TrimSpace(input.Name)
	if sku == "" {
		return Product{}, common.NewAppError("VALIDATION_ERROR", "sku is required", http.StatusBadRequest, nil)
	}
	if name == "" {
		return Product{}, common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	if input.UnitPrice.IsNegative() {
		return Product{}, common.NewAppError("VALIDATION_ERROR", "unit_price must not be negative", http.StatusBadRequest, nil)
	}
	if input.Cost.IsNegative() {
		return Product{}, common.NewAppError("VALIDATION_ERROR", "cost must not be negative", http.StatusBadRequest, nil)
	}
	stock := input.StockQuantity
	if stock < 0 {
		stock = 0
	}
	return Product{
		SKU:           sku,
		Name:          name,
		Category:      strings.TrimSpace(input.Category),
		UnitPrice:     pricing.Round2(input.UnitPrice),
		Cost:          pricing.Round2(input.Cost),
		StockQuantity: stock,
	}, nil
}

func skuCacheKey(sku string) string {
	return "catalog:sku:" + sku
}

func countSKULookup(result string) {
	if obs.SKULookupsTotal != nil {
		obs.SKULookupsTotal.WithLabelValues(result).Inc()
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFoundOrInternal(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
