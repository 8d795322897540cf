package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dilmapos/backend-pos/internal/common"
)

type fakeStore struct {
	products   map[string]Product
	getBySKU   int
	lastFilter ListFilter
	nextID     int
}

func newFakeCatalogStore() *fakeStore {
	return &fakeStore{products: map[string]Product{}}
}

func (f *fakeStore) Create(_ context.Context, p Product) (Product, error) {
	for _, existing := range f.products {
		if existing.SKU == p.SKU {
			return Product{}, &pgconn.PgError{Code: "23505"}
		}
	}
	f.nextID++
	p.ID = fmt.Sprintf("prod-%d", f.nextID)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (Product, error) {
	p, ok := f.products[id]
	if !ok {
		return Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) GetBySKU(_ context.Context, sku string) (Product, error) {
	f.getBySKU++
	for _, p := range f.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, pgx.ErrNoRows
}

func (f *fakeStore) Update(_ context.Context, p Product) (Product, error) {
	existing, ok := f.products[p.ID]
	if !ok {
		return Product{}, pgx.ErrNoRows
	}
	p.CreatedAt = existing.CreatedAt
	p.StockQuantity = existing.StockQuantity
	p.UpdatedAt = time.Now()
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) List(_ context.Context, filter ListFilter) ([]Product, int64, error) {
	f.lastFilter = filter
	var items []Product
	for _, p := range f.products {
		if filter.LowStockOnly && p.StockQuantity > filter.LowStockThreshold {
			continue
		}
		items = append(items, p)
	}
	return items, int64(len(items)), nil
}

func newTestService(t *testing.T, store Store) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := NewService(ServiceConfig{
		Store:             store,
		Cache:             NewCache(client, time.Minute),
		LowStockThreshold: 10,
		DefaultLimit:      50,
		MaxLimit:          200,
	})
	require.NoError(t, err)
	return svc, mr
}

func input(sku, name, price string, stock int) ProductInput {
	return ProductInput{
		SKU:           sku,
		Name:          name,
		Category:      "Beverages",
		UnitPrice:     decimal.RequireFromString(price),
		Cost:          decimal.RequireFromString(price).Div(decimal.NewFromInt(2)).Round(2),
		StockQuantity: stock,
	}
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	store := newFakeCatalogStore()
	svc, _ := newTestService(t, store)

	_, err := svc.Create(context.Background(), input("COLA-330", "Cola 330ml", "2.50", 24))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), input("COLA-330", "Other Cola", "3.00", 5))
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "SKU_ALREADY_EXISTS", appErr.Code)
	require.Equal(t, 409, appErr.HTTPStatus)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, newFakeCatalogStore())

	cases := []ProductInput{
		{Name: "No SKU", UnitPrice: decimal.NewFromInt(1)},
		{SKU: "X-1", UnitPrice: decimal.NewFromInt(1)},
		{SKU: "X-1", Name: "Negative", UnitPrice: decimal.NewFromInt(-1)},
	}
	for _, c := range cases {
		_, err := svc.Create(context.Background(), c)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr)
		require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	}
}

func TestSearchBySKUCachesLookups(t *testing.T) {
	store := newFakeCatalogStore()
	svc, _ := newTestService(t, store)

	created, err := svc.Create(context.Background(), input("COLA-330", "Cola 330ml", "2.50", 24))
	require.NoError(t, err)

	first, err := svc.SearchBySKU(context.Background(), "COLA-330")
	require.NoError(t, err)
	require.Equal(t, created.ID, first.ID)
	require.Equal(t, 1, store.getBySKU)

	second, err := svc.SearchBySKU(context.Background(), "COLA-330")
	require.NoError(t, err)
	require.Equal(t, created.ID, second.ID)
	require.Equal(t, 1, store.getBySKU, "second lookup must come from cache")
}

func TestSearchBySKUNotFound(t *testing.T) {
	svc, _ := newTestService(t, newFakeCatalogStore())

	_, err := svc.SearchBySKU(context.Background(), "MISSING")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestUpdateInvalidatesSKUCache(t *testing.T) {
	store := newFakeCatalogStore()
	svc, mr := newTestService(t, store)

	created, err := svc.Create(context.Background(), input("COLA-330", "Cola 330ml", "2.50", 24))
	require.NoError(t, err)
	_, err = svc.SearchBySKU(context.Background(), "COLA-330")
	require.NoError(t, err)
	require.True(t, mr.Exists("catalog:sku:COLA-330"))

	_, err = svc.Update(context.Background(), created.ID, input("COLA-330", "Cola Zero 330ml", "2.75", 0))
	require.NoError(t, err)
	require.False(t, mr.Exists("catalog:sku:COLA-330"))
}

func TestListClampsLimit(t *testing.T) {
	store := newFakeCatalogStore()
	svc, _ := newTestService(t, store)

	result, err := svc.List(context.Background(), ListParams{Page: 0, Limit: 10000})
	require.NoError(t, err)
	require.Equal(t, 1, result.Page)
	require.Equal(t, 200, result.Limit)
	require.Equal(t, 200, store.lastFilter.Limit)
}

func TestLowStockUsesDefaultThreshold(t *testing.T) {
	store := newFakeCatalogStore()
	svc, _ := newTestService(t, store)

	_, err := svc.Create(context.Background(), input("A-1", "Nearly Out", "1.00", 3))
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), input("B-2", "Plenty", "1.00", 120))
	require.NoError(t, err)

	items, err := svc.LowStock(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "A-1", items[0].SKU)
	require.Equal(t, 10, store.lastFilter.LowStockThreshold)
}
