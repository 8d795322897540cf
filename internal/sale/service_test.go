package sale

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dilmapos/backend-pos/internal/common"
)

type fakeStore struct {
	products     map[string]ProductRow
	transactions []Transaction
	nextID       int
}

type fakeTx struct {
	store    *fakeStore
	stock    map[string]int
	inserted *Transaction
}

func newFakeSaleStore() *fakeStore {
	return &fakeStore{products: map[string]ProductRow{}}
}

func (f *fakeStore) addProduct(id, sku, price string, stock int) {
	f.products[id] = ProductRow{
		ID:            id,
		SKU:           sku,
		Name:          "Product " + sku,
		UnitPrice:     decimal.RequireFromString(price),
		StockQuantity: stock,
	}
}

func (f *fakeStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &fakeTx{store: f, stock: map[string]int{}}
	for id, p := range f.products {
		tx.stock[id] = p.StockQuantity
	}
	if err := fn(tx); err != nil {
		return err
	}
	// Commit: apply stock changes and record the transaction.
	for id, qty := range tx.stock {
		p := f.products[id]
		p.StockQuantity = qty
		f.products[id] = p
	}
	if tx.inserted != nil {
		f.transactions = append(f.transactions, *tx.inserted)
	}
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (Transaction, error) {
	for _, tr := range f.transactions {
		if tr.ID == id {
			return tr, nil
		}
	}
	return Transaction{}, fmt.Errorf("no rows")
}

func (f *fakeStore) List(_ context.Context, filter ListFilter) ([]Transaction, int64, error) {
	return f.transactions, int64(len(f.transactions)), nil
}

func (t *fakeTx) LockProducts(_ context.Context, ids []string) (map[string]ProductRow, error) {
	result := map[string]ProductRow{}
	for _, id := range ids {
		if p, ok := t.store.products[id]; ok {
			p.StockQuantity = t.stock[id]
			result[id] = p
		}
	}
	return result, nil
}

func (t *fakeTx) InsertTransaction(_ context.Context, tr *Transaction) error {
	t.store.nextID++
	tr.ID = fmt.Sprintf("sale-%d", t.store.nextID)
	tr.CreatedAt = time.Now()
	t.inserted = tr
	return nil
}

func (t *fakeTx) InsertItems(_ context.Context, transactionID string, items []TransactionItem) error {
	return nil
}

func (t *fakeTx) DecrementStock(_ context.Context, productID string, quantity int) error {
	if t.stock[productID] < quantity {
		return ErrStockConflict
	}
	t.stock[productID] -= quantity
	return nil
}

func newTestSaleService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Store:      store,
		TaxRateBPS: 500,
		Currency:   "AED",
		Company:    CompanyInfo{Name: "DilmaSuperPOS", Address: "Dubai, UAE"},
	})
	require.NoError(t, err)
	return svc
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateCashSale(t *testing.T) {
	store := newFakeSaleStore()
	store.addProduct("p1", "COLA-330", "10.00", 5)
	svc := newTestSaleService(t, store)

	cash := dec("20.00")
	tr, err := svc.Create(context.Background(), "emp-1", CreateInput{
		Items: []ItemInput{{
			ProductID:          "p1",
			Quantity:           2,
			DiscountPercentage: dec("10"),
		}},
		PaymentMethod:  PaymentCash,
		DiscountAmount: dec("5"),
		CashReceived:   &cash,
	})
	require.NoError(t, err)

	require.True(t, tr.GrossSubtotal.Equal(dec("20.00")), "gross %s", tr.GrossSubtotal)
	require.True(t, tr.LineDiscountTotal.Equal(dec("2.00")), "line discount %s", tr.LineDiscountTotal)
	require.True(t, tr.OrderDiscountTotal.Equal(dec("5.00")), "order discount %s", tr.OrderDiscountTotal)
	require.True(t, tr.NetSubtotal.Equal(dec("13.00")), "net %s", tr.NetSubtotal)
	require.True(t, tr.TaxAmount.Equal(dec("0.65")), "tax %s", tr.TaxAmount)
	require.True(t, tr.GrandTotal.Equal(dec("13.65")), "grand %s", tr.GrandTotal)
	require.NotNil(t, tr.ChangeAmount)
	require.True(t, tr.ChangeAmount.Equal(dec("6.35")), "change %s", tr.ChangeAmount)

	require.Equal(t, 3, store.products["p1"].StockQuantity, "stock decremented")
	require.Len(t, store.transactions, 1)
}

func TestCreateCardSaleHasNoCashFields(t *testing.T) {
	store := newFakeSaleStore()
	store.addProduct("p1", "COLA-330", "4.00", 10)
	svc := newTestSaleService(t, store)

	tr, err := svc.Create(context.Background(), "emp-1", CreateInput{
		Items:         []ItemInput{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: PaymentCard,
	})
	require.NoError(t, err)
	require.Nil(t, tr.CashReceived)
	require.Nil(t, tr.ChangeAmount)
	require.True(t, tr.GrandTotal.Equal(dec("4.20")), "grand %s", tr.GrandTotal)
}

func TestCreateRejectsInsufficientStock(t *testing.T) {
	store := newFakeSaleStore()
	store.addProduct("p1", "COLA-330", "2.00", 1)
	svc := newTestSaleService(t, store)

	_, err := svc.Create(context.Background(), "emp-1", CreateInput{
		Items:         []ItemInput{{ProductID: "p1", Quantity: 3}},
		PaymentMethod: PaymentCard,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)

	require.Empty(t, store.transactions, "nothing persisted on failure")
	require.Equal(t, 1, store.products["p1"].StockQuantity, "stock untouched on failure")
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	svc := newTestSaleService(t, newFakeSaleStore())

	_, err := svc.Create(context.Background(), "emp-1", CreateInput{
		Items:         []ItemInput{{ProductID: "ghost", Quantity: 1}},
		PaymentMethod: PaymentCard,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestCreateRejectsShortCash(t *testing.T) {
	store := newFakeSaleStore()
	store.addProduct("p1", "COLA-330", "10.00", 5)
	svc := newTestSaleService(t, store)

	cash := dec("5.00")
	_, err := svc.Create(context.Background(), "emp-1", CreateInput{
		Items:         []ItemInput{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: PaymentCash,
		CashReceived:  &cash,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INSUFFICIENT_CASH", appErr.Code)
	require.Empty(t, store.transactions)
	require.Equal(t, 5, store.products["p1"].StockQuantity)
}

func TestCreateRequiresCashReceivedForCash(t *testing.T) {
	store := newFakeSaleStore()
	store.addProduct("p1", "COLA-330", "10.00", 5)
	svc := newTestSaleService(t, store)

	_, err := svc.Create(context.Background(), "emp-1", CreateInput{
		Items:         []ItemInput{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: PaymentCash,
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CASH_REQUIRED", appErr.Code)
}

func TestCreateValidatesPayload(t *testing.T) {
	svc := newTestSaleService(t, newFakeSaleStore())

	cases := []CreateInput{
		{PaymentMethod: PaymentCard},
		{Items: []ItemInput{{ProductID: "p1", Quantity: 0}}, PaymentMethod: PaymentCard},
		{Items: []ItemInput{{ProductID: "p1", Quantity: 1}}, PaymentMethod: "Bitcoin"},
		{Items: []ItemInput{{ProductID: "p1", Quantity: 1}, {ProductID: "p1", Quantity: 2}}, PaymentMethod: PaymentCard},
	}
	for i, input := range cases {
		_, err := svc.Create(context.Background(), "emp-1", input)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr, "case %d", i)
		require.Equal(t, "VALIDATION_ERROR", appErr.Code, "case %d", i)
	}
}

func TestBuildReceipt(t *testing.T) {
	store := newFakeSaleStore()
	store.addProduct("p1", "COLA-330", "10.00", 5)
	svc := newTestSaleService(t, store)

	cash := dec("20.00")
	tr, err := svc.Create(context.Background(), "emp-1", CreateInput{
		Items:         []ItemInput{{ProductID: "p1", Quantity: 1}},
		PaymentMethod: PaymentCash,
		CashReceived:  &cash,
	})
	require.NoError(t, err)

	receipt, err := svc.BuildReceipt(context.Background(), tr.ID)
	require.NoError(t, err)
	require.Equal(t, "DilmaSuperPOS", receipt.Company.Name)
	require.Equal(t, "AED", receipt.Currency)
	require.True(t, receipt.TaxRatePercent.Equal(dec("5")), "tax rate %s", receipt.TaxRatePercent)
	require.True(t, receipt.GrandTotal.Equal(dec("10.50")), "grand %s", receipt.GrandTotal)
}
