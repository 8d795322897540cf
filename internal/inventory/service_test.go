package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/dilmapos/backend-pos/internal/common"
)

type fakeStore struct {
	levels      map[string]int
	adjustments []Adjustment
}

func (f *fakeStore) GetLevel(_ context.Context, productID string) (Level, error) {
	qty, ok := f.levels[productID]
	if !ok {
		return Level{}, pgx.ErrNoRows
	}
	return Level{ProductID: productID, StockQuantity: qty, UpdatedAt: time.Now()}, nil
}

func (f *fakeStore) SetLevel(_ context.Context, adj Adjustment, newQuantity int) (Level, error) {
	if _, ok := f.levels[adj.ProductID]; !ok {
		return Level{}, pgx.ErrNoRows
	}
	f.levels[adj.ProductID] = newQuantity
	f.adjustments = append(f.adjustments, adj)
	return Level{ProductID: adj.ProductID, StockQuantity: newQuantity, UpdatedAt: time.Now()}, nil
}

func TestSetRecordsDelta(t *testing.T) {
	store := &fakeStore{levels: map[string]int{"p1": 8}}
	svc, err := NewService(store)
	require.NoError(t, err)

	lvl, err := svc.Set(context.Background(), "p1", "emp-1", 20, "weekly restock")
	require.NoError(t, err)
	require.Equal(t, 20, lvl.StockQuantity)
	require.Len(t, store.adjustments, 1)
	require.Equal(t, 12, store.adjustments[0].Delta)
	require.Equal(t, "emp-1", store.adjustments[0].EmployeeID)
	require.Equal(t, "weekly restock", store.adjustments[0].Reason)
}

func TestSetRejectsNegativeQuantity(t *testing.T) {
	svc, err := NewService(&fakeStore{levels: map[string]int{"p1": 8}})
	require.NoError(t, err)

	_, err = svc.Set(context.Background(), "p1", "emp-1", -1, "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestSetUnknownProduct(t *testing.T) {
	svc, err := NewService(&fakeStore{levels: map[string]int{}})
	require.NoError(t, err)

	_, err = svc.Set(context.Background(), "missing", "emp-1", 5, "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}
