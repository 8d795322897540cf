package report

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dilmapos/backend-pos/internal/common"
)

type fakeStore struct {
	summaryCalls int
	lastFilter   SummaryFilter
	lastLimit    int
}

func (f *fakeStore) SalesSummary(_ context.Context, filter SummaryFilter) ([]SummaryRow, error) {
	f.summaryCalls++
	f.lastFilter = filter
	return []SummaryRow{{
		Bucket:           time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		TransactionCount: 3,
		GrandTotal:       decimal.RequireFromString("99.75"),
	}}, nil
}

func (f *fakeStore) TopProducts(_ context.Context, _, _ *time.Time, limit int) ([]TopProductRow, error) {
	f.lastLimit = limit
	return []TopProductRow{{ProductID: "p1", SKU: "COLA-330", Name: "Cola", QuantitySold: 42}}, nil
}

func (f *fakeStore) CashierPerformance(_ context.Context, _, _ *time.Time) ([]CashierRow, error) {
	return []CashierRow{{CashierID: "emp-1", CashierName: "Dilma", TransactionCount: 3}}, nil
}

func (f *fakeStore) ExportSales(_ context.Context, _, _ *time.Time) ([]ExportRow, error) {
	return []ExportRow{{
		TransactionID: "sale-1",
		CreatedAt:     time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
		CashierName:   "Dilma",
		PaymentMethod: "Cash",
		GrossSubtotal: decimal.RequireFromString("20"),
		DiscountTotal: decimal.RequireFromString("7"),
		NetSubtotal:   decimal.RequireFromString("13"),
		TaxAmount:     decimal.RequireFromString("0.65"),
		GrandTotal:    decimal.RequireFromString("13.65"),
	}}, nil
}

func newTestReportService(t *testing.T, store Store) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := NewService(ServiceConfig{Store: store, Cache: client, CacheTTL: time.Minute})
	require.NoError(t, err)
	return svc
}

func TestSalesSummaryCaches(t *testing.T) {
	store := &fakeStore{}
	svc := newTestReportService(t, store)

	filter := SummaryFilter{Period: "daily"}
	first, err := svc.SalesSummary(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, store.summaryCalls)

	second, err := svc.SalesSummary(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, store.summaryCalls, "second call must come from cache")
	require.True(t, second[0].GrandTotal.Equal(decimal.RequireFromString("99.75")))
}

func TestSalesSummaryValidatesInput(t *testing.T) {
	svc := newTestReportService(t, &fakeStore{})

	_, err := svc.SalesSummary(context.Background(), SummaryFilter{Period: "hourly"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)

	_, err = svc.SalesSummary(context.Background(), SummaryFilter{GroupBy: "moon_phase"})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestSalesSummaryDefaultsToDaily(t *testing.T) {
	store := &fakeStore{}
	svc := newTestReportService(t, store)

	_, err := svc.SalesSummary(context.Background(), SummaryFilter{})
	require.NoError(t, err)
	require.Equal(t, PeriodDaily, store.lastFilter.Period)
}

func TestTopProductsClampsLimit(t *testing.T) {
	store := &fakeStore{}
	svc := newTestReportService(t, store)

	_, err := svc.TopProducts(context.Background(), nil, nil, -5)
	require.NoError(t, err)
	require.Equal(t, defaultTopProducts, store.lastLimit)
}

func TestExportSalesCSV(t *testing.T) {
	svc := newTestReportService(t, &fakeStore{})
	handler := Handler{Service: svc}

	req := httptest.NewRequest(http.MethodGet, "/reports/export-sales?start_date=2025-03-01&end_date=2025-03-01", nil)
	rec := httptest.NewRecorder()
	handler.ExportSales(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "transaction_id", records[0][0])
	require.Equal(t, "sale-1", records[1][0])
	require.Equal(t, "13.65", records[1][8])
}
