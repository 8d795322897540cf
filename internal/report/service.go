package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dilmapos/backend-pos/internal/common"
)

const defaultTopProducts = 10

// Service runs report aggregations with a short-lived Redis cache in front.
type Service struct {
	store    Store
	cache    *redis.Client
	cacheTTL time.Duration
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    Store
	Cache    *redis.Client
	CacheTTL time.Duration
}

// NewService constructs a Service. A nil cache client disables caching.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("report: store is required")
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, cacheTTL: ttl}, nil
}

// SalesSummary returns bucketed sales aggregates.
func (s *Service) SalesSummary(ctx context.Context, filter SummaryFilter) ([]SummaryRow, error) {
	period, err := normalizePeriod(filter.Period)
	if err != nil {
		return nil, err
	}
	filter.Period = period
	if filter.GroupBy != "" && filter.GroupBy != GroupByCashier && filter.GroupBy != GroupByPaymentMethod {
		return nil, common.NewAppError("BAD_REQUEST", "group_by must be cashier or payment_method", http.StatusBadRequest, nil)
	}

	key := s.cacheKey("summary", filter.Period, filter.GroupBy, filter.Start, filter.End)
	var cached []SummaryRow
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.store.SalesSummary(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	s.setCached(ctx, key, rows)
	return rows, nil
}

// TopProducts returns the best sellers in the range.
func (s *Service) TopProducts(ctx context.Context, start, end *time.Time, limit int) ([]TopProductRow, error) {
	if limit < 1 || limit > 100 {
		limit = defaultTopProducts
	}
	key := s.cacheKey("top-products", fmt.Sprint(limit), "", start, end)
	var cached []TopProductRow
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.store.TopProducts(ctx, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	s.setCached(ctx, key, rows)
	return rows, nil
}

// CashierPerformance returns per-cashier sales aggregates.
func (s *Service) CashierPerformance(ctx context.Context, start, end *time.Time) ([]CashierRow, error) {
	key := s.cacheKey("cashier-performance", "", "", start, end)
	var cached []CashierRow
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.store.CashierPerformance(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("cashier performance: %w", err)
	}
	s.setCached(ctx, key, rows)
	return rows, nil
}

// ExportSales returns raw rows for the CSV export. Exports skip the cache.
func (s *Service) ExportSales(ctx context.Context, start, end *time.Time) ([]ExportRow, error) {
	rows, err := s.store.ExportSales(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("export sales: %w", err)
	}
	return rows, nil
}

func normalizePeriod(period string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "", PeriodDaily:
		return PeriodDaily, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	case PeriodMonthly:
		return PeriodMonthly, nil
	default:
		return "", common.NewAppError("BAD_REQUEST", "period must be daily, weekly, or monthly", http.StatusBadRequest, nil)
	}
}

func (s *Service) cacheKey(kind, a, b string, start, end *time.Time) string {
	f := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("report:%s:%s:%s:%s:%s", kind, a, b, f(start), f(end))
}

func (s *Service) getCached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) setCached(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, data, s.cacheTTL).Err()
}
