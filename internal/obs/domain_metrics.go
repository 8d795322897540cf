package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesTotal counts sale submissions by payment method and outcome.
	SalesTotal *prometheus.CounterVec
	// SaleAmount records net sale totals (major currency units).
	SaleAmount prometheus.Histogram
	// SaleItemsPerTransaction records line counts per completed sale.
	SaleItemsPerTransaction prometheus.Histogram
	// CartOpsTotal counts register cart mutations by operation.
	CartOpsTotal *prometheus.CounterVec
	// StockDecrementsTotal counts units deducted from inventory by sales.
	StockDecrementsTotal prometheus.Counter
	// LowStockProducts tracks the number of products at or under the threshold.
	LowStockProducts prometheus.Gauge
	// SKULookupsTotal counts scan-path SKU lookups by result (hit/miss/cache).
	SKULookupsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_total",
			Help:      "Count of sale submissions by payment method and outcome.",
		}, []string{"payment_method", "result"})
		SaleAmount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_amount",
			Help:      "Distribution of completed sale net totals.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		})
		SaleItemsPerTransaction = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_items_per_transaction",
			Help:      "Distribution of line counts per completed sale.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		})
		CartOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_ops_total",
			Help:      "Count of register cart mutations by operation.",
		}, []string{"op"})
		StockDecrementsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_decrements_total",
			Help:      "Units deducted from inventory by completed sales.",
		})
		LowStockProducts = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "low_stock_products",
			Help:      "Products at or below the configured low-stock threshold.",
		})
		SKULookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sku_lookups_total",
			Help:      "Scan-path SKU lookups by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, SalesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SalesTotal = v
			}
		})
		mustRegisterCollector(reg, SaleAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				SaleAmount = v
			}
		})
		mustRegisterCollector(reg, SaleItemsPerTransaction, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				SaleItemsPerTransaction = v
			}
		})
		mustRegisterCollector(reg, CartOpsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartOpsTotal = v
			}
		})
		mustRegisterCollector(reg, StockDecrementsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				StockDecrementsTotal = v
			}
		})
		mustRegisterCollector(reg, LowStockProducts, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				LowStockProducts = v
			}
		})
		mustRegisterCollector(reg, SKULookupsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SKULookupsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
