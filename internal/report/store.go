package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Summary grouping knobs.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"

	GroupByCashier       = "cashier"
	GroupByPaymentMethod = "payment_method"
)

// SummaryFilter bounds the sales summary query.
type SummaryFilter struct {
	Start   *time.Time
	End     *time.Time
	Period  string
	GroupBy string
}

// SummaryRow is one bucket of the sales summary.
type SummaryRow struct {
	Bucket           time.Time       `json:"bucket"`
	GroupKey         string          `json:"group_key,omitempty"`
	TransactionCount int64           `json:"transaction_count"`
	GrossTotal       decimal.Decimal `json:"gross_total"`
	DiscountTotal    decimal.Decimal `json:"discount_total"`
	NetTotal         decimal.Decimal `json:"net_total"`
	TaxTotal         decimal.Decimal `json:"tax_total"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
}

// TopProductRow aggregates item sales for one product.
type TopProductRow struct {
	ProductID    string          `json:"product_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	QuantitySold int64           `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// CashierRow aggregates performance for one cashier.
type CashierRow struct {
	CashierID        string          `json:"cashier_id"`
	CashierName      string          `json:"cashier_name"`
	TransactionCount int64           `json:"transaction_count"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	AverageSale      decimal.Decimal `json:"average_sale"`
}

// ExportRow is one CSV line of the sales export.
type ExportRow struct {
	TransactionID string
	CreatedAt     time.Time
	CashierName   string
	PaymentMethod string
	GrossSubtotal decimal.Decimal
	DiscountTotal decimal.Decimal
	NetSubtotal   decimal.Decimal
	TaxAmount     decimal.Decimal
	GrandTotal    decimal.Decimal
}

// Store runs the report aggregations.
type Store interface {
	SalesSummary(ctx context.Context, filter SummaryFilter) ([]SummaryRow, error)
	TopProducts(ctx context.Context, start, end *time.Time, limit int) ([]TopProductRow, error)
	CashierPerformance(ctx context.Context, start, end *time.Time) ([]CashierRow, error)
	ExportSales(ctx context.Context, start, end *time.Time) ([]ExportRow, error)
}

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps a pool in a Store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

func truncUnit(period string) string {
	switch period {
	case PeriodWeekly:
		return "week"
	case PeriodMonthly:
		return "month"
	default:
		return "day"
	}
}

func (s *PGStore) SalesSummary(ctx context.Context, filter SummaryFilter) ([]SummaryRow, error) {
	where, args := rangeWhere(filter.Start, filter.End, "t.created_at")

	groupExpr := ""
	switch filter.GroupBy {
	case GroupByCashier:
		groupExpr = `COALESCE(e.full_name, t.cashier_id::text)`
	case GroupByPaymentMethod:
		groupExpr = `t.payment_method`
	}

	bucket := fmt.Sprintf(`date_trunc('%s', t.created_at)`, truncUnit(filter.Period))
	selectCols := bucket + ` AS bucket, `
	groupCols := `bucket`
	if groupExpr != "" {
		selectCols += groupExpr + ` AS group_key, `
		groupCols += `, group_key`
	} else {
		selectCols += `'' AS group_key, `
	}

	query := `SELECT ` + selectCols + `
		COUNT(*), SUM(t.gross_subtotal), SUM(t.discount_total),
		SUM(t.net_subtotal), SUM(t.tax_amount), SUM(t.grand_total)
		FROM transactions t
		LEFT JOIN employees e ON e.id = t.cashier_id
		` + where + `
		GROUP BY ` + groupCols + `
		ORDER BY bucket ASC, group_key ASC`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	defer rows.Close()

	var result []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.Bucket, &r.GroupKey, &r.TransactionCount,
			&r.GrossTotal, &r.DiscountTotal, &r.NetTotal, &r.TaxTotal, &r.GrandTotal); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *PGStore) TopProducts(ctx context.Context, start, end *time.Time, limit int) ([]TopProductRow, error) {
	where, args := rangeWhere(start, end, "t.created_at")
	args = append(args, limit)

	rows, err := s.Pool.Query(ctx,
		`SELECT i.product_id, i.sku, i.name, SUM(i.quantity), SUM(i.subtotal)
		 FROM transaction_items i
		 JOIN transactions t ON t.id = i.transaction_id
		 `+where+`
		 GROUP BY i.product_id, i.sku, i.name
		 ORDER BY SUM(i.quantity) DESC, SUM(i.subtotal) DESC
		 LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	var result []TopProductRow
	for rows.Next() {
		var r TopProductRow
		if err := rows.Scan(&r.ProductID, &r.SKU, &r.Name, &r.QuantitySold, &r.Revenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *PGStore) CashierPerformance(ctx context.Context, start, end *time.Time) ([]CashierRow, error) {
	where, args := rangeWhere(start, end, "t.created_at")

	rows, err := s.Pool.Query(ctx,
		`SELECT t.cashier_id, COALESCE(e.full_name, ''), COUNT(*),
			SUM(t.grand_total), ROUND(AVG(t.grand_total), 2)
		 FROM transactions t
		 LEFT JOIN employees e ON e.id = t.cashier_id
		 `+where+`
		 GROUP BY t.cashier_id, e.full_name
		 ORDER BY SUM(t.grand_total) DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("cashier performance: %w", err)
	}
	defer rows.Close()

	var result []CashierRow
	for rows.Next() {
		var r CashierRow
		if err := rows.Scan(&r.CashierID, &r.CashierName, &r.TransactionCount, &r.GrandTotal, &r.AverageSale); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *PGStore) ExportSales(ctx context.Context, start, end *time.Time) ([]ExportRow, error) {
	where, args := rangeWhere(start, end, "t.created_at")

	rows, err := s.Pool.Query(ctx,
		`SELECT t.id, t.created_at, COALESCE(e.full_name, ''), t.payment_method,
			t.gross_subtotal, t.discount_total, t.net_subtotal, t.tax_amount, t.grand_total
		 FROM transactions t
		 LEFT JOIN employees e ON e.id = t.cashier_id
		 `+where+`
		 ORDER BY t.created_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("export sales: %w", err)
	}
	defer rows.Close()

	var result []ExportRow
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.TransactionID, &r.CreatedAt, &r.CashierName, &r.PaymentMethod,
			&r.GrossSubtotal, &r.DiscountTotal, &r.NetSubtotal, &r.TaxAmount, &r.GrandTotal); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func rangeWhere(start, end *time.Time, column string) (string, []any) {
	var clauses []string
	var args []any
	if start != nil {
		args = append(args, *start)
		clauses = append(clauses, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if end != nil {
		args = append(args, *end)
		clauses = append(clauses, fmt.Sprintf("%s < $%d", column, len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
