package sale

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductRow is the locked product snapshot used during sale creation.
type ProductRow struct {
	ID            string
	SKU           string
	Name          string
	UnitPrice     decimal.Decimal
	StockQuantity int
}

// Transaction is a completed sale.
type Transaction struct {
	ID                   string            `json:"id"`
	CashierID            string            `json:"cashier_id"`
	CashierName          string            `json:"cashier_name,omitempty"`
	PaymentMethod        string            `json:"payment_method"`
	GrossSubtotal        decimal.Decimal   `json:"gross_subtotal"`
	LineDiscountTotal    decimal.Decimal   `json:"line_discount_total"`
	OrderDiscountPercent decimal.Decimal   `json:"order_discount_percent"`
	OrderDiscountAmount  decimal.Decimal   `json:"order_discount_amount"`
	OrderDiscountTotal   decimal.Decimal   `json:"order_discount_total"`
	DiscountTotal        decimal.Decimal   `json:"discount_total"`
	NetSubtotal          decimal.Decimal   `json:"net_subtotal"`
	TaxAmount            decimal.Decimal   `json:"tax_amount"`
	GrandTotal           decimal.Decimal   `json:"grand_total"`
	CashReceived         *decimal.Decimal  `json:"cash_received,omitempty"`
	ChangeAmount         *decimal.Decimal  `json:"change_amount,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	Items                []TransactionItem `json:"items,omitempty"`
}

// TransactionItem is one sold line, priced at the moment of sale.
type TransactionItem struct {
	ProductID       string          `json:"product_id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percentage"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	LineDiscount    decimal.Decimal `json:"line_discount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// ListFilter narrows the sale listing.
type ListFilter struct {
	Start         *time.Time
	End           *time.Time
	CashierID     string
	PaymentMethod string
	Offset        int
	Limit         int
}

// ErrStockConflict reports a concurrent stock depletion during decrement.
var ErrStockConflict = errors.New("sale: stock changed during transaction")

// Tx is the unit-of-work surface sale creation runs against.
type Tx interface {
	LockProducts(ctx context.Context, ids []string) (map[string]ProductRow, error)
	InsertTransaction(ctx context.Context, t *Transaction) error
	InsertItems(ctx context.Context, transactionID string, items []TransactionItem) error
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// Store persists sales.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, int64, error)
}

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps a pool in a Store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

type pgTx struct {
	tx pgx.Tx
}

func (s *PGStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Postgres refuses row locks on the nullable side of an outer join, so the
// inventory join must be inner. Every product row gets its inventory row in
// the same transaction that creates it, so nothing is lost to the join.
const lockProductsQuery = `SELECT p.id, p.sku, p.name, p.unit_price, i.stock_quantity
	 FROM products p
	 JOIN inventory i ON i.product_id = p.id
	 WHERE p.id = ANY($1)
	 FOR UPDATE OF p, i`

func (t *pgTx) LockProducts(ctx context.Context, ids []string) (map[string]ProductRow, error) {
	rows, err := t.tx.Query(ctx, lockProductsQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	result := make(map[string]ProductRow, len(ids))
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.StockQuantity); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr *Transaction) error {
	return t.tx.QueryRow(ctx,
		`INSERT INTO transactions (
			cashier_id, payment_method,
			gross_subtotal, line_discount_total,
			order_discount_percent, order_discount_amount, order_discount_total,
			discount_total, net_subtotal, tax_amount, grand_total,
			cash_received, change_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		tr.CashierID, tr.PaymentMethod,
		tr.GrossSubtotal, tr.LineDiscountTotal,
		tr.OrderDiscountPercent, tr.OrderDiscountAmount, tr.OrderDiscountTotal,
		tr.DiscountTotal, tr.NetSubtotal, tr.TaxAmount, tr.GrandTotal,
		tr.CashReceived, tr.ChangeAmount).Scan(&tr.ID, &tr.CreatedAt)
}

func (t *pgTx) InsertItems(ctx context.Context, transactionID string, items []TransactionItem) error {
	for _, item := range items {
		if _, err := t.tx.Exec(ctx,
			`INSERT INTO transaction_items (
				transaction_id, product_id, sku, name, unit_price, quantity,
				discount_percent, discount_amount, line_discount, subtotal
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			transactionID, item.ProductID, item.SKU, item.Name, item.UnitPrice, item.Quantity,
			item.DiscountPercent, item.DiscountAmount, item.LineDiscount, item.Subtotal); err != nil {
			return fmt.Errorf("insert item %s: %w", item.SKU, err)
		}
	}
	return nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE inventory SET stock_quantity = stock_quantity - $2, updated_at = now()
		 WHERE product_id = $1 AND stock_quantity >= $2`,
		productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStockConflict
	}
	return nil
}

const transactionColumns = `t.id, t.cashier_id, COALESCE(e.full_name, ''), t.payment_method,
	t.gross_subtotal, t.line_discount_total,
	t.order_discount_percent, t.order_discount_amount, t.order_discount_total,
	t.discount_total, t.net_subtotal, t.tax_amount, t.grand_total,
	t.cash_received, t.change_amount, t.created_at`

const transactionFrom = ` FROM transactions t LEFT JOIN employees e ON e.id = t.cashier_id `

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tr Transaction
	err := row.Scan(&tr.ID, &tr.CashierID, &tr.CashierName, &tr.PaymentMethod,
		&tr.GrossSubtotal, &tr.LineDiscountTotal,
		&tr.OrderDiscountPercent, &tr.OrderDiscountAmount, &tr.OrderDiscountTotal,
		&tr.DiscountTotal, &tr.NetSubtotal, &tr.TaxAmount, &tr.GrandTotal,
		&tr.CashReceived, &tr.ChangeAmount, &tr.CreatedAt)
	return tr, err
}

func (s *PGStore) Get(ctx context.Context, id string) (Transaction, error) {
	tr, err := scanTransaction(s.Pool.QueryRow(ctx,
		`SELECT `+transactionColumns+transactionFrom+`WHERE t.id = $1`, id))
	if err != nil {
		return Transaction{}, err
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT product_id, sku, name, unit_price, quantity,
			discount_percent, discount_amount, line_discount, subtotal
		 FROM transaction_items WHERE transaction_id = $1 ORDER BY id`, id)
	if err != nil {
		return Transaction{}, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item TransactionItem
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.Name, &item.UnitPrice, &item.Quantity,
			&item.DiscountPercent, &item.DiscountAmount, &item.LineDiscount, &item.Subtotal); err != nil {
			return Transaction{}, err
		}
		tr.Items = append(tr.Items, item)
	}
	return tr, rows.Err()
}

func (s *PGStore) List(ctx context.Context, filter ListFilter) ([]Transaction, int64, error) {
	where, args := buildListWhere(filter)

	var total int64
	if err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*)`+transactionFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.Pool.Query(ctx,
		`SELECT `+transactionColumns+transactionFrom+where+
			fmt.Sprintf(` ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]Transaction, 0, filter.Limit)
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, tr)
	}
	return sales, total, rows.Err()
}

func buildListWhere(filter ListFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Start != nil {
		args = append(args, *filter.Start)
		clauses = append(clauses, fmt.Sprintf("t.created_at >= $%d", len(args)))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		clauses = append(clauses, fmt.Sprintf("t.created_at < $%d", len(args)))
	}
	if id := strings.TrimSpace(filter.CashierID); id != "" {
		args = append(args, id)
		clauses = append(clauses, fmt.Sprintf("t.cashier_id = $%d", len(args)))
	}
	if pm := strings.TrimSpace(filter.PaymentMethod); pm != "" {
		args = append(args, pm)
		clauses = append(clauses, fmt.Sprintf("t.payment_method = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
