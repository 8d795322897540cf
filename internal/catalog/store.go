package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Product is a sellable item joined with its inventory count.
type Product struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Cost          decimal.Decimal `json:"cost"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ListFilter narrows the product listing.
type ListFilter struct {
	Search            string
	Category          string
	LowStockOnly      bool
	LowStockThreshold int
	Offset            int
	Limit             int
}

// Store persists products and their stock counts.
type Store interface {
	Create(ctx context.Context, p Product) (Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]Product, int64, error)
}

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps a pool in a Store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

const productColumns = `p.id, p.sku, p.name, p.category, p.unit_price, p.cost,
	COALESCE(i.stock_quantity, 0), p.created_at, p.updated_at`

const productFrom = ` FROM products p LEFT JOIN inventory i ON i.product_id = p.id `

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.UnitPrice, &p.Cost,
		&p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PGStore) Create(ctx context.Context, p Product) (Product, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Product{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx,
		`INSERT INTO products (sku, name, category, unit_price, cost)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		p.SKU, p.Name, p.Category, p.UnitPrice, p.Cost).Scan(&id)
	if err != nil {
		return Product{}, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO inventory (product_id, stock_quantity) VALUES ($1, $2)`,
		id, p.StockQuantity); err != nil {
		return Product{}, err
	}
	created, err := scanProduct(tx.QueryRow(ctx,
		`SELECT `+productColumns+productFrom+`WHERE p.id = $1`, id))
	if err != nil {
		return Product{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (s *PGStore) GetByID(ctx context.Context, id string) (Product, error) {
	return scanProduct(s.Pool.QueryRow(ctx,
		`SELECT `+productColumns+productFrom+`WHERE p.id = $1`, id))
}

func (s *PGStore) GetBySKU(ctx context.Context, sku string) (Product, error) {
	return scanProduct(s.Pool.QueryRow(ctx,
		`SELECT `+productColumns+productFrom+`WHERE p.sku = $1`, sku))
}

func (s *PGStore) Update(ctx context.Context, p Product) (Product, error) {
	return scanProduct(s.Pool.QueryRow(ctx,
		`WITH updated AS (
			UPDATE products
			SET sku = $2, name = $3, category = $4, unit_price = $5, cost = $6, updated_at = now()
			WHERE id = $1
			RETURNING id, sku, name, category, unit_price, cost, created_at, updated_at
		)
		SELECT p.id, p.sku, p.name, p.category, p.unit_price, p.cost,
			COALESCE(i.stock_quantity, 0), p.created_at, p.updated_at
		FROM updated p LEFT JOIN inventory i ON i.product_id = p.id`,
		p.ID, p.SKU, p.Name, p.Category, p.UnitPrice, p.Cost))
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, filter ListFilter) ([]Product, int64, error) {
	where, args := buildListWhere(filter)

	var total int64
	if err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*)`+productFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := s.Pool.Query(ctx,
		`SELECT `+productColumns+productFrom+where+
			fmt.Sprintf(` ORDER BY p.name ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0, filter.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func buildListWhere(filter ListFilter) (string, []any) {
	var clauses []string
	var args []any
	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+q+"%")
		clauses = append(clauses, fmt.Sprintf("(p.name ILIKE $%d OR p.sku ILIKE $%d)", len(args), len(args)))
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		args = append(args, c)
		clauses = append(clauses, fmt.Sprintf("p.category = $%d", len(args)))
	}
	if filter.LowStockOnly {
		args = append(args, filter.LowStockThreshold)
		clauses = append(clauses, fmt.Sprintf("COALESCE(i.stock_quantity, 0) <= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
