package inventory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Level is the stock record for one product.
type Level struct {
	ProductID     string    `json:"product_id"`
	StockQuantity int       `json:"stock_quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Adjustment records a manual stock correction.
type Adjustment struct {
	ProductID  string
	EmployeeID string
	Delta      int
	Reason     string
}

// Store persists stock levels and their adjustment trail.
type Store interface {
	GetLevel(ctx context.Context, productID string) (Level, error)
	SetLevel(ctx context.Context, adj Adjustment, newQuantity int) (Level, error)
}

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps a pool in a Store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

func (s *PGStore) GetLevel(ctx context.Context, productID string) (Level, error) {
	var lvl Level
	err := s.Pool.QueryRow(ctx,
		`SELECT product_id, stock_quantity, updated_at FROM inventory WHERE product_id = $1`,
		productID).Scan(&lvl.ProductID, &lvl.StockQuantity, &lvl.UpdatedAt)
	return lvl, err
}

// SetLevel overwrites the stock count and appends an adjustment row in one transaction.
func (s *PGStore) SetLevel(ctx context.Context, adj Adjustment, newQuantity int) (Level, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Level{}, err
	}
	defer tx.Rollback(ctx)

	var lvl Level
	err = tx.QueryRow(ctx,
		`UPDATE inventory SET stock_quantity = $2, updated_at = now()
		 WHERE product_id = $1
		 RETURNING product_id, stock_quantity, updated_at`,
		adj.ProductID, newQuantity).Scan(&lvl.ProductID, &lvl.StockQuantity, &lvl.UpdatedAt)
	if err != nil {
		return Level{}, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO stock_adjustments (product_id, employee_id, delta, reason)
		 VALUES ($1, $2, $3, NULLIF($4, ''))`,
		adj.ProductID, adj.EmployeeID, adj.Delta, adj.Reason); err != nil {
		return Level{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Level{}, err
	}
	return lvl, nil
}
