package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dilmapos/backend-pos/internal/common"
)

// Service applies stock corrections on top of the store.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("inventory: store is required")
	}
	return &Service{store: store}, nil
}

// Get returns the stock level for a product.
func (s *Service) Get(ctx context.Context, productID string) (Level, error) {
	lvl, err := s.store.GetLevel(ctx, strings.TrimSpace(productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Level{}, fmt.Errorf("get stock level: %w", err)
	}
	return lvl, nil
}

// Set overwrites the stock count for a product and records who changed it.
func (s *Service) Set(ctx context.Context, productID, employeeID string, quantity int, reason string) (Level, error) {
	productID = strings.TrimSpace(productID)
	if quantity < 0 {
		return Level{}, common.NewAppError("VALIDATION_ERROR", "stock_quantity must not be negative", http.StatusBadRequest, nil)
	}
	current, err := s.Get(ctx, productID)
	if err != nil {
		return Level{}, err
	}
	lvl, err := s.store.SetLevel(ctx, Adjustment{
		ProductID:  productID,
		EmployeeID: employeeID,
		Delta:      quantity - current.StockQuantity,
		Reason:     strings.TrimSpace(reason),
	}, quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Level{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Level{}, fmt.Errorf("set stock level: %w", err)
	}
	return lvl, nil
}
