package inventory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dilmapos/backend-pos/internal/common"
)

// Handler exposes stock endpoints under /products/{id}/inventory.
type Handler struct {
	Service *Service
}

type setStockRequest struct {
	StockQuantity    *int   `json:"stock_quantity"`
	AdjustmentReason string `json:"adjustment_reason"`
}

// Get handles GET /api/v1/products/{id}/inventory.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	lvl, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": lvl})
}

// Set handles PUT /api/v1/products/{id}/inventory.
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StockQuantity == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "stock_quantity is required", nil)
		return
	}
	employeeID, _ := common.UserID(r.Context())
	lvl, err := h.Service.Set(r.Context(), chi.URLParam(r, "id"), employeeID, *req.StockQuantity, req.AdjustmentReason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": lvl})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
