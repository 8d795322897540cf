package sale

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dilmapos/backend-pos/internal/common"
)

// Handler exposes sale HTTP endpoints.
type Handler struct {
	Service *Service
}

// Create handles POST /api/v1/sales.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	cashierID, _ := common.UserID(r.Context())
	tr, err := h.Service.Create(r.Context(), cashierID, input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": tr})
}

// List handles GET /api/v1/sales.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := ListParams{
		CashierID:     strings.TrimSpace(query.Get("cashier_id")),
		PaymentMethod: strings.TrimSpace(query.Get("payment_method")),
	}
	params.Page, params.Limit = common.ParsePagination(r, 0)

	var err error
	if params.Start, err = parseDateParam(query.Get("start_date"), false); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "start_date must be YYYY-MM-DD", nil)
		return
	}
	if params.End, err = parseDateParam(query.Get("end_date"), true); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "end_date must be YYYY-MM-DD", nil)
		return
	}

	result, err := h.Service.List(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": result.Items,
		"meta": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// Get handles GET /api/v1/sales/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tr, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": tr})
}

// Receipt handles GET /api/v1/sales/{id}/receipt.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.Service.BuildReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": receipt})
}

// parseDateParam parses a YYYY-MM-DD value. End dates become exclusive
// next-day boundaries so a single-day range covers the whole day.
func parseDateParam(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
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
