package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dilmapos/backend-pos/internal/common"
)

// Handler exposes report HTTP endpoints. All of them are admin-gated at the
// router level.
type Handler struct {
	Service *Service
}

// Sales handles GET /api/v1/reports/sales.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start, end, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.SalesSummary(r.Context(), SummaryFilter{
		Start:   start,
		End:     end,
		Period:  query.Get("period"),
		GroupBy: strings.TrimSpace(query.Get("group_by")),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// TopProducts handles GET /api/v1/reports/top-products.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	limit := common.AtoiDefault(strings.TrimSpace(r.URL.Query().Get("limit")), 0)
	rows, err := h.Service.TopProducts(r.Context(), start, end, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// CashierPerformance handles GET /api/v1/reports/cashier-performance.
func (h *Handler) CashierPerformance(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.CashierPerformance(r.Context(), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// ExportSales handles GET /api/v1/reports/export-sales as a CSV attachment.
func (h *Handler) ExportSales(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.parseRange(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.ExportSales(r.Context(), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}

	filename := fmt.Sprintf("sales-export-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"transaction_id", "created_at", "cashier", "payment_method",
		"gross_subtotal", "discount_total", "net_subtotal", "tax_amount", "grand_total",
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.TransactionID,
			row.CreatedAt.Format(time.RFC3339),
			row.CashierName,
			row.PaymentMethod,
			row.GrossSubtotal.StringFixed(2),
			row.DiscountTotal.StringFixed(2),
			row.NetSubtotal.StringFixed(2),
			row.TaxAmount.StringFixed(2),
			row.GrandTotal.StringFixed(2),
		})
	}
	writer.Flush()
}

func (h *Handler) parseRange(w http.ResponseWriter, r *http.Request) (start, end *time.Time, ok bool) {
	query := r.URL.Query()
	var err error
	if start, err = parseDateParam(query.Get("start_date"), false); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "start_date must be YYYY-MM-DD", nil)
		return nil, nil, false
	}
	if end, err = parseDateParam(query.Get("end_date"), true); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "end_date must be YYYY-MM-DD", nil)
		return nil, nil, false
	}
	return start, end, true
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
