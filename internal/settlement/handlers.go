package settlement

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-affiliate/internal/common"
)

// Handler exposes settlement hooks and earnings listings.
type Handler struct {
	Reporter   *Reporter
	Earnings   *Earnings
	MinorUnits int32
}

type completedRequest struct {
	OrderNumber    string    `json:"orderNumber"`
	OrderCreatedAt time.Time `json:"orderCreatedAt"`
	Lines          []struct {
		LineID      string `json:"lineId"`
		ProductName string `json:"productName"`
		Quantity    int    `json:"quantity"`
	} `json:"lines"`
}

// Completed handles POST /api/v1/hooks/orders/{orderId}/completed.
func (h *Handler) Completed(w http.ResponseWriter, r *http.Request) {
	if h.Reporter == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "settlement not configured", nil)
		return
	}
	var req completedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid payload", nil)
		return
	}
	order := Order{
		ID:        chi.URLParam(r, "orderId"),
		Number:    strings.TrimSpace(req.OrderNumber),
		CreatedAt: req.OrderCreatedAt,
	}
	for _, l := range req.Lines {
		order.Lines = append(order.Lines, OrderLine{ID: l.LineID, ProductName: l.ProductName, Quantity: l.Quantity})
	}
	report, err := h.Reporter.OnOrderCompleted(r.Context(), order)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidOrder):
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, err.Error(), nil)
		case errors.Is(err, ErrSettlementInProgress):
			common.JSONError(w, http.StatusConflict, common.CodeConflict, "order settlement in progress", nil)
		default:
			h.Reporter.Logger.Error().Err(err).Str("order_id", order.ID).Msg("settle order")
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "failed to settle order", nil)
		}
		return
	}
	common.Data(w, http.StatusOK, report)
}

// ResellerEarnings handles GET /api/v1/reseller/earnings.
func (h *Handler) ResellerEarnings(w http.ResponseWriter, r *http.Request) {
	if h.Earnings == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "earnings not configured", nil)
		return
	}
	principal, ok := common.PrincipalFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required", nil)
		return
	}
	out, err := h.Earnings.ForReseller(r.Context(), principal.ID)
	if err != nil {
		h.Earnings.Logger.Error().Err(err).Str("reseller_id", principal.ID).Msg("list reseller earnings")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "failed to load earnings", nil)
		return
	}
	common.Data(w, http.StatusOK, out)
}

// AdminEarnings handles GET /api/v1/admin/earnings.
func (h *Handler) AdminEarnings(w http.ResponseWriter, r *http.Request) {
	report, ok := h.adminReport(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	p := common.Pagination{Page: page, PerPage: perPage, TotalItems: len(report.Rows)}
	start := min(p.Offset(), len(report.Rows))
	end := min(start+perPage, len(report.Rows))
	w.Header().Set("X-Total-Commission", report.Total.String())
	common.Page(w, report.Rows[start:end], p)
}

// AdminEarningsCSV handles GET /api/v1/admin/earnings.csv.
func (h *Handler) AdminEarningsCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := h.adminReport(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, report, h.MinorUnits); err != nil {
		h.Earnings.Logger.Error().Err(err).Msg("render earnings csv")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "failed to export earnings", nil)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="affiliate-earnings.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) adminReport(w http.ResponseWriter, r *http.Request) (AdminReport, bool) {
	if h.Earnings == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "earnings not configured", nil)
		return AdminReport{}, false
	}
	report, err := h.Earnings.Admin(r.Context())
	if err != nil {
		h.Earnings.Logger.Error().Err(err).Msg("list admin earnings")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "failed to load earnings", nil)
		return AdminReport{}, false
	}
	return report, true
}
