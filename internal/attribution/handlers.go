package attribution

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-affiliate/internal/common"
	"github.com/noah-isme/toko-affiliate/internal/session"
)

// Handler receives order lifecycle hooks from the order platform.
type Handler struct {
	Attributor *Attributor
	Sessions   *session.Manager
}

type linesRequest struct {
	SessionID      string    `json:"sessionId"`
	OrderCreatedAt time.Time `json:"orderCreatedAt"`
	Lines          []struct {
		LineID      string `json:"lineId"`
		ProductID   string `json:"productId"`
		ProductName string `json:"productName"`
		Quantity    int    `json:"quantity"`
	} `json:"lines"`
}

type submittedRequest struct {
	SessionID string `json:"sessionId"`
}

type lineResult struct {
	LineID     string `json:"lineId"`
	Attributed bool   `json:"attributed"`
}

// LinesCreated handles POST /api/v1/hooks/orders/{orderId}/lines.
func (h *Handler) LinesCreated(w http.ResponseWriter, r *http.Request) {
	if h.Attributor == nil || h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "attribution not configured", nil)
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	var req linesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || orderID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid payload", nil)
		return
	}
	results := make([]lineResult, 0, len(req.Lines))
	var src Source
	if req.SessionID != "" {
		pc, err := h.Sessions.Open(r.Context(), req.SessionID)
		if err != nil {
			h.Attributor.Logger.Error().Err(err).Str("order_id", orderID).Msg("open session for attribution")
		}
		if pc != nil {
			src = pc
		}
	}
	for _, l := range req.Lines {
		_, ok := h.Attributor.OnOrderLineCreated(r.Context(), src, OrderLine{
			ID:             l.LineID,
			OrderID:        orderID,
			ProductID:      l.ProductID,
			ProductName:    l.ProductName,
			Quantity:       l.Quantity,
			OrderCreatedAt: req.OrderCreatedAt,
		})
		results = append(results, lineResult{LineID: l.LineID, Attributed: ok})
	}
	common.Data(w, http.StatusOK, results)
}

// Submitted handles POST /api/v1/hooks/orders/{orderId}/submitted.
func (h *Handler) Submitted(w http.ResponseWriter, r *http.Request) {
	if h.Attributor == nil || h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "attribution not configured", nil)
		return
	}
	var req submittedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "sessionId is required", nil)
		return
	}
	pc, err := h.Sessions.Open(r.Context(), req.SessionID)
	if err != nil {
		h.Attributor.Logger.Error().Err(err).Msg("open session on order submission")
	}
	if pc != nil {
		h.Attributor.OnOrderSubmitted(r.Context(), pc)
	}
	w.WriteHeader(http.StatusNoContent)
}
