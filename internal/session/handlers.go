package session

import (
	"encoding/json"
	"net/http"

	"github.com/noah-isme/toko-affiliate/internal/common"
)

// Handler exposes storefront session endpoints.
type Handler struct{}

type sessionView struct {
	SessionID string  `json:"sessionId"`
	Affiliate *Active `json:"affiliate"`
}

type lineRemovedRequest struct {
	ProductID    string `json:"productId"`
	RemainingQty int    `json:"remainingQuantity"`
}

func current(w http.ResponseWriter, r *http.Request) (*PricingContext, bool) {
	pc, ok := FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "session not bound", nil)
	}
	return pc, ok
}

func view(pc *PricingContext) sessionView {
	v := sessionView{SessionID: pc.ID()}
	if active, ok := pc.Active(); ok {
		v.Affiliate = &active
	}
	return v
}

// Get handles GET /api/v1/storefront/session.
func (Handler) Get(w http.ResponseWriter, r *http.Request) {
	pc, ok := current(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, view(pc))
}

// ClearAffiliate handles DELETE /api/v1/storefront/session/affiliate.
func (Handler) ClearAffiliate(w http.ResponseWriter, r *http.Request) {
	pc, ok := current(w, r)
	if !ok {
		return
	}
	if err := pc.Clear(r.Context()); err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "could not clear affiliate pricing", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LineRemoved handles POST /api/v1/storefront/cart/line-removed.
func (Handler) LineRemoved(w http.ResponseWriter, r *http.Request) {
	pc, ok := current(w, r)
	if !ok {
		return
	}
	var req lineRemovedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "productId is required", nil)
		return
	}
	if req.RemainingQty < 0 {
		req.RemainingQty = 0
	}
	if err := pc.OnLineRemoved(r.Context(), req.ProductID, req.RemainingQty); err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "could not update session", nil)
		return
	}
	common.Data(w, http.StatusOK, view(pc))
}

// CartEmptied handles POST /api/v1/storefront/cart/emptied.
func (Handler) CartEmptied(w http.ResponseWriter, r *http.Request) {
	pc, ok := current(w, r)
	if !ok {
		return
	}
	if err := pc.OnCartEmptied(r.Context()); err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "could not update session", nil)
		return
	}
	common.Data(w, http.StatusOK, view(pc))
}
