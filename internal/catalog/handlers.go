package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/common"
)

// Handler exposes admin catalog pricing endpoints.
type Handler struct {
	Svc *Service
}

type adminDiscountRequest struct {
	AdminDiscountPercent json.RawMessage `json:"adminDiscountPercent"`
}

// SetAdminDiscount handles PUT /api/v1/admin/products/{productId}/admin-discount.
func (h *Handler) SetAdminDiscount(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	var req adminDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid payload", nil)
		return
	}
	percent, err := parseOptionalPercent(req.AdminDiscountPercent)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "adminDiscountPercent must be a number", nil)
		return
	}
	product, err := h.Svc.SetAdminDiscount(r.Context(), chi.URLParam(r, "productId"), percent)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, product)
}

// parseOptionalPercent accepts a JSON number, a numeric string, null, or an empty string.
func parseOptionalPercent(raw json.RawMessage) (decimal.NullDecimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" || text == `""` {
		return decimal.NullDecimal{}, nil
	}
	text = strings.TrimSpace(strings.Trim(text, `"`))
	if text == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "product not found", nil)
	case errors.Is(err, ErrInvalidDiscount):
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidation, err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
