package affiliate

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/catalog"
	"github.com/noah-isme/toko-affiliate/internal/common"
	"github.com/noah-isme/toko-affiliate/internal/pricing"
)

// Handler exposes reseller link endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type linkRequest struct {
	ProductID               string           `json:"productId" validate:"required,max=64"`
	AdditionalProfit        *decimal.Decimal `json:"additionalProfit" validate:"required"`
	ResellerDiscountPercent *decimal.Decimal `json:"resellerDiscountPercent" validate:"required"`
}

func (h *Handler) validate() *validator.Validate {
	if h.Validate == nil {
		h.Validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return h.Validate
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (linkRequest, bool) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLinkError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid payload")
		return req, false
	}
	if err := h.validate().Struct(req); err != nil {
		var verrs validator.ValidationErrors
		msg := "productId, additionalProfit and resellerDiscountPercent are required"
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = verrs[0].Field() + " is required"
		}
		writeLinkError(w, http.StatusBadRequest, common.CodeValidation, msg)
		return req, false
	}
	return req, true
}

// Create handles POST /api/v1/reseller/links.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		writeLinkError(w, http.StatusInternalServerError, common.CodeInternal, "link service not configured")
		return
	}
	principal, ok := common.PrincipalFrom(r.Context())
	if !ok {
		writeLinkError(w, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.GenerateLink(r.Context(), GenerateRequest{
		ResellerID:              principal.ID,
		ProductID:               req.ProductID,
		Profit:                  *req.AdditionalProfit,
		ResellerDiscountPercent: *req.ResellerDiscountPercent,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"url":   out.URL,
		"token": out.Token,
		"data":  out,
	})
}

// Preview handles POST /api/v1/reseller/links/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		writeLinkError(w, http.StatusInternalServerError, common.CodeInternal, "link service not configured")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	out, err := h.Svc.Preview(r.Context(), req.ProductID, *req.AdditionalProfit, *req.ResellerDiscountPercent)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

// List handles GET /api/v1/reseller/links.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "link service not configured", nil)
		return
	}
	principal, ok := common.PrincipalFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	links, p, err := h.Svc.ListLinks(r.Context(), principal.ID, page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Page(w, links, p)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var rangeErr *pricing.RangeError
	switch {
	case errors.As(err, &rangeErr):
		writeLinkError(w, http.StatusUnprocessableEntity, common.CodeValidation, capitalize(rangeErr.Error())+".")
	case errors.Is(err, ErrInvalidInput):
		writeLinkError(w, http.StatusBadRequest, common.CodeValidation, err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		writeLinkError(w, http.StatusNotFound, common.CodeNotFound, "Product not found.")
	case errors.Is(err, ErrProductNotPurchasable):
		writeLinkError(w, http.StatusUnprocessableEntity, "PRODUCT_NOT_PURCHASABLE", "This product is not currently purchasable or has no price defined.")
	case errors.Is(err, pricing.ErrNegativeFinalPrice):
		writeLinkError(w, http.StatusUnprocessableEntity, "NEGATIVE_FINAL_PRICE", "The customer final price cannot be negative. Please adjust the profit or discount.")
	case errors.Is(err, ErrTokenGenerationFailed):
		writeLinkError(w, http.StatusServiceUnavailable, common.CodeLinkGeneration, "Could not generate a unique link. Please try again.")
	default:
		writeLinkError(w, http.StatusInternalServerError, common.CodeLinkGeneration, "Could not save the affiliate link. Please try again.")
	}
}

// writeLinkError renders the canonical error body plus a flat errorMessage for link clients.
func writeLinkError(w http.ResponseWriter, status int, code, message string) {
	common.JSON(w, status, map[string]any{
		"error":        common.ErrorBody{Code: code, Message: message},
		"errorMessage": message,
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
