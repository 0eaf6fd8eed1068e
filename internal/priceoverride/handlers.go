package priceoverride

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/catalog"
	"github.com/noah-isme/toko-affiliate/internal/common"
	"github.com/noah-isme/toko-affiliate/internal/session"
)

// Handler exposes storefront pricing endpoints backed by the catalog.
type Handler struct {
	Gateway Gateway
	Catalog catalog.Reader
}

type pricesRequest struct {
	ProductIDs []string `json:"productIds"`
}

type productPrice struct {
	ProductID    string              `json:"productId"`
	RegularPrice decimal.NullDecimal `json:"regularPrice"`
	SalePrice    decimal.NullDecimal `json:"salePrice"`
	Price        decimal.NullDecimal `json:"price"`
	Affiliated   bool                `json:"affiliated"`
}

type totalsRequest struct {
	Lines []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
}

func resolver(r *http.Request) Resolver {
	if pc, ok := session.FromContext(r.Context()); ok {
		return pc
	}
	return nil
}

// Prices handles POST /api/v1/storefront/prices.
func (h *Handler) Prices(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	var req pricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ProductIDs) == 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "productIds is required", nil)
		return
	}
	if len(req.ProductIDs) > common.MaxPerPage {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "too many products", nil)
		return
	}
	res := resolver(r)
	out := make([]productPrice, 0, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		product, err := h.Catalog.Lookup(r.Context(), id)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				continue
			}
			common.WriteError(w, err)
			return
		}
		_, affiliated := override(res, id)
		out = append(out, productPrice{
			ProductID:    id,
			RegularPrice: h.Gateway.OnPriceQuery(res, PriceQuery{ProductID: id, Kind: KindRegular, Price: product.RegularPrice}),
			SalePrice:    h.Gateway.OnPriceQuery(res, PriceQuery{ProductID: id, Kind: KindSale, Price: decimal.NullDecimal{}}),
			Price:        h.Gateway.OnPriceQuery(res, PriceQuery{ProductID: id, Kind: KindPrice, Price: product.RegularPrice}),
			Affiliated:   affiliated,
		})
	}
	common.Data(w, http.StatusOK, out)
}

// CartTotals handles POST /api/v1/storefront/cart/totals.
func (h *Handler) CartTotals(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	var req totalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid payload", nil)
		return
	}
	lines := make([]CartLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "quantity must be positive", map[string]any{"productId": l.ProductID})
			return
		}
		product, err := h.Catalog.Lookup(r.Context(), l.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "product not found", map[string]any{"productId": l.ProductID})
				return
			}
			common.WriteError(w, err)
			return
		}
		unit := decimal.Zero
		if product.RegularPrice.Valid {
			unit = product.RegularPrice.Decimal
		}
		lines = append(lines, CartLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: unit})
	}
	common.Data(w, http.StatusOK, h.Gateway.OnCartRecalculate(resolver(r), lines, req.Discount, req.Shipping))
}
