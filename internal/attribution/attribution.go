package attribution

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/pricing"
)

var (
	// ErrIncompleteAttribution rejects a snapshot with a missing required field.
	ErrIncompleteAttribution = errors.New("incomplete attribution")
	// ErrProductMismatch is returned when the active link targets another product than the line.
	ErrProductMismatch = errors.New("active affiliate link targets a different product")
	// ErrAlreadyAttributed is returned when the line already carries an attribution.
	ErrAlreadyAttributed = errors.New("order line already attributed")
)

// Attribution is the frozen affiliate snapshot owned by one order line.
type Attribution struct {
	LineID                  string          `json:"lineId"`
	OrderID                 string          `json:"orderId"`
	ProductID               string          `json:"productId"`
	ProductName             string          `json:"productName"`
	Quantity                int             `json:"quantity"`
	ResellerID              string          `json:"resellerId"`
	Token                   string          `json:"token"`
	ProfitOnLink            pricing.Money   `json:"profitOnLink"`
	ResellerDiscountPercent decimal.Decimal `json:"resellerDiscountPercent"`
	DiscountedBasePrice     pricing.Money   `json:"discountedBasePrice"`
	AdjustedProfit          pricing.Money   `json:"adjustedProfitForReseller"`
	CustomerFinalPrice      pricing.Money   `json:"customerFinalPrice"`
	OrderCreatedAt          time.Time       `json:"orderCreatedAt"`
	CreatedAt               time.Time       `json:"createdAt"`
}

// Validate reports ErrIncompleteAttribution naming the first missing field.
func (a Attribution) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s is required", ErrIncompleteAttribution, field)
	}
	switch {
	case strings.TrimSpace(a.LineID) == "":
		return missing("line id")
	case strings.TrimSpace(a.OrderID) == "":
		return missing("order id")
	case strings.TrimSpace(a.ProductID) == "":
		return missing("product id")
	case a.Quantity <= 0:
		return missing("quantity")
	case strings.TrimSpace(a.ResellerID) == "":
		return missing("reseller id")
	case strings.TrimSpace(a.Token) == "":
		return missing("token")
	case a.OrderCreatedAt.IsZero():
		return missing("order created at")
	}
	return nil
}

// Commission is the line's reseller commission.
func (a Attribution) Commission() pricing.Money {
	return a.AdjustedProfit.Mul(decimal.NewFromInt(int64(a.Quantity)))
}
