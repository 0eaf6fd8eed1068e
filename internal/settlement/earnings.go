package settlement

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/cache"
	"github.com/noah-isme/toko-affiliate/internal/pricing"
)

// ResellerRow is one settled sale on a reseller's dashboard.
type ResellerRow struct {
	OrderID     string        `json:"orderId"`
	OrderDate   time.Time     `json:"orderDate"`
	ProductName string        `json:"productName"`
	Quantity    int           `json:"quantity"`
	Commission  pricing.Money `json:"commission"`
}

// ResellerEarnings is the reseller dashboard listing.
type ResellerEarnings struct {
	Rows  []ResellerRow `json:"rows"`
	Total pricing.Money `json:"total"`
}

// AdminRow is one settled attributed line in the admin report.
type AdminRow struct {
	OrderID                 string          `json:"orderId"`
	OrderDate               time.Time       `json:"orderDate"`
	ResellerID              string          `json:"resellerId"`
	ResellerName            string          `json:"resellerName"`
	ResellerEmail           string          `json:"resellerEmail"`
	ProductID               string          `json:"productId"`
	ProductName             string          `json:"productName"`
	Quantity                int             `json:"quantity"`
	DiscountedBasePrice     pricing.Money   `json:"discountedBasePrice"`
	ProfitOnLink            pricing.Money   `json:"profitOnLink"`
	ResellerDiscountPercent decimal.Decimal `json:"resellerDiscountPercent"`
	NetProfitPerItem        pricing.Money   `json:"netProfitPerItem"`
	NetProfitPerLine        pricing.Money   `json:"netProfitPerLine"`
	CustomerPaidPerItem     pricing.Money   `json:"customerPaidPerItem"`
	Token                   string          `json:"token"`
}

// AdminReport is the admin earnings listing with its grand total.
type AdminReport struct {
	Rows  []AdminRow    `json:"rows"`
	Total pricing.Money `json:"total"`
}

// JSONCache is the cache used for reseller listings.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
}

// Earnings serves settled commission listings.
type Earnings struct {
	Store  Store
	Cache  JSONCache
	Calc   pricing.Calculator
	Logger zerolog.Logger
}

// ForReseller returns a reseller's settled sales, newest order first.
func (e *Earnings) ForReseller(ctx context.Context, resellerID string) (ResellerEarnings, error) {
	if e == nil || e.Store == nil {
		return ResellerEarnings{}, errors.New("earnings service not configured")
	}
	resellerID = strings.TrimSpace(resellerID)
	if resellerID == "" {
		return ResellerEarnings{}, ErrResellerNotFound
	}
	key := cache.KeyResellerEarnings(resellerID)
	if e.Cache != nil {
		var cached ResellerEarnings
		hit, err := e.Cache.GetJSON(ctx, key, &cached)
		if err != nil {
			e.Logger.Warn().Err(err).Str("reseller_id", resellerID).Msg("earnings cache read failed")
		} else if hit {
			return cached, nil
		}
	}
	lines, err := e.Store.SettledLines(ctx, resellerID)
	if err != nil {
		return ResellerEarnings{}, err
	}
	SortLines(lines)
	out := ResellerEarnings{Rows: make([]ResellerRow, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		commission := l.Commission()
		out.Rows = append(out.Rows, ResellerRow{
			OrderID:     l.OrderID,
			OrderDate:   l.OrderCreatedAt,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			Commission:  commission,
		})
		out.Total = out.Total.Add(commission)
	}
	if e.Cache != nil {
		if err := e.Cache.SetJSON(ctx, key, out); err != nil {
			e.Logger.Warn().Err(err).Str("reseller_id", resellerID).Msg("earnings cache write failed")
		}
	}
	return out, nil
}

// Admin returns every settled attributed line across resellers.
func (e *Earnings) Admin(ctx context.Context) (AdminReport, error) {
	if e == nil || e.Store == nil {
		return AdminReport{}, errors.New("earnings service not configured")
	}
	lines, err := e.Store.SettledLines(ctx, "")
	if err != nil {
		return AdminReport{}, err
	}
	SortLines(lines)
	out := AdminReport{Rows: make([]AdminRow, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		perLine := l.Commission()
		out.Rows = append(out.Rows, AdminRow{
			OrderID:                 l.OrderID,
			OrderDate:               l.OrderCreatedAt,
			ResellerID:              l.ResellerID,
			ResellerName:            l.ResellerName,
			ResellerEmail:           l.ResellerEmail,
			ProductID:               l.ProductID,
			ProductName:             l.ProductName,
			Quantity:                l.Quantity,
			DiscountedBasePrice:     l.DiscountedBasePrice,
			ProfitOnLink:            l.ProfitOnLink,
			ResellerDiscountPercent: l.ResellerDiscountPercent,
			NetProfitPerItem:        l.AdjustedProfit,
			NetProfitPerLine:        perLine,
			CustomerPaidPerItem:     e.Calc.CustomerPaid(l.DiscountedBasePrice, l.ProfitOnLink, l.ResellerDiscountPercent),
			Token:                   l.Token,
		})
		out.Total = out.Total.Add(perLine)
	}
	return out, nil
}

var csvHeader = []string{
	"Order ID", "Order Date", "Reseller ID", "Reseller Name", "Reseller Email", "Product ID", "Product Name",
	"Quantity", "Discounted Base Price", "Profit On Link", "Reseller Discount %", "Net Profit Per Item",
	"Net Profit Per Line", "Customer Paid Per Item", "Token",
}

// WriteCSV renders the report with a trailing grand total row.
func WriteCSV(w io.Writer, report AdminReport, places int32) error {
	if places < 0 {
		places = pricing.DefaultMinorUnits
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range report.Rows {
		record := []string{
			row.OrderID,
			row.OrderDate.UTC().Format(time.RFC3339),
			row.ResellerID,
			row.ResellerName,
			row.ResellerEmail,
			row.ProductID,
			row.ProductName,
			strconv.Itoa(row.Quantity),
			row.DiscountedBasePrice.StringFixed(places),
			row.ProfitOnLink.StringFixed(places),
			row.ResellerDiscountPercent.String(),
			row.NetProfitPerItem.StringFixed(places),
			row.NetProfitPerLine.StringFixed(places),
			row.CustomerPaidPerItem.StringFixed(places),
			row.Token,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	total := make([]string, len(csvHeader))
	total[0] = "Grand Total"
	total[12] = report.Total.StringFixed(places)
	if err := cw.Write(total); err != nil {
		return fmt.Errorf("write csv total: %w", err)
	}
	cw.Flush()
	return cw.Error()
}
