package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/attribution"
	"github.com/noah-isme/toko-affiliate/internal/cache"
	"github.com/noah-isme/toko-affiliate/internal/events"
	"github.com/noah-isme/toko-affiliate/internal/lock"
	"github.com/noah-isme/toko-affiliate/internal/obs"
	"github.com/noah-isme/toko-affiliate/internal/pricing"
)

var (
	// ErrSettlementInProgress is returned while another worker settles the same order.
	ErrSettlementInProgress = errors.New("settlement already in progress")
	// ErrInvalidOrder rejects a completion event without an order id.
	ErrInvalidOrder = errors.New("invalid order")
)

// Order is the completed order handed over by the order system.
type Order struct {
	ID        string      `json:"id"`
	Number    string      `json:"number"`
	CreatedAt time.Time   `json:"createdAt"`
	Lines     []OrderLine `json:"lines"`
}

// OrderLine is one line of a completed order.
type OrderLine struct {
	ID          string `json:"id"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

// Line is an attributed line with its commission.
type Line struct {
	LineID         string        `json:"lineId"`
	ProductID      string        `json:"productId"`
	ProductName    string        `json:"productName"`
	Quantity       int           `json:"quantity"`
	AdjustedProfit pricing.Money `json:"adjustedProfitForReseller"`
	Commission     pricing.Money `json:"commission"`
}

// ResellerSummary aggregates one reseller's lines on an order.
type ResellerSummary struct {
	ResellerID string        `json:"resellerId"`
	Name       string        `json:"name,omitempty"`
	Email      string        `json:"email,omitempty"`
	Known      bool          `json:"known"`
	Lines      []Line        `json:"lines"`
	Total      pricing.Money `json:"total"`
	Notified   bool          `json:"notified"`
	Settled    bool          `json:"settled"`
}

// Report is the admin-facing summary of an order settlement.
type Report struct {
	OrderID        string            `json:"orderId"`
	OrderNumber    string            `json:"orderNumber"`
	Resellers      []ResellerSummary `json:"resellers"`
	Total          pricing.Money     `json:"total"`
	AlreadySettled bool              `json:"alreadySettled"`
}

// Locker guards one settlement per order.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes settlement events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Invalidator drops cached listings.
type Invalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

// Reporter settles completed orders.
type Reporter struct {
	Attributions  attribution.Repository
	Store         Store
	Resellers     Directory
	Locker        Locker
	LockTTL       time.Duration
	Bus           Emitter
	Cache         Invalidator
	OnZeroEarning bool
	AdminEmail    string
	Currency      string
	MinorUnits    int32
	Logger        zerolog.Logger
	Now           func() time.Time
}

func (r *Reporter) places() int32 {
	if r.MinorUnits < 0 {
		return pricing.DefaultMinorUnits
	}
	return r.MinorUnits
}

func (r *Reporter) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// OnOrderCompleted aggregates attributed commissions per reseller, persists
// them and emits the reseller and admin notifications. Replays of an already
// settled order return the report without notifying again.
func (r *Reporter) OnOrderCompleted(ctx context.Context, order Order) (Report, error) {
	if r == nil || r.Attributions == nil || r.Store == nil {
		return Report{}, errors.New("settlement reporter not configured")
	}
	order.ID = strings.TrimSpace(order.ID)
	if order.ID == "" {
		return Report{}, fmt.Errorf("%w: order id is required", ErrInvalidOrder)
	}
	if order.Number == "" {
		order.Number = order.ID
	}

	var report Report
	run := func(ctx context.Context) error {
		var err error
		report, err = r.settle(ctx, order)
		return err
	}
	if r.Locker == nil {
		err := run(ctx)
		return report, err
	}
	ttl := r.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if err := r.Locker.TryWithLock(ctx, order.ID, ttl, run); err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			obs.RecordSettlement("in_progress")
			return Report{}, ErrSettlementInProgress
		}
		return Report{}, err
	}
	return report, nil
}

func (r *Reporter) settle(ctx context.Context, order Order) (Report, error) {
	attrs, err := r.Attributions.ListByOrder(ctx, order.ID)
	if err != nil {
		obs.RecordSettlement("error")
		return Report{}, fmt.Errorf("load attributions: %w", err)
	}
	report := Report{OrderID: order.ID, OrderNumber: order.Number, Total: decimal.Zero}
	groups := r.group(order, attrs)
	if len(groups) == 0 {
		obs.RecordSettlement("no_affiliate_lines")
		return report, nil
	}

	settledAt := r.now()
	newlySettled := false
	for i := range groups {
		summary := &groups[i]
		r.lookupReseller(ctx, summary)
		summary.Notified = summary.Known && (summary.Total.IsPositive() || r.OnZeroEarning)

		inserted, err := r.Store.SaveSettlement(ctx, Record{
			OrderID:     order.ID,
			ResellerID:  summary.ResellerID,
			OrderNumber: order.Number,
			Total:       summary.Total,
			LineCount:   len(summary.Lines),
			Notified:    summary.Notified,
			SettledAt:   settledAt,
		})
		if err != nil {
			r.Logger.Error().Err(err).Str("order_id", order.ID).Str("reseller_id", summary.ResellerID).Msg("persist settlement failed")
			obs.RecordSettlement("persist_error")
			inserted = true
		}
		summary.Settled = inserted
		if !inserted {
			summary.Notified = false
			continue
		}
		newlySettled = true
		amount, _ := summary.Total.Float64()
		obs.AddCommission(amount)
		if r.Cache != nil {
			if err := r.Cache.Delete(ctx, cache.KeyResellerEarnings(summary.ResellerID)); err != nil {
				r.Logger.Warn().Err(err).Str("reseller_id", summary.ResellerID).Msg("invalidate earnings cache failed")
			}
		}
		if summary.Notified {
			r.emit(ctx, events.TopicCommissionEarned, order, summary.Email, *summary, []ResellerSummary{*summary})
		}
	}
	report.Resellers = groups
	report.Total = groupTotal(groups)
	if !newlySettled {
		report.AlreadySettled = true
		obs.RecordSettlement("replayed")
		return report, nil
	}
	if r.AdminEmail != "" {
		r.emit(ctx, events.TopicAffiliateSale, order, r.AdminEmail, ResellerSummary{}, groups)
	}
	obs.RecordSettlement("settled")
	r.Logger.Info().Str("order_id", order.ID).Int("resellers", len(groups)).Str("total", report.Total.String()).Msg("order settled")
	return report, nil
}

// group builds per-reseller summaries sorted by reseller id with lines in line id order.
func (r *Reporter) group(order Order, attrs []attribution.Attribution) []ResellerSummary {
	byLine := make(map[string]attribution.Attribution, len(attrs))
	for _, a := range attrs {
		byLine[a.LineID] = a
	}
	type lineRef struct {
		attr attribution.Attribution
		name string
	}
	var refs []lineRef
	if len(order.Lines) == 0 {
		for _, a := range attrs {
			refs = append(refs, lineRef{attr: a, name: a.ProductName})
		}
	} else {
		for _, l := range order.Lines {
			a, ok := byLine[l.ID]
			if !ok {
				continue
			}
			if l.Quantity > 0 && l.Quantity != a.Quantity {
				r.Logger.Warn().Str("order_id", order.ID).Str("line_id", l.ID).
					Int("order_quantity", l.Quantity).Int("attributed_quantity", a.Quantity).
					Msg("order line quantity differs from attribution")
			}
			name := l.ProductName
			if name == "" {
				name = a.ProductName
			}
			refs = append(refs, lineRef{attr: a, name: name})
		}
	}

	index := make(map[string]int)
	var groups []ResellerSummary
	for _, ref := range refs {
		i, ok := index[ref.attr.ResellerID]
		if !ok {
			i = len(groups)
			index[ref.attr.ResellerID] = i
			groups = append(groups, ResellerSummary{ResellerID: ref.attr.ResellerID, Total: decimal.Zero})
		}
		// Same snapshot formula as the earnings listings.
		commission := ref.attr.Commission()
		groups[i].Lines = append(groups[i].Lines, Line{
			LineID:         ref.attr.LineID,
			ProductID:      ref.attr.ProductID,
			ProductName:    ref.name,
			Quantity:       ref.attr.Quantity,
			AdjustedProfit: ref.attr.AdjustedProfit,
			Commission:     commission,
		})
		groups[i].Total = groups[i].Total.Add(commission)
	}
	for i := range groups {
		sort.Slice(groups[i].Lines, func(a, b int) bool { return groups[i].Lines[a].LineID < groups[i].Lines[b].LineID })
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].ResellerID < groups[b].ResellerID })
	return groups
}

func (r *Reporter) lookupReseller(ctx context.Context, summary *ResellerSummary) {
	if r.Resellers == nil {
		return
	}
	reseller, err := r.Resellers.Lookup(ctx, summary.ResellerID)
	if err != nil {
		if !errors.Is(err, ErrResellerNotFound) {
			r.Logger.Warn().Err(err).Str("reseller_id", summary.ResellerID).Msg("reseller lookup failed")
		}
		return
	}
	summary.Known = true
	summary.Name = reseller.Name
	summary.Email = reseller.Email
}

func (r *Reporter) emit(ctx context.Context, topic string, order Order, to string, reseller ResellerSummary, groups []ResellerSummary) {
	if r.Bus == nil {
		return
	}
	payload := events.CommissionPayload{
		Email:        to,
		ResellerID:   reseller.ResellerID,
		ResellerName: reseller.Name,
		OrderID:      order.ID,
		OrderNumber:  order.Number,
		OrderDate:    order.CreatedAt,
		Currency:     r.Currency,
	}
	for _, g := range groups {
		for _, l := range g.Lines {
			line := events.CommissionLine{
				LineID:         l.LineID,
				ProductName:    l.ProductName,
				Quantity:       l.Quantity,
				AdjustedProfit: l.AdjustedProfit.StringFixed(r.places()),
				Commission:     l.Commission.StringFixed(r.places()),
			}
			if topic == events.TopicAffiliateSale {
				line.ResellerID = g.ResellerID
				line.ResellerName = g.Name
			}
			payload.Lines = append(payload.Lines, line)
		}
	}
	payload.Total = groupTotal(groups).StringFixed(r.places())
	if _, err := r.Bus.Emit(ctx, topic, order.ID, payload); err != nil {
		r.Logger.Error().Err(err).Str("order_id", order.ID).Str("topic", topic).Msg("emit settlement event failed")
	}
}

func groupTotal(groups []ResellerSummary) pricing.Money {
	totals := make([]pricing.Money, len(groups))
	for i, g := range groups {
		totals[i] = g.Total
	}
	return sum(totals)
}
