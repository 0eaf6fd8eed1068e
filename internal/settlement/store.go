package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/attribution"
	"github.com/noah-isme/toko-affiliate/internal/db"
	"github.com/noah-isme/toko-affiliate/internal/pricing"
)

// Record is the persisted per-reseller settlement of one order.
type Record struct {
	OrderID     string        `json:"orderId"`
	ResellerID  string        `json:"resellerId"`
	OrderNumber string        `json:"orderNumber"`
	Total       pricing.Money `json:"total"`
	LineCount   int           `json:"lineCount"`
	Notified    bool          `json:"notified"`
	SettledAt   time.Time     `json:"settledAt"`
}

// EarningLine is a settled attribution joined with its reseller contact.
type EarningLine struct {
	attribution.Attribution
	ResellerName  string `json:"resellerName"`
	ResellerEmail string `json:"resellerEmail"`
}

// Store persists settlements and lists settled lines.
type Store interface {
	// SaveSettlement inserts rec and reports false when the order was already settled for that reseller.
	SaveSettlement(ctx context.Context, rec Record) (bool, error)
	// SettledLines lists settled attributed lines, restricted to resellerID when it is not empty.
	SettledLines(ctx context.Context, resellerID string) ([]EarningLine, error)
}

// SortLines orders lines by order date desc, product name asc, then line id.
func SortLines(lines []EarningLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if !a.OrderCreatedAt.Equal(b.OrderCreatedAt) {
			return a.OrderCreatedAt.After(b.OrderCreatedAt)
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		return a.LineID < b.LineID
	})
}

// PGStore persists settlements in commission_settlements.
type PGStore struct {
	DB db.DBTX
}

// SaveSettlement implements Store.
func (s *PGStore) SaveSettlement(ctx context.Context, rec Record) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("settlement store not configured")
	}
	tag, err := s.DB.Exec(ctx, `INSERT INTO commission_settlements (order_id, reseller_id, order_number, total, line_count, notified, settled_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
ON CONFLICT (order_id, reseller_id) DO NOTHING`,
		rec.OrderID, rec.ResellerID, rec.OrderNumber, rec.Total.String(), rec.LineCount, rec.Notified, rec.SettledAt)
	if err != nil {
		return false, fmt.Errorf("save settlement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SettledLines implements Store.
func (s *PGStore) SettledLines(ctx context.Context, resellerID string) ([]EarningLine, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("settlement store not configured")
	}
	query := `SELECT ` + attribution.Columns("a") + `, COALESCE(r.name, ''), COALESCE(r.email, '')
FROM order_line_attributions a
JOIN commission_settlements cs ON cs.order_id = a.order_id AND cs.reseller_id = a.reseller_id
LEFT JOIN resellers r ON r.id = a.reseller_id
WHERE ($1 = '' OR a.reseller_id::text = $1)
ORDER BY a.order_created_at DESC, a.product_name ASC, a.line_id ASC`
	rows, err := s.DB.Query(ctx, query, resellerID)
	if err != nil {
		return nil, fmt.Errorf("list settled lines: %w", err)
	}
	defer rows.Close()
	var out []EarningLine
	for rows.Next() {
		var (
			line        EarningLine
			name, email string
		)
		a, err := attribution.Scan(rowWithTail{row: rows, tail: []any{&name, &email}})
		if err != nil {
			return nil, err
		}
		line.Attribution = a
		line.ResellerName = name
		line.ResellerEmail = email
		out = append(out, line)
	}
	return out, rows.Err()
}

// rowWithTail appends extra scan targets after the attribution columns.
type rowWithTail struct {
	row  interface{ Scan(dest ...any) error }
	tail []any
}

func (r rowWithTail) Scan(dest ...any) error {
	return r.row.Scan(append(dest, r.tail...)...)
}

// MemoryStore is an in-process Store backed by a memory attribution repository.
type MemoryStore struct {
	Attributions *attribution.MemoryRepository
	Resellers    Directory

	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(attrs *attribution.MemoryRepository, dir Directory) *MemoryStore {
	return &MemoryStore{Attributions: attrs, Resellers: dir, records: make(map[string]Record)}
}

func recordKey(orderID, resellerID string) string { return orderID + "|" + resellerID }

// SaveSettlement implements Store.
func (m *MemoryStore) SaveSettlement(_ context.Context, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]Record)
	}
	key := recordKey(rec.OrderID, rec.ResellerID)
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	m.records[key] = rec
	return true, nil
}

// Records returns the stored settlements of an order.
func (m *MemoryStore) Records(orderID string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.records {
		if rec.OrderID == orderID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResellerID < out[j].ResellerID })
	return out
}

// SettledLines implements Store.
func (m *MemoryStore) SettledLines(ctx context.Context, resellerID string) ([]EarningLine, error) {
	if m.Attributions == nil {
		return nil, nil
	}
	m.mu.RLock()
	settled := make(map[string]bool, len(m.records))
	for key := range m.records {
		settled[key] = true
	}
	m.mu.RUnlock()

	var out []EarningLine
	for _, a := range m.Attributions.All() {
		if resellerID != "" && a.ResellerID != resellerID {
			continue
		}
		if !settled[recordKey(a.OrderID, a.ResellerID)] {
			continue
		}
		line := EarningLine{Attribution: a}
		if m.Resellers != nil {
			if r, err := m.Resellers.Lookup(ctx, a.ResellerID); err == nil {
				line.ResellerName = r.Name
				line.ResellerEmail = r.Email
			}
		}
		out = append(out, line)
	}
	SortLines(out)
	return out, nil
}

func sum(values []pricing.Money) pricing.Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
