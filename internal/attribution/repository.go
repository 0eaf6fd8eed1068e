package attribution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/db"
)

// Repository stores attributions. Records are insert-only.
type Repository interface {
	// Insert writes a validated attribution and returns ErrAlreadyAttributed if the line has one.
	Insert(ctx context.Context, a Attribution) (Attribution, error)
	ListByOrder(ctx context.Context, orderID string) ([]Attribution, error)
}

var columnList = []string{
	"line_id", "order_id", "product_id::text", "product_name", "quantity", "reseller_id::text", "token",
	"profit_on_link::text", "reseller_discount_percent::text", "discounted_base_price::text",
	"adjusted_profit::text", "customer_final_price::text", "order_created_at", "created_at",
}

var columns = Columns("")

// PGRepository persists attributions in order_line_attributions.
type PGRepository struct {
	DB db.DBTX
}

// WithTx returns a repository bound to tx so the insert commits with the order line.
func (r *PGRepository) WithTx(tx pgx.Tx) *PGRepository {
	return &PGRepository{DB: tx}
}

// Insert implements Repository.
func (r *PGRepository) Insert(ctx context.Context, a Attribution) (Attribution, error) {
	if r == nil || r.DB == nil {
		return Attribution{}, errors.New("attribution repository not configured")
	}
	if err := a.Validate(); err != nil {
		return Attribution{}, err
	}
	row := r.DB.QueryRow(ctx, `INSERT INTO order_line_attributions (line_id, order_id, product_id, product_name, quantity,
reseller_id, token, profit_on_link, reseller_discount_percent, discounted_base_price, adjusted_profit,
customer_final_price, order_created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12::numeric, $13)
ON CONFLICT (line_id) DO NOTHING
RETURNING `+columns,
		a.LineID, a.OrderID, a.ProductID, a.ProductName, a.Quantity, a.ResellerID, a.Token,
		a.ProfitOnLink.String(), a.ResellerDiscountPercent.String(), a.DiscountedBasePrice.String(),
		a.AdjustedProfit.String(), a.CustomerFinalPrice.String(), a.OrderCreatedAt)
	out, err := Scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attribution{}, ErrAlreadyAttributed
		}
		return Attribution{}, fmt.Errorf("insert attribution: %w", err)
	}
	return out, nil
}

// ListByOrder implements Repository.
func (r *PGRepository) ListByOrder(ctx context.Context, orderID string) ([]Attribution, error) {
	if r == nil || r.DB == nil {
		return nil, errors.New("attribution repository not configured")
	}
	rows, err := r.DB.Query(ctx, `SELECT `+columns+` FROM order_line_attributions WHERE order_id = $1 ORDER BY line_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list attributions: %w", err)
	}
	defer rows.Close()
	var out []Attribution
	for rows.Next() {
		a, err := Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Columns is the select list matching Scan, optionally qualified by a table alias.
func Columns(alias string) string {
	if alias == "" {
		return strings.Join(columnList, ", ")
	}
	qualified := make([]string, len(columnList))
	for i, c := range columnList {
		qualified[i] = alias + "." + c
	}
	return strings.Join(qualified, ", ")
}

// Scan reads one attribution row selected with Columns.
func Scan(row pgx.Row) (Attribution, error) {
	var (
		a                                     Attribution
		profit, pct, base, adjusted, customer string
	)
	if err := row.Scan(&a.LineID, &a.OrderID, &a.ProductID, &a.ProductName, &a.Quantity, &a.ResellerID, &a.Token,
		&profit, &pct, &base, &adjusted, &customer, &a.OrderCreatedAt, &a.CreatedAt); err != nil {
		return Attribution{}, err
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&a.ProfitOnLink, profit},
		{&a.ResellerDiscountPercent, pct},
		{&a.DiscountedBasePrice, base},
		{&a.AdjustedProfit, adjusted},
		{&a.CustomerFinalPrice, customer},
	} {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return Attribution{}, fmt.Errorf("parse attribution amount: %w", err)
		}
		*f.dst = v
	}
	return a, nil
}

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu     sync.RWMutex
	byLine map[string]Attribution
	Now    func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byLine: make(map[string]Attribution)}
}

// Insert implements Repository.
func (m *MemoryRepository) Insert(_ context.Context, a Attribution) (Attribution, error) {
	if err := a.Validate(); err != nil {
		return Attribution{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byLine == nil {
		m.byLine = make(map[string]Attribution)
	}
	if _, ok := m.byLine[a.LineID]; ok {
		return Attribution{}, ErrAlreadyAttributed
	}
	if m.Now != nil {
		a.CreatedAt = m.Now()
	} else {
		a.CreatedAt = time.Now().UTC()
	}
	m.byLine[a.LineID] = a
	return a, nil
}

// ListByOrder implements Repository.
func (m *MemoryRepository) ListByOrder(_ context.Context, orderID string) ([]Attribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attribution
	for _, a := range m.byLine {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineID < out[j].LineID })
	return out, nil
}

// All returns every stored attribution ordered by line id.
func (m *MemoryRepository) All() []Attribution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attribution, 0, len(m.byLine))
	for _, a := range m.byLine {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineID < out[j].LineID })
	return out
}
