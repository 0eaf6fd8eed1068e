package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/db"
)

const productColumns = `id::text, name, slug, regular_price::text, purchasable, admin_discount_percent::text, updated_at`

// PGStore reads products from Postgres.
type PGStore struct {
	DB db.DBTX
}

// Lookup implements Reader.
func (s *PGStore) Lookup(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.DB == nil {
		return Product{}, errors.New("catalog store not configured")
	}
	if _, err := uuid.Parse(productID); err != nil {
		return Product{}, ErrProductNotFound
	}
	row := s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	return scanProduct(row)
}

// SetAdminDiscount stores or clears the admin discount for a product.
func (s *PGStore) SetAdminDiscount(ctx context.Context, productID string, percent decimal.NullDecimal) (Product, error) {
	if s == nil || s.DB == nil {
		return Product{}, errors.New("catalog store not configured")
	}
	if _, err := uuid.Parse(productID); err != nil {
		return Product{}, ErrProductNotFound
	}
	var arg any
	if percent.Valid {
		arg = percent.Decimal.String()
	}
	row := s.DB.QueryRow(ctx, `UPDATE products SET admin_discount_percent = $2::numeric, updated_at = now()
WHERE id = $1 RETURNING `+productColumns, productID, arg)
	return scanProduct(row)
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p        Product
		regular  *string
		discount *string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &regular, &p.Purchasable, &discount, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	var err error
	if p.RegularPrice, err = parseNullDecimal(regular); err != nil {
		return Product{}, fmt.Errorf("regular price: %w", err)
	}
	if p.AdminDiscountPercent, err = parseNullDecimal(discount); err != nil {
		return Product{}, fmt.Errorf("admin discount: %w", err)
	}
	return p, nil
}

func parseNullDecimal(v *string) (decimal.NullDecimal, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*v))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// MemoryStore keeps products in memory. It backs tests and local demos.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]Product
	Now      func() time.Time
}

// NewMemoryStore seeds a MemoryStore with the given products.
func NewMemoryStore(products ...Product) *MemoryStore {
	m := &MemoryStore{products: make(map[string]Product, len(products))}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// Put inserts or replaces a product.
func (m *MemoryStore) Put(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.products == nil {
		m.products = make(map[string]Product)
	}
	m.products[p.ID] = p
}

// Lookup implements Reader.
func (m *MemoryStore) Lookup(_ context.Context, productID string) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

// SetAdminDiscount implements Store.
func (m *MemoryStore) SetAdminDiscount(_ context.Context, productID string, percent decimal.NullDecimal) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	p.AdminDiscountPercent = percent
	if m.Now != nil {
		p.UpdatedAt = m.Now()
	} else {
		p.UpdatedAt = time.Now().UTC()
	}
	m.products[productID] = p
	return p, nil
}
