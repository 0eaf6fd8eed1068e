package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-affiliate/internal/db"
)

// ErrResellerNotFound is returned when a reseller id has no directory entry.
var ErrResellerNotFound = errors.New("reseller not found")

// Reseller is the contact record used for commission notifications.
type Reseller struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Directory looks up resellers.
type Directory interface {
	Lookup(ctx context.Context, id string) (Reseller, error)
}

// PGDirectory reads the resellers table.
type PGDirectory struct {
	DB db.DBTX
}

// Lookup implements Directory.
func (d *PGDirectory) Lookup(ctx context.Context, id string) (Reseller, error) {
	if d == nil || d.DB == nil {
		return Reseller{}, errors.New("reseller directory not configured")
	}
	if _, err := uuid.Parse(id); err != nil {
		return Reseller{}, ErrResellerNotFound
	}
	var r Reseller
	err := d.DB.QueryRow(ctx, `SELECT id::text, name, email FROM resellers WHERE id = $1`, id).Scan(&r.ID, &r.Name, &r.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reseller{}, ErrResellerNotFound
		}
		return Reseller{}, fmt.Errorf("lookup reseller: %w", err)
	}
	return r, nil
}

// MemoryDirectory is an in-process Directory.
type MemoryDirectory struct {
	mu   sync.RWMutex
	byID map[string]Reseller
}

// NewMemoryDirectory returns a directory seeded with resellers.
func NewMemoryDirectory(resellers ...Reseller) *MemoryDirectory {
	d := &MemoryDirectory{byID: make(map[string]Reseller, len(resellers))}
	for _, r := range resellers {
		d.Put(r)
	}
	return d
}

// Put adds or replaces a reseller.
func (d *MemoryDirectory) Put(r Reseller) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.byID == nil {
		d.byID = make(map[string]Reseller)
	}
	d.byID[strings.TrimSpace(r.ID)] = r
}

// Lookup implements Directory.
func (d *MemoryDirectory) Lookup(_ context.Context, id string) (Reseller, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.byID[strings.TrimSpace(id)]
	if !ok {
		return Reseller{}, ErrResellerNotFound
	}
	return r, nil
}
