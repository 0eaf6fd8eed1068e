package affiliate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-affiliate/internal/db"
)

const linkColumns = `id, token, reseller_id::text, product_id::text, profit::text, reseller_discount_percent::text, created_at`

// PGStore persists links in the affiliate_links table.
type PGStore struct {
	DB db.DBTX
}

// Create implements Store.
func (s *PGStore) Create(ctx context.Context, link Link) (Link, error) {
	if s == nil || s.DB == nil {
		return Link{}, errors.New("link store not configured")
	}
	row := s.DB.QueryRow(ctx, `INSERT INTO affiliate_links (token, reseller_id, product_id, profit, reseller_discount_percent)
VALUES ($1, $2, $3, $4::numeric, $5::numeric)
RETURNING `+linkColumns,
		link.Token, link.ResellerID, link.ProductID, link.Profit.String(), link.ResellerDiscountPercent.String())
	created, err := scanLink(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Link{}, ErrDuplicateToken
		}
		return Link{}, fmt.Errorf("insert affiliate link: %w", err)
	}
	return created, nil
}

// FindByToken implements Store.
func (s *PGStore) FindByToken(ctx context.Context, token string) (Link, error) {
	if s == nil || s.DB == nil {
		return Link{}, errors.New("link store not configured")
	}
	link, err := scanLink(s.DB.QueryRow(ctx, `SELECT `+linkColumns+` FROM affiliate_links WHERE token = $1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, ErrLinkNotFound
	}
	return link, err
}

// ListByReseller implements Store.
func (s *PGStore) ListByReseller(ctx context.Context, resellerID string, limit, offset int) ([]Link, int, error) {
	if s == nil || s.DB == nil {
		return nil, 0, errors.New("link store not configured")
	}
	if _, err := uuid.Parse(resellerID); err != nil {
		return []Link{}, 0, nil
	}
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM affiliate_links WHERE reseller_id = $1`, resellerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count affiliate links: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT `+linkColumns+` FROM affiliate_links
WHERE reseller_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, resellerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list affiliate links: %w", err)
	}
	defer rows.Close()
	links := make([]Link, 0, limit)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, 0, err
		}
		links = append(links, link)
	}
	return links, total, rows.Err()
}

func scanLink(row pgx.Row) (Link, error) {
	var (
		l              Link
		profit, pctStr string
	)
	if err := row.Scan(&l.ID, &l.Token, &l.ResellerID, &l.ProductID, &profit, &pctStr, &l.CreatedAt); err != nil {
		return Link{}, err
	}
	var err error
	if l.Profit, err = decimal.NewFromString(profit); err != nil {
		return Link{}, fmt.Errorf("parse profit: %w", err)
	}
	if l.ResellerDiscountPercent, err = decimal.NewFromString(pctStr); err != nil {
		return Link{}, fmt.Errorf("parse discount percent: %w", err)
	}
	return l, nil
}
