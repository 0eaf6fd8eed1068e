package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/toko-affiliate/internal/db"
)

// PGStore persists audit entries in admin_audit_logs.
type PGStore struct {
	DB db.DBTX
}

// Insert implements Store.
func (s *PGStore) Insert(ctx context.Context, e Entry) error {
	const q = `
		INSERT INTO admin_audit_logs (actor_kind, actor_id, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	if _, err := s.DB.Exec(ctx, q, e.ActorKind, e.ActorID, e.Action, e.ResourceType, e.ResourceID,
		e.Method, e.Path, e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, metadata); err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// List implements Store, newest first.
func (s *PGStore) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM admin_audit_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count: %w", err)
	}
	rows, err := s.DB.Query(ctx, `
		SELECT id, actor_kind, actor_id, action, resource_type, resource_id, method, path, route, status,
		       ip, user_agent, request_id, metadata, created_at
		FROM admin_audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Method, &e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &metadata, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("audit: scan: %w", err)
		}
		e.Metadata = metadata
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// MemoryStore keeps entries in process for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	Now     func() time.Time
}

// Insert implements Store.
func (m *MemoryStore) Insert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	if m.Now != nil {
		e.CreatedAt = m.Now()
	} else {
		e.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, e)
	return nil
}

// List implements Store, newest first.
func (m *MemoryStore) List(_ context.Context, limit, offset int) ([]Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := len(m.entries)
	out := make([]Entry, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, total, nil
}
