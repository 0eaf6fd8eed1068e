package affiliate

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byToken map[string]Link
	Now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byToken: make(map[string]Link)}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, link Link) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byToken == nil {
		m.byToken = make(map[string]Link)
	}
	if _, exists := m.byToken[link.Token]; exists {
		return Link{}, ErrDuplicateToken
	}
	m.nextID++
	link.ID = m.nextID
	if m.Now != nil {
		link.CreatedAt = m.Now()
	} else {
		link.CreatedAt = time.Now().UTC()
	}
	m.byToken[link.Token] = link
	return link, nil
}

// FindByToken implements Store.
func (m *MemoryStore) FindByToken(_ context.Context, token string) (Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.byToken[token]
	if !ok {
		return Link{}, ErrLinkNotFound
	}
	return link, nil
}

// ListByReseller implements Store.
func (m *MemoryStore) ListByReseller(_ context.Context, resellerID string, limit, offset int) ([]Link, int, error) {
	m.mu.RLock()
	var all []Link
	for _, link := range m.byToken {
		if link.ResellerID == resellerID {
			all = append(all, link)
		}
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	if offset >= total {
		return []Link{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}
