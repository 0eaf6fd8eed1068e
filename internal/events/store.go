package events

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/toko-affiliate/internal/db"
)

// PGStore writes events to the domain_events table.
type PGStore struct {
	DB db.DBTX
}

// InsertDomainEvent implements EventStore.
func (s *PGStore) InsertDomainEvent(ctx context.Context, ev Event) (Event, error) {
	if s == nil || s.DB == nil {
		return Event{}, errors.New("event store not configured")
	}
	err := s.DB.QueryRow(ctx, `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5) RETURNING occurred_at`,
		ev.ID.String(), ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt).Scan(&ev.OccurredAt)
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// MemoryStore keeps events in memory.
type MemoryStore struct {
	mu     sync.Mutex
	Events []Event
}

// InsertDomainEvent implements EventStore.
func (m *MemoryStore) InsertDomainEvent(_ context.Context, ev Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return ev, nil
}

// ByTopic returns the recorded events for topic.
func (m *MemoryStore) ByTopic(topic string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.Events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}
