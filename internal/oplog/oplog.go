// Package oplog journals transaction lifecycle events. It is append-only and
// keeps the sink behind a small interface so tests can swap stores easily.
package oplog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event records one lifecycle transition of a tracked write.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	OperationID uuid.UUID `json:"operation_id"`
	Kind        string    `json:"kind"`
	Target      string    `json:"target"`
	Status      string    `json:"status"`
	Handle      string    `json:"handle,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// Store persists journal events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTarget(ctx context.Context, target string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher captures lifecycle events. Timestamps are filled in when the
// emitter leaves them zero.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) ListByTarget(ctx context.Context, target string) ([]Event, error) {
	return p.store.ListByTarget(ctx, target)
}

func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// MemoryStore is the in-process journal sink. Append order is preserved.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByTarget(_ context.Context, target string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0)
	for _, e := range s.events {
		if e.Target == target {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, limit)
	copy(out, s.events[len(s.events)-limit:])
	return out, nil
}
