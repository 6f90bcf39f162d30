package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
)

// InMemoryEventRepo simula el store durable completo (eventos + outbox) para
// tests de aplicación. El orden de los slices es el orden de creación.
type InMemoryEventRepo struct {
	mu      sync.Mutex
	Events  []*domain.Event
	Outbox  []domain.OutboxMessage
	SaveErr error // si se fija, SaveWithDerived falla sin persistir nada
}

func NewInMemoryEventRepo() *InMemoryEventRepo {
	return &InMemoryEventRepo{}
}

func (r *InMemoryEventRepo) SaveWithDerived(_ context.Context, base *domain.Event, derived []*domain.Event, msgs []domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.SaveErr != nil {
		return r.SaveErr
	}

	r.Events = append(r.Events, base)
	r.Events = append(r.Events, derived...)
	r.Outbox = append(r.Outbox, msgs...)
	return nil
}

func (r *InMemoryEventRepo) FindByDedupKey(_ context.Context, key string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, evt := range r.Events {
		if evt.DeduplicationKey != nil && *evt.DeduplicationKey == key {
			return evt, nil
		}
	}
	return nil, domain.ErrEventNotFound
}

func (r *InMemoryEventRepo) ListBySource(_ context.Context, sourceID uuid.UUID) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var derived []*domain.Event
	for _, evt := range r.Events {
		if evt.SourceEventID != nil && *evt.SourceEventID == sourceID {
			derived = append(derived, evt)
		}
	}
	return derived, nil
}

func (r *InMemoryEventRepo) List(_ context.Context, limit, offset int) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Event
	for i := len(r.Events) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.Events[i])
	}
	return out, nil
}

func (r *InMemoryEventRepo) FetchPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var msgs []domain.OutboxMessage
	for _, msg := range r.Outbox {
		if msg.Status == domain.OutboxPending {
			msgs = append(msgs, msg)
			if len(msgs) == limit {
				break
			}
		}
	}
	return msgs, nil
}

func (r *InMemoryEventRepo) UpdateBatch(_ context.Context, msgs []domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, msg := range msgs {
		found := false
		for i := range r.Outbox {
			if r.Outbox[i].ID == msg.ID {
				r.Outbox[i] = msg
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no outbox message found with id %s", msg.ID)
		}
	}
	return nil
}

// Verificación estática
var _ domain.EventRepository = (*InMemoryEventRepo)(nil)
var _ domain.OutboxRepository = (*InMemoryEventRepo)(nil)
