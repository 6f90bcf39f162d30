package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
)

// MockOutboxRepository simula el repo de outbox con expectativas testify.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.OutboxMessage), args.Error(1)
}

func (m *MockOutboxRepository) UpdateBatch(ctx context.Context, msgs []domain.OutboxMessage) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

// MockPublisher simula la frontera de publicación con expectativas testify.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

// StubPublisher registra lo publicado; si Err está fijado, cada intento falla.
type StubPublisher struct {
	mu        sync.Mutex
	Err       error
	Published []PublishedNotification
}

type PublishedNotification struct {
	Topic   string
	Payload interface{}
}

func (s *StubPublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	s.Published = append(s.Published, PublishedNotification{Topic: topic, Payload: payload})
	return nil
}

// Verificación estática
var _ domain.OutboxRepository = (*MockOutboxRepository)(nil)
var _ domain.EventPublisher = (*MockPublisher)(nil)
var _ domain.EventPublisher = (*StubPublisher)(nil)
