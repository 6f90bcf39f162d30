package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
)

// Notification es lo que ve un suscriptor del bus en memoria.
type Notification struct {
	Topic   string
	Payload []byte
}

// InMemoryBus implementa la frontera de publicación con canales de Go, para
// despliegues locales y tests. Los suscriptores lentos pierden mensajes
// (entrega best-effort, igual que un broker sin consumidor).
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Notification
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[string][]chan Notification),
	}
}

// Publish entrega la notificación a los suscriptores del topic sin bloquear.
func (b *InMemoryBus) Publish(_ context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, subChan := range b.subscribers[topic] {
		select {
		case subChan <- Notification{Topic: topic, Payload: data}:
		default:
		}
	}
	return nil
}

// Subscribe registra un nuevo oyente para un topic.
func (b *InMemoryBus) Subscribe(topic string, bufferSize int) <-chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	subChan := make(chan Notification, bufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], subChan)
	return subChan
}

// Verificación estática
var _ domain.EventPublisher = (*InMemoryBus)(nil)
