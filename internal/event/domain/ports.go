package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ---------- Errores de dominio ----------
var (
	ErrEventNotFound = errors.New("event not found")
)

// ---------- Interfaces (Ports) ----------

// EventRepository define las operaciones persistentes sobre eventos.
// SaveWithDerived es la pieza clave del patrón outbox transaccional: el
// evento base, sus derivados y sus mensajes de outbox se vuelven durables
// juntos, o ninguno.
type EventRepository interface {
	SaveWithDerived(ctx context.Context, base *Event, derived []*Event, msgs []OutboxMessage) error

	// Debe devolver ErrEventNotFound si no existe. Con claves repetidas
	// gana el evento más antiguo (first-arrival wins).
	FindByDedupKey(ctx context.Context, key string) (*Event, error)

	// ListBySource devuelve los derivados de un evento en orden de creación.
	ListBySource(ctx context.Context, sourceID uuid.UUID) ([]*Event, error)

	// List devuelve eventos ordenados por created_at descendente.
	List(ctx context.Context, limit, offset int) ([]*Event, error)
}

// OutboxRepository contiene solo lo que el relay necesita.
type OutboxRepository interface {
	// FetchPending devuelve hasta limit mensajes pendientes, FIFO por created_at.
	FetchPending(ctx context.Context, limit int) ([]OutboxMessage, error)

	// UpdateBatch persiste los cambios de estado de un lote completo en una
	// única transacción.
	UpdateBatch(ctx context.Context, msgs []OutboxMessage) error
}

// EventPublisher es la frontera de publicación; el transporte (Kafka, Redis,
// memoria) lo deciden los adapters.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// EventAnalytics recibe eventos ya confirmados para su registro analítico.
// Corre fuera de la transacción de ingesta: un fallo aquí nunca la afecta.
type EventAnalytics interface {
	LogEvents(ctx context.Context, events []*Event) error
}
