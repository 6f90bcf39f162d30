package domain

import (
	"time"

	"github.com/google/uuid"
)

// Estados posibles de un mensaje de outbox. Las transiciones válidas son
// pending→sent y pending→failed; los estados terminales no cambian nunca.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxMessage representa una notificación pendiente de publicar en el
// canal externo. Lo crea la ingesta (misma transacción que los eventos) y
// solo lo muta el relay; nunca se borra.
type OutboxMessage struct {
	ID          uuid.UUID              `json:"id"`
	Topic       string                 `json:"topic"`
	Payload     map[string]interface{} `json:"payload"`
	Status      OutboxStatus           `json:"status"`
	Attempts    int                    `json:"attempts"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// TopicForService deriva el topic de notificación de un servicio.
func TopicForService(service string) string {
	return "event." + service
}
