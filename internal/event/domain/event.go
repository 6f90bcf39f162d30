package domain

import (
	"time"

	"github.com/google/uuid"
)

// Nombres de los servicios registrados de la ciudad.
const (
	ServiceHealth    = "health"
	ServiceEnergy    = "energy"
	ServiceTransport = "transport"
	ServiceSecurity  = "security"
)

// Event es el registro durable de un evento ingerido o derivado.
// Un evento con SourceEventID != nil es derivado y nunca lleva
// NormalizedPayload propio.
type Event struct {
	ID                uuid.UUID              `json:"id"`
	Service           string                 `json:"service"`
	Timestamp         time.Time              `json:"timestamp"`
	Payload           map[string]interface{} `json:"payload"`
	NormalizedPayload map[string]interface{} `json:"normalized_payload,omitempty"`
	SourceEventID     *uuid.UUID             `json:"source_event_id,omitempty"`
	DeduplicationKey  *string                `json:"deduplication_key,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

// IsDerived indica si el evento fue sintetizado por una regla.
func (e *Event) IsDerived() bool {
	return e.SourceEventID != nil
}

// NormalizedEvent es la salida efímera del normalizador; se consume en el
// mismo request y nunca se persiste como registro propio.
type NormalizedEvent struct {
	Service           string
	Timestamp         time.Time
	RawPayload        map[string]interface{}
	NormalizedPayload map[string]interface{}
}

// DerivedEventSpec describe, de forma declarativa, un evento que una regla
// quiere crear. El orquestador es el único responsable de convertir specs en
// eventos persistidos y entradas de outbox.
type DerivedEventSpec struct {
	Service          string
	Payload          map[string]interface{}
	DeduplicationKey string // vacío si la regla no aporta clave
}
