package domain

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
)

// Normalizer convierte un payload crudo en un NormalizedEvent. Nunca falla:
// si el payload no encaja con el esquema del servicio, degrada al payload
// crudo tal cual (los evaluadores de reglas leen campos de forma defensiva).
type Normalizer interface {
	Normalize(raw map[string]interface{}) NormalizedEvent
}

// ---------------- Esquemas por servicio ----------------
// Los esquemas son permisivos: solo tipan los campos conocidos, los campos
// extra del payload se conservan en la salida normalizada.

type HealthPayload struct {
	PatientID *int64  `json:"patient_id,omitempty" validate:"omitempty,gte=0"`
	Alert     *string `json:"alert,omitempty"`
	Location  *string `json:"location,omitempty"`
}

type EnergyPayload struct {
	Energy       *float64 `json:"energy,omitempty" validate:"omitempty,gte=0"`
	Neighborhood *string  `json:"neighborhood,omitempty"`
}

type TransportPayload struct {
	BusID *int64   `json:"bus_id,omitempty" validate:"omitempty,gte=0"`
	Lat   *float64 `json:"lat,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Lon   *float64 `json:"lon,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

type SecurityPayload struct {
	Alert         *bool   `json:"alert,omitempty"`
	CameraTrigger *string `json:"camera_trigger,omitempty"`
}

// ---------------- Normalizador con esquema ----------------

// SchemaNormalizer valida el payload contra el esquema del servicio vía un
// round-trip JSON. Un desajuste de forma (tipo incorrecto, restricción
// violada) no es un error: se devuelve el payload crudo sin tocar.
type SchemaNormalizer struct {
	service   string
	newSchema func() interface{}
	validate  *validator.Validate
}

func NewSchemaNormalizer(service string, newSchema func() interface{}, validate *validator.Validate) *SchemaNormalizer {
	return &SchemaNormalizer{service: service, newSchema: newSchema, validate: validate}
}

func (n *SchemaNormalizer) Normalize(raw map[string]interface{}) NormalizedEvent {
	return NormalizedEvent{
		Service:           n.service,
		Timestamp:         time.Now().UTC(),
		RawPayload:        raw,
		NormalizedPayload: n.conform(raw),
	}
}

// conform devuelve una copia del payload con los campos conocidos tipados en
// su sitio y los desconocidos intactos; ante cualquier fallo, la copia cruda.
func (n *SchemaNormalizer) conform(raw map[string]interface{}) map[string]interface{} {
	data, err := json.Marshal(raw)
	if err != nil {
		return copyPayload(raw)
	}

	schema := n.newSchema()
	if err := json.Unmarshal(data, schema); err != nil {
		return copyPayload(raw)
	}
	if err := n.validate.Struct(schema); err != nil {
		return copyPayload(raw)
	}

	known, err := json.Marshal(schema)
	if err != nil {
		return copyPayload(raw)
	}
	var knownFields map[string]interface{}
	if err := json.Unmarshal(known, &knownFields); err != nil {
		return copyPayload(raw)
	}

	out := copyPayload(raw)
	for k, v := range knownFields {
		out[k] = v
	}
	return out
}

// ---------------- Normalizador passthrough ----------------

// PassthroughNormalizer es la identidad: payload normalizado == crudo. Es el
// comportamiento de cualquier servicio no registrado.
type PassthroughNormalizer struct {
	service string
}

func NewPassthroughNormalizer(service string) *PassthroughNormalizer {
	return &PassthroughNormalizer{service: service}
}

func (n *PassthroughNormalizer) Normalize(raw map[string]interface{}) NormalizedEvent {
	return NormalizedEvent{
		Service:           n.service,
		Timestamp:         time.Now().UTC(),
		RawPayload:        raw,
		NormalizedPayload: copyPayload(raw),
	}
}

func copyPayload(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Verificación estática
var _ Normalizer = (*SchemaNormalizer)(nil)
var _ Normalizer = (*PassthroughNormalizer)(nil)
