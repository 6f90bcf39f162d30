package domain

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestSchemaNormalizer_ValidPayload(t *testing.T) {
	n := NewSchemaNormalizer(ServiceEnergy, func() interface{} { return &EnergyPayload{} }, validator.New())

	raw := map[string]interface{}{
		"energy":       600.0,
		"neighborhood": "downtown",
	}

	evt := n.Normalize(raw)

	assert.Equal(t, ServiceEnergy, evt.Service)
	assert.Equal(t, raw, evt.RawPayload)
	assert.Equal(t, 600.0, evt.NormalizedPayload["energy"])
	assert.Equal(t, "downtown", evt.NormalizedPayload["neighborhood"])
	assert.False(t, evt.Timestamp.IsZero())
}

func TestSchemaNormalizer_ExtraFieldsPreserved(t *testing.T) {
	n := NewSchemaNormalizer(ServiceEnergy, func() interface{} { return &EnergyPayload{} }, validator.New())

	raw := map[string]interface{}{
		"energy":   700.0,
		"metadata": map[string]interface{}{"source": "meter_42"},
		"priority": "high",
	}

	evt := n.Normalize(raw)

	// Los esquemas son permisivos, no allow-lists: lo desconocido se conserva.
	assert.Equal(t, 700.0, evt.NormalizedPayload["energy"])
	assert.Equal(t, "high", evt.NormalizedPayload["priority"])
	assert.Equal(t, map[string]interface{}{"source": "meter_42"}, evt.NormalizedPayload["metadata"])
}

func TestSchemaNormalizer_MalformedPayload_FallsBackToRaw(t *testing.T) {
	n := NewSchemaNormalizer(ServiceEnergy, func() interface{} { return &EnergyPayload{} }, validator.New())

	// energy con el tipo equivocado: la normalización nunca falla, degrada.
	raw := map[string]interface{}{
		"energy":       "a lot",
		"neighborhood": "downtown",
	}

	evt := n.Normalize(raw)

	assert.Equal(t, raw, evt.RawPayload)
	assert.Equal(t, "a lot", evt.NormalizedPayload["energy"])
	assert.Equal(t, "downtown", evt.NormalizedPayload["neighborhood"])
}

func TestSchemaNormalizer_ConstraintViolation_FallsBackToRaw(t *testing.T) {
	n := NewSchemaNormalizer(ServiceHealth, func() interface{} { return &HealthPayload{} }, validator.New())

	raw := map[string]interface{}{
		"patient_id": float64(-1),
		"alert":      "emergency",
	}

	evt := n.Normalize(raw)

	assert.Equal(t, float64(-1), evt.NormalizedPayload["patient_id"])
	assert.Equal(t, "emergency", evt.NormalizedPayload["alert"])
}

func TestSchemaNormalizer_DoesNotMutateInput(t *testing.T) {
	n := NewSchemaNormalizer(ServiceEnergy, func() interface{} { return &EnergyPayload{} }, validator.New())

	raw := map[string]interface{}{"energy": 100.0}
	evt := n.Normalize(raw)

	evt.NormalizedPayload["energy"] = 999.0
	assert.Equal(t, 100.0, raw["energy"])
}

func TestPassthroughNormalizer_Identity(t *testing.T) {
	n := NewPassthroughNormalizer("foo")

	raw := map[string]interface{}{
		"anything": "goes",
		"nested":   map[string]interface{}{"deep": true},
	}

	evt := n.Normalize(raw)

	assert.Equal(t, "foo", evt.Service)
	assert.Equal(t, raw, evt.RawPayload)
	assert.Equal(t, raw, evt.NormalizedPayload)
}
