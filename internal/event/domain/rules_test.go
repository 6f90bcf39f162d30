package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func normalizedFor(service string, payload map[string]interface{}) NormalizedEvent {
	return NormalizedEvent{
		Service:           service,
		Timestamp:         time.Now().UTC(),
		RawPayload:        payload,
		NormalizedPayload: payload,
	}
}

func TestEnergyRule_BelowOrAtThreshold_NoDerived(t *testing.T) {
	evaluator := EnergyRuleEvaluator{}

	// Exactamente en el umbral no dispara (estrictamente mayor).
	specs := evaluator.Evaluate(normalizedFor(ServiceEnergy, map[string]interface{}{
		"energy":       500.0,
		"neighborhood": "downtown",
	}))
	assert.Empty(t, specs)

	specs = evaluator.Evaluate(normalizedFor(ServiceEnergy, map[string]interface{}{
		"energy": 120.5,
	}))
	assert.Empty(t, specs)
}

func TestEnergyRule_MissingEnergy_NoDerived(t *testing.T) {
	evaluator := EnergyRuleEvaluator{}

	specs := evaluator.Evaluate(normalizedFor(ServiceEnergy, map[string]interface{}{
		"neighborhood": "downtown",
	}))
	assert.Empty(t, specs)

	specs = evaluator.Evaluate(normalizedFor(ServiceEnergy, map[string]interface{}{
		"energy": nil,
	}))
	assert.Empty(t, specs)
}

func TestEnergyRule_AboveThreshold_OneSecurityAlert(t *testing.T) {
	evaluator := EnergyRuleEvaluator{}

	specs := evaluator.Evaluate(normalizedFor(ServiceEnergy, map[string]interface{}{
		"energy":       500.01,
		"neighborhood": "downtown",
	}))

	assert.Len(t, specs, 1)
	spec := specs[0]
	assert.Equal(t, ServiceSecurity, spec.Service)
	assert.Equal(t, "critical_energy_usage_downtown", spec.DeduplicationKey)
	assert.Equal(t, "possible_risk", spec.Payload["alert"])
	assert.Equal(t, "critical_energy_usage", spec.Payload["reason"])
	assert.Equal(t, "downtown", spec.Payload["neighborhood"])
	assert.Equal(t, 500.01, spec.Payload["energy"])
}

func TestEnergyRule_MissingNeighborhood_UsesStableToken(t *testing.T) {
	evaluator := EnergyRuleEvaluator{}

	specs := evaluator.Evaluate(normalizedFor(ServiceEnergy, map[string]interface{}{
		"energy": 900.0,
	}))

	assert.Len(t, specs, 1)
	assert.Equal(t, "critical_energy_usage_unknown", specs[0].DeduplicationKey)
	assert.Nil(t, specs[0].Payload["neighborhood"])
}

func TestHealthRule_Emergency_FanOut(t *testing.T) {
	evaluator := HealthRuleEvaluator{}

	specs := evaluator.Evaluate(normalizedFor(ServiceHealth, map[string]interface{}{
		"alert":      "emergency",
		"patient_id": float64(123), // como llega tras decodificar JSON
		"location":   "room_5",
	}))

	assert.Len(t, specs, 2)

	// El orden importa: primero transport, después security.
	transport := specs[0]
	assert.Equal(t, ServiceTransport, transport.Service)
	assert.Equal(t, "dispatch_nearest_vehicle", transport.Payload["action"])
	assert.Equal(t, "health_emergency", transport.Payload["reason"])
	assert.Equal(t, "room_5", transport.Payload["location"])

	security := specs[1]
	assert.Equal(t, ServiceSecurity, security.Service)
	assert.Equal(t, "high", security.Payload["priority"])
	assert.Equal(t, "escort_and_clear_traffic", security.Payload["action"])

	// Ambos specs comparten clave, sin ".0" residual en el número.
	assert.Equal(t, "health_emergency_123", transport.DeduplicationKey)
	assert.Equal(t, transport.DeduplicationKey, security.DeduplicationKey)
}

func TestHealthRule_NonEmergency_NoDerived(t *testing.T) {
	evaluator := HealthRuleEvaluator{}

	specs := evaluator.Evaluate(normalizedFor(ServiceHealth, map[string]interface{}{
		"alert": "routine",
	}))
	assert.Empty(t, specs)

	specs = evaluator.Evaluate(normalizedFor(ServiceHealth, map[string]interface{}{
		"patient_id": float64(9),
	}))
	assert.Empty(t, specs)
}

func TestHealthRule_MissingPatientID_UsesStableToken(t *testing.T) {
	evaluator := HealthRuleEvaluator{}

	specs := evaluator.Evaluate(normalizedFor(ServiceHealth, map[string]interface{}{
		"alert": "emergency",
	}))

	assert.Len(t, specs, 2)
	assert.Equal(t, "health_emergency_unknown", specs[0].DeduplicationKey)
}

func TestNoopRule_AlwaysEmpty(t *testing.T) {
	evaluator := NoopRuleEvaluator{}

	specs := evaluator.Evaluate(normalizedFor(ServiceTransport, map[string]interface{}{
		"bus_id": float64(7),
	}))
	assert.Empty(t, specs)
}

func TestFieldToken_Renderings(t *testing.T) {
	assert.Equal(t, "unknown", fieldToken(nil))
	assert.Equal(t, "downtown", fieldToken("downtown"))
	assert.Equal(t, "123", fieldToken(float64(123)))
	assert.Equal(t, "123.5", fieldToken(123.5))
	assert.Equal(t, "42", fieldToken(42))
	assert.Equal(t, "true", fieldToken(true))
}
