package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RuleEvaluator inspecciona un evento normalizado y produce cero o más specs
// de eventos derivados. Debe ser una función pura de su entrada: sin estado,
// sin I/O. El orden de los specs determina el orden de creación de los
// derivados y de sus entradas en el outbox.
type RuleEvaluator interface {
	Evaluate(evt NormalizedEvent) []DerivedEventSpec
}

// EnergyThresholdKWh es el umbral de consumo a partir del cual se alerta a
// seguridad (estrictamente mayor).
const EnergyThresholdKWh = 500.0

// missingFieldToken es la representación textual fija de un campo ausente al
// construir claves de deduplicación.
const missingFieldToken = "unknown"

// ---------------- Energía ----------------

type EnergyRuleEvaluator struct{}

func (EnergyRuleEvaluator) Evaluate(evt NormalizedEvent) []DerivedEventSpec {
	p := evt.NormalizedPayload

	energy, ok := numberField(p, "energy")
	if !ok || energy <= EnergyThresholdKWh {
		return nil
	}

	return []DerivedEventSpec{
		{
			Service: ServiceSecurity,
			Payload: map[string]interface{}{
				"alert":        "possible_risk",
				"reason":       "critical_energy_usage",
				"neighborhood": p["neighborhood"],
				"energy":       energy,
			},
			DeduplicationKey: "critical_energy_usage_" + fieldToken(p["neighborhood"]),
		},
	}
}

// ---------------- Salud ----------------

type HealthRuleEvaluator struct{}

func (HealthRuleEvaluator) Evaluate(evt NormalizedEvent) []DerivedEventSpec {
	p := evt.NormalizedPayload

	alert, _ := p["alert"].(string)
	if alert != "emergency" {
		return nil
	}

	// Ambos derivados comparten clave a propósito: al reingerir la misma
	// emergencia gana el primero que llegó.
	key := "health_emergency_" + fieldToken(p["patient_id"])

	return []DerivedEventSpec{
		{
			Service: ServiceTransport,
			Payload: map[string]interface{}{
				"action":     "dispatch_nearest_vehicle",
				"reason":     "health_emergency",
				"location":   p["location"],
				"patient_id": p["patient_id"],
			},
			DeduplicationKey: key,
		},
		{
			Service: ServiceSecurity,
			Payload: map[string]interface{}{
				"priority":   "high",
				"action":     "escort_and_clear_traffic",
				"reason":     "health_emergency",
				"location":   p["location"],
				"patient_id": p["patient_id"],
			},
			DeduplicationKey: key,
		},
	}
}

// ---------------- Sin reglas ----------------

// NoopRuleEvaluator nunca deriva nada; es la regla de transport, security y
// de cualquier servicio desconocido.
type NoopRuleEvaluator struct{}

func (NoopRuleEvaluator) Evaluate(NormalizedEvent) []DerivedEventSpec {
	return nil
}

// ---------------- Helpers ----------------

// numberField lee un campo numérico tolerando los tipos con los que puede
// llegar según el origen del payload (JSON decodificado o construido a mano).
func numberField(p map[string]interface{}, key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// fieldToken convierte el valor de un campo en un fragmento estable de clave
// de deduplicación. Los números se renderizan sin decimales redundantes
// (123, no 123.0); un campo ausente produce missingFieldToken.
func fieldToken(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return missingFieldToken
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Verificación estática
var _ RuleEvaluator = EnergyRuleEvaluator{}
var _ RuleEvaluator = HealthRuleEvaluator{}
var _ RuleEvaluator = NoopRuleEvaluator{}
