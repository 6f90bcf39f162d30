package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_KnownServices(t *testing.T) {
	registry := NewFactoryRegistry()

	for service, evaluator := range map[string]RuleEvaluator{
		ServiceHealth:    HealthRuleEvaluator{},
		ServiceEnergy:    EnergyRuleEvaluator{},
		ServiceTransport: NoopRuleEvaluator{},
		ServiceSecurity:  NoopRuleEvaluator{},
	} {
		factory := registry.Get(service)
		assert.NotNil(t, factory.Normalizer(), service)
		assert.IsType(t, evaluator, factory.RuleEvaluator(), service)

		evt := factory.Normalizer().Normalize(map[string]interface{}{"k": "v"})
		assert.Equal(t, service, evt.Service)
	}
}

func TestRegistry_UnknownService_Passthrough(t *testing.T) {
	registry := NewFactoryRegistry()

	factory := registry.Get("foo")

	raw := map[string]interface{}{"whatever": 1.0}
	evt := factory.Normalizer().Normalize(raw)
	assert.Equal(t, "foo", evt.Service)
	assert.Equal(t, raw, evt.NormalizedPayload)

	assert.Empty(t, factory.RuleEvaluator().Evaluate(evt))
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	registry := NewFactoryRegistry()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_ = registry.Get(ServiceEnergy)
				_ = registry.Get("unknown-service")
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
