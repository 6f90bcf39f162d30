package domain

import "github.com/go-playground/validator/v10"

// ComponentsFactory agrupa el normalizador y el evaluador de reglas de un
// servicio.
type ComponentsFactory interface {
	Normalizer() Normalizer
	RuleEvaluator() RuleEvaluator
}

type componentsFactory struct {
	normalizer Normalizer
	evaluator  RuleEvaluator
}

func NewComponentsFactory(n Normalizer, r RuleEvaluator) ComponentsFactory {
	return componentsFactory{normalizer: n, evaluator: r}
}

func (f componentsFactory) Normalizer() Normalizer       { return f.normalizer }
func (f componentsFactory) RuleEvaluator() RuleEvaluator { return f.evaluator }

// FactoryRegistry resuelve el ComponentsFactory de un servicio. La tabla se
// construye una sola vez y después es inmutable, por lo que es segura para
// lecturas concurrentes desde múltiples ingestas. Se inyecta en el
// orquestador; no hay singleton global.
type FactoryRegistry struct {
	factories map[string]ComponentsFactory
}

func NewFactoryRegistry() *FactoryRegistry {
	validate := validator.New()

	return &FactoryRegistry{
		factories: map[string]ComponentsFactory{
			ServiceHealth: NewComponentsFactory(
				NewSchemaNormalizer(ServiceHealth, func() interface{} { return &HealthPayload{} }, validate),
				HealthRuleEvaluator{},
			),
			ServiceEnergy: NewComponentsFactory(
				NewSchemaNormalizer(ServiceEnergy, func() interface{} { return &EnergyPayload{} }, validate),
				EnergyRuleEvaluator{},
			),
			ServiceTransport: NewComponentsFactory(
				NewSchemaNormalizer(ServiceTransport, func() interface{} { return &TransportPayload{} }, validate),
				NoopRuleEvaluator{},
			),
			ServiceSecurity: NewComponentsFactory(
				NewSchemaNormalizer(ServiceSecurity, func() interface{} { return &SecurityPayload{} }, validate),
				NoopRuleEvaluator{},
			),
		},
	}
}

// Get nunca falla: un servicio desconocido recibe un factory passthrough
// parametrizado con ese nombre exacto (identidad, sin reglas).
func (r *FactoryRegistry) Get(service string) ComponentsFactory {
	if f, ok := r.factories[service]; ok {
		return f
	}
	return NewComponentsFactory(NewPassthroughNormalizer(service), NoopRuleEvaluator{})
}
