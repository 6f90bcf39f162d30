package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
	"github.com/ariannmichael/smartcity-orchestrator/internal/metrics"
)

// Límites del listado de eventos.
const (
	MaxListLimit     = 100
	DefaultListLimit = 50
)

var (
	ErrLimitTooLarge = errors.New("limit must be 100 or less")
	ErrInvalidOffset = errors.New("offset must be zero or positive")
)

// EventService define los casos de uso de orquestación de eventos: la
// ingesta transaccional y el listado.
type EventService struct {
	repo      domain.EventRepository
	registry  *domain.FactoryRegistry
	analytics domain.EventAnalytics // opcional
	log       *zap.Logger
}

// NewEventService constructor. analytics puede ser nil.
func NewEventService(repo domain.EventRepository, registry *domain.FactoryRegistry, analytics domain.EventAnalytics, log *zap.Logger) *EventService {
	return &EventService{
		repo:      repo,
		registry:  registry,
		analytics: analytics,
		log:       log,
	}
}

// Ingest ejecuta la ingesta completa como una unidad atómica: consulta de
// deduplicación, normalización, persistencia del evento base, evaluación de
// reglas, persistencia de derivados y encolado de mensajes outbox.
//
// Si dedupeKey ya existe, la ingesta se corta en seco y devuelve el evento
// original junto a sus derivados conocidos, sin crear nada (idempotencia).
func (s *EventService) Ingest(ctx context.Context, service string, payload map[string]interface{}, dedupeKey string) (*domain.Event, []*domain.Event, error) {
	start := time.Now()

	if dedupeKey != "" {
		existing, err := s.repo.FindByDedupKey(ctx, dedupeKey)
		switch {
		case err == nil:
			derived, derr := s.repo.ListBySource(ctx, existing.ID)
			if derr != nil {
				return nil, nil, derr
			}
			metrics.DedupHits.Inc()
			s.log.Info("♻️ Ingesta duplicada, se devuelve el evento existente",
				zap.String("dedupe_key", dedupeKey),
				zap.String("event_id", existing.ID.String()),
			)
			return existing, derived, nil
		case !errors.Is(err, domain.ErrEventNotFound):
			return nil, nil, err
		}
	}

	factory := s.registry.Get(service)
	normalized := factory.Normalizer().Normalize(payload)

	now := time.Now().UTC()
	base := &domain.Event{
		ID:                uuid.New(),
		Service:           normalized.Service,
		Timestamp:         normalized.Timestamp,
		Payload:           normalized.RawPayload,
		NormalizedPayload: normalized.NormalizedPayload,
		CreatedAt:         now,
	}
	if dedupeKey != "" {
		base.DeduplicationKey = &dedupeKey
	}

	specs := factory.RuleEvaluator().Evaluate(normalized)

	derived := make([]*domain.Event, 0, len(specs))
	msgs := make([]domain.OutboxMessage, 0, len(specs))
	for _, spec := range specs {
		evt := &domain.Event{
			ID:            uuid.New(),
			Service:       spec.Service,
			Timestamp:     now,
			Payload:       spec.Payload,
			SourceEventID: &base.ID,
			CreatedAt:     now,
		}
		if spec.DeduplicationKey != "" {
			key := spec.DeduplicationKey
			evt.DeduplicationKey = &key
		}
		derived = append(derived, evt)

		msgs = append(msgs, domain.OutboxMessage{
			ID:        uuid.New(),
			Topic:     domain.TopicForService(spec.Service),
			Payload:   spec.Payload,
			Status:    domain.OutboxPending,
			Attempts:  0,
			CreatedAt: now,
		})
	}

	if err := s.repo.SaveWithDerived(ctx, base, derived, msgs); err != nil {
		return nil, nil, err
	}

	metrics.EventsIngested.WithLabelValues(base.Service).Inc()
	for _, d := range derived {
		metrics.DerivedEvents.WithLabelValues(d.Service).Inc()
	}
	metrics.IngestDuration.Observe(float64(time.Since(start).Milliseconds()))

	s.logToAnalytics(base, derived)

	return base, derived, nil
}

// ListEvents devuelve eventos por created_at descendente. Un limit mayor que
// MaxListLimit o un offset negativo se rechazan antes de tocar el store.
func (s *EventService) ListEvents(ctx context.Context, limit, offset int) ([]*domain.Event, error) {
	if limit > MaxListLimit {
		return nil, ErrLimitTooLarge
	}
	if offset < 0 {
		return nil, ErrInvalidOffset
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.List(ctx, limit, offset)
}

// logToAnalytics envía los eventos confirmados al sink analítico en
// background; un fallo aquí solo se loguea.
func (s *EventService) logToAnalytics(base *domain.Event, derived []*domain.Event) {
	if s.analytics == nil {
		return
	}

	all := append([]*domain.Event{base}, derived...)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.analytics.LogEvents(ctx, all); err != nil {
			s.log.Warn("⚠️ No se pudo registrar el lote analítico", zap.Error(err))
		}
	}()
}
