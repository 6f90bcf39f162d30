package relayer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
	"github.com/ariannmichael/smartcity-orchestrator/internal/metrics"
)

// Worker es el relay de outbox: un bucle de polling de larga vida que lee
// mensajes pendientes, intenta publicarlos con reintento acotado y confirma
// los cambios de estado de cada lote en una sola transacción.
//
// Política de ritmo: siempre duerme el intervalo entre ciclos, haya drenado
// un lote completo o no.
type Worker struct {
	repo           domain.OutboxRepository
	publisher      domain.EventPublisher
	interval       time.Duration
	batchSize      int
	maxAttempts    int
	publishTimeout time.Duration
	log            *zap.Logger
}

func NewOutboxWorker(
	repo domain.OutboxRepository,
	publisher domain.EventPublisher,
	interval time.Duration,
	batchSize int,
	maxAttempts int,
	publishTimeout time.Duration,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:           repo,
		publisher:      publisher,
		interval:       interval,
		batchSize:      batchSize,
		maxAttempts:    maxAttempts,
		publishTimeout: publishTimeout,
		log:            log,
	}
}

// Start inicia el bucle de polling y bloquea hasta que el contexto se
// cancele. Ningún error de un ciclo tumba el bucle: se loguea y se reintenta
// en la siguiente iteración.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox relay iniciado",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batchSize),
		zap.Int("max_attempts", w.maxAttempts),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox relay detenido.")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch ejecuta un ciclo de polling: pending→sent en publicación
// exitosa, attempts++ en fallo, pending→failed al agotar el presupuesto.
func (w *Worker) ProcessBatch(ctx context.Context) {
	msgs, err := w.repo.FetchPending(ctx, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ No se pudieron obtener mensajes pendientes", zap.Error(err))
		return
	}
	if len(msgs) == 0 {
		return
	}

	w.log.Info("📬 Mensajes pendientes encontrados", zap.Int("count", len(msgs)))

	for i := range msgs {
		msg := &msgs[i]

		if msg.Attempts >= w.maxAttempts {
			msg.Status = domain.OutboxFailed
			metrics.OutboxExhausted.Inc()
			w.log.Warn("⛔ Mensaje descartado tras agotar reintentos",
				zap.String("message_id", msg.ID.String()),
				zap.String("topic", msg.Topic),
				zap.Int("attempts", msg.Attempts),
			)
			continue
		}

		if err := w.publish(ctx, msg); err != nil {
			msg.Attempts++
			metrics.OutboxPublishFailures.Inc()
			if msg.Attempts >= w.maxAttempts {
				// Presupuesto agotado en este mismo ciclo: estado terminal.
				msg.Status = domain.OutboxFailed
				metrics.OutboxExhausted.Inc()
			}
			w.log.Warn("⚠️ No se pudo publicar el mensaje",
				zap.String("message_id", msg.ID.String()),
				zap.String("topic", msg.Topic),
				zap.Int("attempts", msg.Attempts),
				zap.String("status", string(msg.Status)),
				zap.Error(err),
			)
			continue
		}

		now := time.Now().UTC()
		msg.Status = domain.OutboxSent
		msg.PublishedAt = &now
		metrics.OutboxPublished.Inc()
		w.log.Info("✅ Mensaje publicado",
			zap.String("message_id", msg.ID.String()),
			zap.String("topic", msg.Topic),
		)
	}

	// El commit del lote no se aborta por un shutdown en curso: se termina
	// el lote actual y después se sale.
	commitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.repo.UpdateBatch(commitCtx, msgs); err != nil {
		// El lote se reprocesará; posible entrega duplicada (at-least-once).
		w.log.Warn("⚠️ No se pudo confirmar el lote de outbox", zap.Error(err))
	}
}

// publish acota cada intento con un timeout: un broker colgado no puede
// atascar el lote más allá de una duración fija.
func (w *Worker) publish(ctx context.Context, msg *domain.OutboxMessage) error {
	pubCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()
	return w.publisher.Publish(pubCtx, msg.Topic, msg.Payload)
}
