package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
)

// EventRepoPostgres implementa EventRepository y OutboxRepository para
// PostgreSQL. La columna seq (BIGSERIAL) desempata filas creadas en la misma
// transacción y preserva el orden de inserción.
type EventRepoPostgres struct {
	db *sql.DB
}

func NewEventRepoPostgres(db *sql.DB) *EventRepoPostgres {
	return &EventRepoPostgres{db: db}
}

// ------------------ Helpers de transacción ------------------

func insertEventTx(ctx context.Context, tx *sql.Tx, evt *domain.Event) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	var normalized []byte
	if evt.NormalizedPayload != nil {
		normalized, err = json.Marshal(evt.NormalizedPayload)
		if err != nil {
			return fmt.Errorf("failed to marshal normalized payload: %w", err)
		}
	}

	var sourceID interface{}
	if evt.SourceEventID != nil {
		sourceID = *evt.SourceEventID
	}
	var dedupKey interface{}
	if evt.DeduplicationKey != nil {
		dedupKey = *evt.DeduplicationKey
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id,service,timestamp,payload,normalized_payload,source_event_id,deduplication_key,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		evt.ID, evt.Service, evt.Timestamp, payloadBytes, normalized, sourceID, dedupKey, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func insertOutboxTx(ctx context.Context, tx *sql.Tx, msg domain.OutboxMessage) error {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_messages (id,topic,payload,status,attempts,published_at,created_at)
		 VALUES ($1,$2,$3,$4,$5,NULL,$6)`,
		msg.ID, msg.Topic, payloadBytes, string(msg.Status), msg.Attempts, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return nil
}

// ------------------ EventRepository ------------------

func (r *EventRepoPostgres) SaveWithDerived(ctx context.Context, base *domain.Event, derived []*domain.Event, msgs []domain.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEventTx(ctx, tx, base); err != nil {
		return err
	}
	for _, evt := range derived {
		if err := insertEventTx(ctx, tx, evt); err != nil {
			return err
		}
	}
	for _, msg := range msgs {
		if err := insertOutboxTx(ctx, tx, msg); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const eventColumns = `id, service, timestamp, payload, normalized_payload, source_event_id, deduplication_key, created_at`

func scanEvent(scanner interface{ Scan(...interface{}) error }) (*domain.Event, error) {
	var (
		evt        domain.Event
		payload    []byte
		normalized []byte
		sourceID   uuid.NullUUID
		dedupKey   sql.NullString
	)

	if err := scanner.Scan(&evt.ID, &evt.Service, &evt.Timestamp, &payload, &normalized, &sourceID, &dedupKey, &evt.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &evt.Payload); err != nil {
		return nil, fmt.Errorf("invalid JSON payload in events row %s: %w", evt.ID, err)
	}
	if normalized != nil {
		if err := json.Unmarshal(normalized, &evt.NormalizedPayload); err != nil {
			return nil, fmt.Errorf("invalid JSON normalized payload in events row %s: %w", evt.ID, err)
		}
	}
	if sourceID.Valid {
		id := sourceID.UUID
		evt.SourceEventID = &id
	}
	if dedupKey.Valid {
		key := dedupKey.String
		evt.DeduplicationKey = &key
	}

	return &evt, nil
}

func (r *EventRepoPostgres) FindByDedupKey(ctx context.Context, key string) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE deduplication_key = $1 ORDER BY created_at, seq LIMIT 1`, key,
	)

	evt, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrEventNotFound
	}
	return evt, err
}

func (r *EventRepoPostgres) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE source_event_id = $1 ORDER BY created_at, seq`, sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *EventRepoPostgres) List(ctx context.Context, limit, offset int) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC, seq DESC LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// ------------------ OutboxRepository ------------------

// FetchPending obtiene mensajes pendientes en orden FIFO. El diseño asume
// una única instancia de relay; para escalarlo horizontalmente habría que
// reclamar filas con FOR UPDATE SKIP LOCKED dentro de la misma transacción
// que las actualiza.
func (r *EventRepoPostgres) FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, topic, payload, status, attempts, published_at, created_at
		 FROM outbox_messages
		 WHERE status = 'pending'
		 ORDER BY created_at, seq
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.OutboxMessage
	for rows.Next() {
		var (
			msg         domain.OutboxMessage
			payload     []byte
			status      string
			publishedAt sql.NullTime
		)

		if err := rows.Scan(&msg.ID, &msg.Topic, &payload, &status, &msg.Attempts, &publishedAt, &msg.CreatedAt); err != nil {
			return nil, err
		}

		msg.Status = domain.OutboxStatus(status)
		if err := json.Unmarshal(payload, &msg.Payload); err != nil {
			return nil, fmt.Errorf("invalid JSON payload in outbox row %s: %w", msg.ID, err)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			msg.PublishedAt = &t
		}

		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

func (r *EventRepoPostgres) UpdateBatch(ctx context.Context, msgs []domain.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		var publishedAt interface{}
		if msg.PublishedAt != nil {
			publishedAt = *msg.PublishedAt
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE outbox_messages SET status=$1, attempts=$2, published_at=$3 WHERE id=$4`,
			string(msg.Status), msg.Attempts, publishedAt, msg.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update outbox message %s: %w", msg.ID, err)
		}
		rows, _ := res.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("no outbox message found with id %s", msg.ID)
		}
	}

	return tx.Commit()
}

// ------------------ Inicialización de DB ------------------

// InitPostgres crea las tablas si no existen.
func InitPostgres(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS events (
            id UUID PRIMARY KEY,
            seq BIGSERIAL,
            service TEXT NOT NULL,
            timestamp TIMESTAMPTZ NOT NULL,
            payload JSONB NOT NULL,
            normalized_payload JSONB,
            source_event_id UUID,
            deduplication_key TEXT,
            created_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_events_service ON events(service);
        CREATE INDEX IF NOT EXISTS idx_events_source ON events(source_event_id);
        CREATE INDEX IF NOT EXISTS idx_events_dedup ON events(deduplication_key);
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS outbox_messages (
            id UUID PRIMARY KEY,
            seq BIGSERIAL,
            topic TEXT NOT NULL,
            payload JSONB NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            attempts INTEGER NOT NULL DEFAULT 0,
            published_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_outbox_status_created ON outbox_messages(status, created_at);
    `)
	return err
}

// Verificación en tiempo de compilación.
var _ domain.EventRepository = (*EventRepoPostgres)(nil)
var _ domain.OutboxRepository = (*EventRepoPostgres)(nil)
