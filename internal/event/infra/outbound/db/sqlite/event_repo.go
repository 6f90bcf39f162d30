package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
)

// EventRepoSQLite implementa EventRepository y OutboxRepository sobre SQLite
// (driver puro Go, pensado para despliegue local).
type EventRepoSQLite struct {
	db *sql.DB
}

func NewEventRepoSQLite(db *sql.DB) *EventRepoSQLite {
	return &EventRepoSQLite{db: db}
}

// ------------------ Helpers de transacción ------------------

func insertEventTx(ctx context.Context, tx *sql.Tx, evt *domain.Event) error {
	payloadBytes, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	var normalized sql.NullString
	if evt.NormalizedPayload != nil {
		b, err := json.Marshal(evt.NormalizedPayload)
		if err != nil {
			return fmt.Errorf("failed to marshal normalized payload: %w", err)
		}
		normalized = sql.NullString{String: string(b), Valid: true}
	}

	var sourceID sql.NullString
	if evt.SourceEventID != nil {
		sourceID = sql.NullString{String: evt.SourceEventID.String(), Valid: true}
	}

	var dedupKey sql.NullString
	if evt.DeduplicationKey != nil {
		dedupKey = sql.NullString{String: *evt.DeduplicationKey, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id,service,timestamp,payload,normalized_payload,source_event_id,deduplication_key,created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		evt.ID.String(), evt.Service, evt.Timestamp, string(payloadBytes), normalized, sourceID, dedupKey, evt.CreatedAt,
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
		 VALUES (?,?,?,?,?,NULL,?)`,
		msg.ID.String(), msg.Topic, string(payloadBytes), string(msg.Status), msg.Attempts, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return nil
}

// ------------------ EventRepository ------------------

// SaveWithDerived inserta el evento base, sus derivados y sus mensajes de
// outbox en una única transacción.
func (r *EventRepoSQLite) SaveWithDerived(ctx context.Context, base *domain.Event, derived []*domain.Event, msgs []domain.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

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
		idStr      string
		payloadStr string
		normalized sql.NullString
		sourceID   sql.NullString
		dedupKey   sql.NullString
	)

	if err := scanner.Scan(&idStr, &evt.Service, &evt.Timestamp, &payloadStr, &normalized, &sourceID, &dedupKey, &evt.CreatedAt); err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in events row: %w", err)
	}
	evt.ID = parsedID

	if err := json.Unmarshal([]byte(payloadStr), &evt.Payload); err != nil {
		return nil, fmt.Errorf("invalid JSON payload in events row %s: %w", evt.ID, err)
	}
	if normalized.Valid {
		if err := json.Unmarshal([]byte(normalized.String), &evt.NormalizedPayload); err != nil {
			return nil, fmt.Errorf("invalid JSON normalized payload in events row %s: %w", evt.ID, err)
		}
	}
	if sourceID.Valid {
		parsed, err := uuid.Parse(sourceID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid source UUID in events row %s: %w", evt.ID, err)
		}
		evt.SourceEventID = &parsed
	}
	if dedupKey.Valid {
		key := dedupKey.String
		evt.DeduplicationKey = &key
	}

	return &evt, nil
}

// FindByDedupKey devuelve el evento más antiguo con esa clave (first-arrival
// wins; la clave no es única a propósito).
func (r *EventRepoSQLite) FindByDedupKey(ctx context.Context, key string) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE deduplication_key = ? ORDER BY created_at, rowid LIMIT 1`, key,
	)

	evt, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrEventNotFound
	}
	return evt, err
}

// ListBySource devuelve los derivados de un evento en orden de creación
// (rowid desempata timestamps iguales dentro de una misma transacción).
func (r *EventRepoSQLite) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE source_event_id = ? ORDER BY created_at, rowid`, sourceID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

// List devuelve eventos por created_at descendente.
func (r *EventRepoSQLite) List(ctx context.Context, limit, offset int) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset,
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

// FetchPending obtiene mensajes pendientes en orden FIFO.
func (r *EventRepoSQLite) FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, topic, payload, status, attempts, published_at, created_at
		 FROM outbox_messages
		 WHERE status = 'pending'
		 ORDER BY created_at, rowid
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.OutboxMessage
	for rows.Next() {
		var (
			msg         domain.OutboxMessage
			idStr       string
			payloadStr  string
			status      string
			publishedAt sql.NullTime
		)

		if err := rows.Scan(&idStr, &msg.Topic, &payloadStr, &status, &msg.Attempts, &publishedAt, &msg.CreatedAt); err != nil {
			return nil, err
		}

		parsedID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		msg.ID = parsedID
		msg.Status = domain.OutboxStatus(status)

		if err := json.Unmarshal([]byte(payloadStr), &msg.Payload); err != nil {
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

// UpdateBatch confirma los estados de un lote en una sola transacción.
func (r *EventRepoSQLite) UpdateBatch(ctx context.Context, msgs []domain.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		var publishedAt interface{}
		if msg.PublishedAt != nil {
			publishedAt = *msg.PublishedAt
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE outbox_messages SET status=?, attempts=?, published_at=? WHERE id=?`,
			string(msg.Status), msg.Attempts, publishedAt, msg.ID.String(),
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

// InitSQLite crea las tablas si no existen.
func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS events (
            id TEXT PRIMARY KEY,
            service TEXT NOT NULL,
            timestamp DATETIME NOT NULL,
            payload TEXT NOT NULL,
            normalized_payload TEXT,
            source_event_id TEXT,
            deduplication_key TEXT,
            created_at DATETIME NOT NULL
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
            id TEXT PRIMARY KEY,
            topic TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            attempts INTEGER NOT NULL DEFAULT 0,
            published_at DATETIME,
            created_at DATETIME NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_outbox_status_created ON outbox_messages(status, created_at);
    `)
	return err
}

// Verificación en tiempo de compilación.
var _ domain.EventRepository = (*EventRepoSQLite)(nil)
var _ domain.OutboxRepository = (*EventRepoSQLite)(nil)
