package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
)

// EventLogClickHouse vuelca eventos ya confirmados a una tabla append-only
// de ClickHouse para reporting. Corre fuera de la transacción de ingesta.
type EventLogClickHouse struct {
	db *sql.DB
}

func NewEventLogClickHouse(addr string, dbName string) (*EventLogClickHouse, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &EventLogClickHouse{db: conn}, nil
}

// LogEvents inserta un lote de eventos. ClickHouse rinde mejor con
// inserciones por lotes, de ahí la transacción + prepared statement.
func (r *EventLogClickHouse) LogEvents(ctx context.Context, events []*domain.Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO events_log (id, service, timestamp, payload, source_event_id, created_at, log_time)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	logTime := time.Now().UTC()
	for _, evt := range events {
		payloadBytes, err := json.Marshal(evt.Payload)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to marshal payload for event %s: %w", evt.ID, err)
		}

		sourceID := ""
		if evt.SourceEventID != nil {
			sourceID = evt.SourceEventID.String()
		}

		if _, err := stmt.ExecContext(
			ctx,
			evt.ID.String(),
			evt.Service,
			evt.Timestamp,
			string(payloadBytes),
			sourceID,
			evt.CreatedAt,
			logTime,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for event %s: %w", evt.ID, err)
		}
	}

	return tx.Commit()
}

// Verificación en tiempo de compilación.
var _ domain.EventAnalytics = (*EventLogClickHouse)(nil)
