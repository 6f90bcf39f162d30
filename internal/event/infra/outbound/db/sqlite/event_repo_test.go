package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ariannmichael/smartcity-orchestrator/internal/event/domain"
)

func newTestRepo(t *testing.T) *EventRepoSQLite {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "orchestrator_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSQLite(db))
	return NewEventRepoSQLite(db)
}

func baseEvent(service, dedupKey string) *domain.Event {
	now := time.Now().UTC().Truncate(time.Millisecond)
	evt := &domain.Event{
		ID:                uuid.New(),
		Service:           service,
		Timestamp:         now,
		Payload:           map[string]interface{}{"energy": 600.0},
		NormalizedPayload: map[string]interface{}{"energy": 600.0, "neighborhood": "downtown"},
		CreatedAt:         now,
	}
	if dedupKey != "" {
		evt.DeduplicationKey = &dedupKey
	}
	return evt
}

func derivedEvent(source *domain.Event, service, dedupKey string) *domain.Event {
	evt := &domain.Event{
		ID:            uuid.New(),
		Service:       service,
		Timestamp:     source.CreatedAt,
		Payload:       map[string]interface{}{"alert": "possible_risk"},
		SourceEventID: &source.ID,
		CreatedAt:     source.CreatedAt,
	}
	if dedupKey != "" {
		evt.DeduplicationKey = &dedupKey
	}
	return evt
}

func outboxFor(evt *domain.Event) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:        uuid.New(),
		Topic:     domain.TopicForService(evt.Service),
		Payload:   evt.Payload,
		Status:    domain.OutboxPending,
		CreatedAt: evt.CreatedAt,
	}
}

func TestSaveWithDerived_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := baseEvent(domain.ServiceEnergy, "K1")
	d1 := derivedEvent(base, domain.ServiceSecurity, "critical_energy_usage_downtown")
	msg := outboxFor(d1)

	require.NoError(t, repo.SaveWithDerived(ctx, base, []*domain.Event{d1}, []domain.OutboxMessage{msg}))

	found, err := repo.FindByDedupKey(ctx, "K1")
	require.NoError(t, err)
	assert.Equal(t, base.ID, found.ID)
	assert.Equal(t, base.Service, found.Service)
	assert.Equal(t, base.Payload, found.Payload)
	assert.Equal(t, base.NormalizedPayload, found.NormalizedPayload)
	assert.Nil(t, found.SourceEventID)
	require.NotNil(t, found.DeduplicationKey)
	assert.Equal(t, "K1", *found.DeduplicationKey)

	derived, err := repo.ListBySource(ctx, base.ID)
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.Equal(t, d1.ID, derived[0].ID)
	assert.Nil(t, derived[0].NormalizedPayload)
	assert.Equal(t, base.ID, *derived[0].SourceEventID)
}

func TestFindByDedupKey_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByDedupKey(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestFindByDedupKey_FirstArrivalWins(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Dos derivados con la misma clave en la misma transacción (caso del
	// fan-out de salud): debe resolverse siempre al primero insertado.
	base := baseEvent(domain.ServiceHealth, "")
	d1 := derivedEvent(base, domain.ServiceTransport, "health_emergency_123")
	d2 := derivedEvent(base, domain.ServiceSecurity, "health_emergency_123")
	require.NoError(t, repo.SaveWithDerived(ctx, base, []*domain.Event{d1, d2}, nil))

	found, err := repo.FindByDedupKey(ctx, "health_emergency_123")
	require.NoError(t, err)
	assert.Equal(t, d1.ID, found.ID)
}

func TestListBySource_PreservesCreationOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := baseEvent(domain.ServiceHealth, "")
	d1 := derivedEvent(base, domain.ServiceTransport, "")
	d2 := derivedEvent(base, domain.ServiceSecurity, "")
	require.NoError(t, repo.SaveWithDerived(ctx, base, []*domain.Event{d1, d2}, nil))

	derived, err := repo.ListBySource(ctx, base.ID)
	require.NoError(t, err)
	require.Len(t, derived, 2)
	assert.Equal(t, d1.ID, derived[0].ID)
	assert.Equal(t, d2.ID, derived[1].ID)
}

func TestList_NewestFirstWithPagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		evt := baseEvent(domain.ServiceTransport, "")
		evt.CreatedAt = evt.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.SaveWithDerived(ctx, evt, nil, nil))
		ids = append(ids, evt.ID)
	}

	events, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ids[2], events[0].ID)
	assert.Equal(t, ids[1], events[1].ID)

	events, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ids[0], events[0].ID)
}

func TestFetchPending_FIFOAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := baseEvent(domain.ServiceHealth, "")
	var msgs []domain.OutboxMessage
	for i := 0; i < 3; i++ {
		msg := outboxFor(base)
		msg.CreatedAt = base.CreatedAt.Add(time.Duration(i) * time.Second)
		msgs = append(msgs, msg)
	}
	require.NoError(t, repo.SaveWithDerived(ctx, base, nil, msgs))

	pending, err := repo.FetchPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, msgs[0].ID, pending[0].ID)
	assert.Equal(t, msgs[1].ID, pending[1].ID)
	for _, msg := range pending {
		assert.Equal(t, domain.OutboxPending, msg.Status)
		assert.Equal(t, 0, msg.Attempts)
		assert.Nil(t, msg.PublishedAt)
	}
}

func TestUpdateBatch_PersistsTerminalStates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := baseEvent(domain.ServiceHealth, "")
	m1 := outboxFor(base)
	m2 := outboxFor(base)
	m2.CreatedAt = m1.CreatedAt.Add(time.Second)
	require.NoError(t, repo.SaveWithDerived(ctx, base, nil, []domain.OutboxMessage{m1, m2}))

	pending, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	now := time.Now().UTC().Truncate(time.Millisecond)
	pending[0].Status = domain.OutboxSent
	pending[0].PublishedAt = &now
	pending[1].Status = domain.OutboxFailed
	pending[1].Attempts = 5
	require.NoError(t, repo.UpdateBatch(ctx, pending))

	// Los terminales dejan de ser elegibles; siguen en la tabla como
	// registro de auditoría.
	remaining, err := repo.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestUpdateBatch_UnknownMessage_Errors(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.UpdateBatch(context.Background(), []domain.OutboxMessage{
		{ID: uuid.New(), Status: domain.OutboxSent},
	})
	assert.Error(t, err)
}
