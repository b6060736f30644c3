package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"relay-chat/internal/domain/outbox"
	"relay-chat/internal/events"
	"relay-chat/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:outbox_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, repository.InitSchema(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type recordingSink struct {
	mu   sync.Mutex
	got  []events.AuditEnvelope
	fail error
}

func (s *recordingSink) Publish(_ context.Context, env events.AuditEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, env)
	return nil
}

func record(t *testing.T, r *Recorder, aggregateID string) {
	t.Helper()
	env, err := events.NewAuditEnvelope(events.EventTypeMessageCreated, events.AggregateTypeMessage, aggregateID, "alice", map[string]string{"content": "hi"})
	require.NoError(t, err)
	require.NoError(t, r.Publish(context.Background(), env))
}

func TestProcessBatchDeliversPending(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewOutboxRepository(db)
	sink := &recordingSink{}
	p := NewProcessor(repo, sink, nil)
	r := NewRecorder(repo)

	record(t, r, "m1")
	record(t, r, "m2")

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.got, 2)
	assert.ElementsMatch(t, []string{"m1", "m2"}, []string{sink.got[0].AggregateID, sink.got[1].AggregateID})
	assert.JSONEq(t, `{"content":"hi"}`, string(sink.got[0].Payload))

	pending, err := repo.GetPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchRetriesThenFails(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewOutboxRepository(db)
	sink := &recordingSink{fail: errors.New("broker down")}
	p := NewProcessor(repo, sink, nil)
	p.maxRetries = 2

	record(t, NewRecorder(repo), "m1")

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	var ev outbox.OutboxEvent
	require.NoError(t, db.First(&ev).Error)
	assert.Equal(t, outbox.StatusPending, ev.Status)
	assert.Equal(t, 1, ev.RetryCount)
	assert.Equal(t, "broker down", ev.Error)

	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	require.NoError(t, db.First(&ev).Error)
	assert.Equal(t, outbox.StatusFailed, ev.Status)

	sink.fail = nil
	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPruneRemovesOldCompleted(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewOutboxRepository(db)
	p := NewProcessor(repo, &recordingSink{}, nil)

	record(t, NewRecorder(repo), "m1")
	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	p.clock = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	p.Prune()

	var count int64
	require.NoError(t, db.Model(&outbox.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunStopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	p := NewProcessor(repository.NewOutboxRepository(db), &recordingSink{}, nil)
	p.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}
