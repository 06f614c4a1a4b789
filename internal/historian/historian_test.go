// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bridgeduel/internal/cache"
	"github.com/jason-s-yu/bridgeduel/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSource hands out records pushed into it.
type chanSource struct {
	ch chan cache.ActionRecord
}

func (c *chanSource) Next(ctx context.Context) (cache.ActionRecord, bool, error) {
	select {
	case <-ctx.Done():
		return cache.ActionRecord{}, false, ctx.Err()
	case rec := <-c.ch:
		return rec, true, nil
	case <-time.After(10 * time.Millisecond):
		return cache.ActionRecord{}, false, nil
	}
}

type memSink struct {
	mu        sync.Mutex
	batches   [][]cache.ActionRecord
	abandoned []uuid.UUID
	fail      bool
}

func (m *memSink) Persist(_ context.Context, recs []cache.ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db down")
	}
	m.batches = append(m.batches, recs)
	return nil
}

func (m *memSink) Abandon(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = append(m.abandoned, id)
	return nil
}

func (m *memSink) persisted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func setupService(sink *memSink, src Source) *Service {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &Service{
		Source:        src,
		Sink:          sink,
		Log:           logrus.NewEntry(logger),
		BatchSize:     3,
		FlushDelay:    time.Hour,
		Inactivity:    time.Minute,
		SweepInterval: time.Hour,
	}
}

func record(session uuid.UUID, deal, idx int, typ string) cache.ActionRecord {
	return cache.ActionRecord{
		SessionID:   session,
		RoomID:      "room",
		Deal:        deal,
		ActionIndex: idx,
		Actor:       "host",
		ActionType:  typ,
		Timestamp:   time.Now().UnixMilli(),
	}
}

func TestAddFlushesFullBatch(t *testing.T) {
	sink := &memSink{}
	s := setupService(sink, nil)
	ctx := context.Background()
	session := uuid.New()

	s.Add(ctx, record(session, 1, 1, "bid"))
	s.Add(ctx, record(session, 1, 2, "pass"))
	assert.Equal(t, 2, s.Pending())
	assert.Zero(t, sink.persisted())

	s.Add(ctx, record(session, 1, 3, "play_card"))
	assert.Zero(t, s.Pending())
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 3)
	assert.Equal(t, 1, sink.batches[0][0].ActionIndex)
}

func TestFlushFailureDropsBatch(t *testing.T) {
	sink := &memSink{fail: true}
	s := setupService(sink, nil)
	ctx := context.Background()

	s.Add(ctx, record(uuid.New(), 1, 1, "bid"))
	assert.Error(t, s.Flush(ctx))
	assert.Zero(t, s.Pending())
	assert.NoError(t, s.Flush(ctx), "empty batch is a no-op")
}

func TestSweepAbandonsIdleRounds(t *testing.T) {
	sink := &memSink{}
	s := setupService(sink, nil)
	ctx := context.Background()
	session := uuid.New()

	s.Add(ctx, record(session, 1, 1, "bid"))
	s.Add(ctx, record(session, 2, 2, "bid"))
	s.Add(ctx, record(session, 2, 3, cache.RoundResultAction))

	s.Sweep(ctx, time.Now())
	assert.Empty(t, sink.abandoned, "nothing idle yet")

	s.Sweep(ctx, time.Now().Add(2*time.Minute))
	require.Len(t, sink.abandoned, 1, "completed round is not abandoned")
	assert.Equal(t, database.RoundID(session, 1), sink.abandoned[0])

	s.Sweep(ctx, time.Now().Add(4*time.Minute))
	assert.Len(t, sink.abandoned, 1, "abandoned once")
}

func TestSweepFlushesBeforeAbandon(t *testing.T) {
	sink := &memSink{}
	s := setupService(sink, nil)
	s.BatchSize = 100
	ctx := context.Background()

	s.Add(ctx, record(uuid.New(), 1, 1, "bid"))
	s.Sweep(ctx, time.Now().Add(time.Hour))
	assert.Equal(t, 1, sink.persisted())
	assert.Len(t, sink.abandoned, 1)
}

func TestRunDrainsSourceAndFlushesOnShutdown(t *testing.T) {
	sink := &memSink{}
	src := &chanSource{ch: make(chan cache.ActionRecord)}
	s := setupService(sink, src)
	s.BatchSize = 100

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	session := uuid.New()
	for i := 1; i <= 5; i++ {
		src.ch <- record(session, 1, i, "bid")
	}
	require.Eventually(t, func() bool { return s.Pending() == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 5, sink.persisted())
}

func TestRoundIDIsStable(t *testing.T) {
	session := uuid.New()
	assert.Equal(t, database.RoundID(session, 3), database.RoundID(session, 3))
	assert.NotEqual(t, database.RoundID(session, 3), database.RoundID(session, 4))
	assert.NotEqual(t, database.RoundID(session, 3), database.RoundID(uuid.New(), 3))
}

func TestCompletedRoundNotRetrackedByLaterRecords(t *testing.T) {
	sink := &memSink{}
	s := setupService(sink, nil)
	s.BatchSize = 100
	ctx := context.Background()
	session := uuid.New()

	s.Add(ctx, record(session, 1, 1, "PLAY_CARD"))
	s.Add(ctx, record(session, 1, 2, cache.RoundResultAction))
	s.Add(ctx, record(session, 1, 3, "READY_NEXT"))
	s.Add(ctx, record(session, 1, 4, "READY_NEXT"))

	s.Sweep(ctx, time.Now().Add(2*time.Minute))
	assert.Empty(t, sink.abandoned, "finished round stays finished")
	assert.Equal(t, 4, s.Pending(), "records are still batched")
}
