// internal/historian/historian.go drains the action log from Redis and
// persists it to PostgreSQL in batches, marking rounds abandoned when they go
// quiet.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bridgeduel/internal/cache"
	"github.com/jason-s-yu/bridgeduel/internal/config"
	"github.com/jason-s-yu/bridgeduel/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source yields queued action records. ok is false when nothing arrived
// before the source's own timeout.
type Source interface {
	Next(ctx context.Context) (rec cache.ActionRecord, ok bool, err error)
}

// Sink stores batches and closes abandoned rounds.
type Sink interface {
	Persist(ctx context.Context, recs []cache.ActionRecord) error
	Abandon(ctx context.Context, roundID uuid.UUID) error
}

// Service accumulates records from Source and flushes them to Sink when the
// batch fills or FlushDelay elapses.
type Service struct {
	Source Source
	Sink   Sink
	Log    *logrus.Entry

	BatchSize     int
	FlushDelay    time.Duration
	Inactivity    time.Duration
	SweepInterval time.Duration

	batchMu sync.Mutex
	batch   []cache.ActionRecord

	lastActivity sync.Map // map[uuid.UUID]time.Time, keyed by round id
	completed    sync.Map // map[uuid.UUID]time.Time, rounds that saw a round_result
}

// NewService reads HISTORIAN_BATCH_SIZE, HISTORIAN_FLUSH_MS and
// ROUND_INACTIVITY_TIMEOUT_SEC.
func NewService(src Source, sink Sink, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	batchSize := config.GetEnvInt("HISTORIAN_BATCH_SIZE", 20)
	if batchSize < 1 {
		batchSize = 1
	}
	return &Service{
		Source:        src,
		Sink:          sink,
		Log:           log,
		BatchSize:     batchSize,
		FlushDelay:    time.Duration(config.GetEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		Inactivity:    time.Duration(config.GetEnvInt("ROUND_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
		SweepInterval: time.Minute,
	}
}

// Run starts the read, flush and inactivity loops and blocks until ctx is
// done. Whatever is still batched is flushed before returning.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.flushLoop(gctx) })
	g.Go(func() error { return s.inactivityLoop(gctx) })

	s.Log.Info("historian started")
	err := g.Wait()

	fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := s.Flush(fctx); ferr != nil {
		s.Log.WithError(ferr).Error("final flush failed")
	}
	s.Log.Info("historian stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		rec, ok, err := s.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.Log.WithError(err).Warn("reading action queue")
			continue
		}
		if !ok {
			continue
		}
		s.Add(ctx, rec)
	}
}

func (s *Service) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.Log.WithError(err).Error("flush failed")
			}
		}
	}
}

func (s *Service) inactivityLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Sweep(ctx, now)
		}
	}
}

// Add tracks the record's round and appends it to the batch, flushing once the
// batch is full.
func (s *Service) Add(ctx context.Context, rec cache.ActionRecord) {
	roundID := database.RoundID(rec.SessionID, rec.Deal)
	switch {
	case rec.ActionType == cache.RoundResultAction:
		s.completed.Store(roundID, time.Now())
		s.lastActivity.Delete(roundID)
	case s.isCompleted(roundID):
		// READY_NEXT after the result still carries the finished deal
	default:
		s.lastActivity.Store(roundID, time.Now())
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.BatchSize
	s.batchMu.Unlock()

	if full {
		if err := s.Flush(ctx); err != nil {
			s.Log.WithError(err).Error("flush failed")
		}
	}
}

func (s *Service) isCompleted(roundID uuid.UUID) bool {
	_, ok := s.completed.Load(roundID)
	return ok
}

// Pending returns the number of batched records.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// Flush writes the current batch in one call to the sink. A failed batch is
// dropped and logged; the queue is not replayed.
func (s *Service) Flush(ctx context.Context) error {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return nil
	}
	batch := make([]cache.ActionRecord, len(s.batch))
	copy(batch, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.Sink.Persist(ctx, batch); err != nil {
		return err
	}
	s.Log.WithField("count", len(batch)).Debug("flushed actions")
	return nil
}

// Sweep abandons every round idle for longer than Inactivity as of now and
// forgets completed rounds older than that.
func (s *Service) Sweep(ctx context.Context, now time.Time) {
	s.completed.Range(func(key, val interface{}) bool {
		if at, ok := val.(time.Time); ok && now.Sub(at) > s.Inactivity {
			s.completed.Delete(key)
		}
		return true
	})

	s.lastActivity.Range(func(key, val interface{}) bool {
		roundID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.Inactivity {
			return true
		}
		// pending actions of the round must land before it is closed
		if err := s.Flush(ctx); err != nil {
			s.Log.WithError(err).Error("flush before abandon failed")
		}
		if err := s.Sink.Abandon(ctx, roundID); err != nil {
			s.Log.WithError(err).WithField("round", roundID).Error("failed to mark round abandoned")
			return true
		}
		s.lastActivity.Delete(roundID)
		s.Log.WithField("round", roundID).Info("round marked abandoned after inactivity")
		return true
	})
}

// RedisSource pops records from a Redis list.
type RedisSource struct {
	Client  *redis.Client
	Queue   string
	Timeout time.Duration
}

// NewRedisSource reads from cache.QueueName().
func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{Client: client, Queue: cache.QueueName(), Timeout: 3 * time.Second}
}

func (r *RedisSource) Next(ctx context.Context) (cache.ActionRecord, bool, error) {
	res, err := r.Client.BLPop(ctx, r.Timeout, r.Queue).Result()
	if errors.Is(err, redis.Nil) {
		return cache.ActionRecord{}, false, nil
	}
	if err != nil {
		return cache.ActionRecord{}, false, err
	}
	// res[0] is the queue name
	if len(res) < 2 {
		return cache.ActionRecord{}, false, nil
	}
	rec, err := cache.DecodeAction(res[1])
	if err != nil {
		return cache.ActionRecord{}, false, err
	}
	return rec, true, nil
}

// PGSink writes through the database package.
type PGSink struct {
	DB database.TxBeginner
}

func (p *PGSink) Persist(ctx context.Context, recs []cache.ActionRecord) error {
	return database.PersistActions(ctx, p.DB, recs)
}

func (p *PGSink) Abandon(ctx context.Context, roundID uuid.UUID) error {
	return database.MarkRoundAbandoned(ctx, p.DB, roundID)
}
