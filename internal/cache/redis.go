// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bridgeduel/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for duel action logs.
var DefaultQueueName = "duel_actions"

// RoundResultAction is the action type of the record written when a round is
// decided. The historian completes the round when it sees one.
const RoundResultAction = "round_result"

// ActionRecord is one entry of the action log drained by the historian.
// SessionID identifies one host engine's lifetime, so deal numbers restarting
// in a reused room do not collide.
type ActionRecord struct {
	SessionID     uuid.UUID              `json:"session_id"`
	RoomID        string                 `json:"room_id"`
	Deal          int                    `json:"deal"`
	ActionIndex   int                    `json:"action_index"`
	Actor         string                 `json:"actor"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// QueueName is the list the records are pushed to (HISTORIAN_QUEUE_NAME).
func QueueName() string {
	return config.GetEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)
}

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := config.GetEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := config.GetEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// PublishAction serializes the record to JSON and pushes it to the queue.
func PublishAction(ctx context.Context, client *redis.Client, record ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}

	queueName := QueueName()
	if err := client.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

// DefaultRecorderBuffer is how many records may wait for Redis before new ones
// are dropped.
const DefaultRecorderBuffer = 256

// Recorder pushes records to Redis without blocking the game. One goroutine
// publishes them in the order they were recorded.
type Recorder struct {
	Client  *redis.Client
	Timeout time.Duration
	Log     *logrus.Entry

	publish func(ctx context.Context, rec ActionRecord) error
	queue   chan ActionRecord
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder returns a recorder on client. A nil client records nothing.
func NewRecorder(client *redis.Client, log *logrus.Entry) *Recorder {
	if client == nil {
		return &Recorder{Log: log}
	}
	r := newRecorder(func(ctx context.Context, rec ActionRecord) error {
		return PublishAction(ctx, client, rec)
	}, DefaultRecorderBuffer, log)
	r.Client = client
	return r
}

func newRecorder(publish func(context.Context, ActionRecord) error, buffer int, log *logrus.Entry) *Recorder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Recorder{
		Timeout: 2 * time.Second,
		Log:     log,
		publish: publish,
		queue:   make(chan ActionRecord, buffer),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
		if err := r.publish(ctx, rec); err != nil {
			r.Log.WithError(err).WithFields(logrus.Fields{
				"room":  rec.RoomID,
				"index": rec.ActionIndex,
			}).Error("failed to publish action")
		}
		cancel()
	}
}

// Record queues rec for publishing. It never blocks; when the buffer is full
// the record is dropped and logged.
func (r *Recorder) Record(_ context.Context, rec ActionRecord) {
	if r == nil || r.queue == nil {
		return
	}
	if rec.ActionPayload == nil {
		rec.ActionPayload = map[string]interface{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.Log.WithFields(logrus.Fields{
			"room":  rec.RoomID,
			"index": rec.ActionIndex,
		}).Warn("action log buffer full, record dropped")
	}
}

// Close publishes what is queued and stops the publisher. Later records are
// ignored.
func (r *Recorder) Close() {
	if r == nil || r.queue == nil {
		return
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

// DecodeAction parses a queued record.
func DecodeAction(raw string) (ActionRecord, error) {
	var rec ActionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ActionRecord{}, fmt.Errorf("failed to decode ActionRecord: %w", err)
	}
	return rec, nil
}
