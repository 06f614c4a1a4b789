package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueName(t *testing.T) {
	assert.Equal(t, "duel_actions", QueueName())
	t.Setenv("HISTORIAN_QUEUE_NAME", "other_queue")
	assert.Equal(t, "other_queue", QueueName())
}

func TestDecodeActionUsesWireNames(t *testing.T) {
	raw := `{"room_id":"r1","deal":2,"action_index":5,"actor":"peer","action_type":"BID",` +
		`"action_payload":{"level":3,"suit":"NT"},"timestamp":1700000000000}`

	rec, err := DecodeAction(raw)
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.RoomID)
	assert.Equal(t, 2, rec.Deal)
	assert.Equal(t, 5, rec.ActionIndex)
	assert.Equal(t, "peer", rec.Actor)
	assert.Equal(t, "NT", rec.ActionPayload["suit"])
	assert.EqualValues(t, 3, rec.ActionPayload["level"])

	_, err = DecodeAction("{")
	assert.Error(t, err)
}

func TestRecordEncodesEmptyPayloadAsObject(t *testing.T) {
	data, err := json.Marshal(ActionRecord{RoomID: "r", ActionPayload: map[string]interface{}{}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action_payload":{}`)
}

func TestRecorderWithoutClientIsNoop(t *testing.T) {
	var nilRec *Recorder
	assert.NotPanics(t, func() {
		nilRec.Record(context.Background(), ActionRecord{})
		NewRecorder(nil, nil).Record(context.Background(), ActionRecord{RoomID: "r"})
	})
}

func TestRecorderPublishesInRecordOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []int
	)
	publish := func(_ context.Context, rec ActionRecord) error {
		// early records are slower, which would reorder concurrent publishes
		if rec.ActionIndex < 5 {
			time.Sleep(2 * time.Millisecond)
		}
		mu.Lock()
		defer mu.Unlock()
		got = append(got, rec.ActionIndex)
		return nil
	}
	r := newRecorder(publish, 64, nil)

	want := make([]int, 0, 40)
	for i := 1; i <= 40; i++ {
		r.Record(context.Background(), ActionRecord{RoomID: "r", ActionIndex: i})
		want = append(want, i)
	}
	r.Close()

	assert.Equal(t, want, got)
	assert.NotPanics(t, func() {
		r.Record(context.Background(), ActionRecord{ActionIndex: 41})
		r.Close()
	})
	assert.Len(t, got, 40, "records after Close are ignored")
}

func TestRecorderDropsWhenBufferFull(t *testing.T) {
	release := make(chan struct{})
	var published atomic.Int32
	publish := func(_ context.Context, _ ActionRecord) error {
		<-release
		published.Add(1)
		return nil
	}
	r := newRecorder(publish, 1, nil)

	for i := 1; i <= 10; i++ {
		r.Record(context.Background(), ActionRecord{ActionIndex: i})
	}
	close(release)
	r.Close()

	// one in flight and one buffered at most
	assert.LessOrEqual(t, published.Load(), int32(2))
	assert.GreaterOrEqual(t, published.Load(), int32(1))
}
