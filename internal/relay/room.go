// internal/relay/room.go
package relay

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bridgeduel/internal/models"
)

// DefaultOutboxSize bounds the messages queued for one connection.
const DefaultOutboxSize = 64

// Member is one connection seated in a room. Messages for it are queued on its
// outbox and written by the connection's writer in order.
type Member struct {
	ConnID uuid.UUID
	Role   models.PlayerID

	out     chan models.Message
	closed  atomic.Bool
	dropped atomic.Int64
}

// NewMember creates an unseated member with a fresh connection id.
func NewMember() *Member {
	return &Member{
		ConnID: uuid.New(),
		out:    make(chan models.Message, DefaultOutboxSize),
	}
}

// Out is the member's outbox. It is closed when the member leaves.
func (m *Member) Out() <-chan models.Message {
	return m.out
}

// Dropped is the number of messages discarded because the outbox was full.
func (m *Member) Dropped() int64 {
	return m.dropped.Load()
}

// deliver queues msg without blocking. Assumes the store lock is held, which
// orders deliver against close.
func (m *Member) deliver(msg models.Message) bool {
	if m.closed.Load() {
		return false
	}
	select {
	case m.out <- msg:
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

// close shuts the outbox. Assumes the store lock is held.
func (m *Member) close() {
	if m.closed.CompareAndSwap(false, true) {
		close(m.out)
	}
}

// Room pairs at most one host and one peer.
type Room struct {
	ID           string
	PasscodeHash string
	CreatedAt    time.Time

	seats map[models.PlayerID]*Member
}

func newRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		seats:     make(map[models.PlayerID]*Member, 2),
	}
}

// Seat returns the member in role, or nil.
func (r *Room) Seat(role models.PlayerID) *Member {
	return r.seats[role]
}

// freeRole returns the first empty seat, host first.
func (r *Room) freeRole() (models.PlayerID, bool) {
	for _, role := range models.Players {
		if r.seats[role] == nil {
			return role, true
		}
	}
	return "", false
}

func (r *Room) full() bool {
	return r.seats[models.Host] != nil && r.seats[models.Peer] != nil
}

func (r *Room) empty() bool {
	return r.seats[models.Host] == nil && r.seats[models.Peer] == nil
}
