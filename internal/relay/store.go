// internal/relay/store.go
package relay

import (
	"errors"
	"strings"
	"sync"

	"github.com/jason-s-yu/bridgeduel/internal/auth"
	"github.com/jason-s-yu/bridgeduel/internal/models"
	"github.com/sirupsen/logrus"
)

// RoomFullMessage is the error text sent to a third joiner.
const RoomFullMessage = "Room is full."

var (
	ErrRoomFull      = errors.New("room is full")
	ErrBadPasscode   = errors.New("wrong room passcode")
	ErrMissingRoomID = errors.New("join_room requires a roomId")
	ErrSeatTaken     = errors.New("seat is already taken")
)

// JoinRequest is the content of a join_room message.
type JoinRequest struct {
	RoomID   string
	Passcode string
	Token    string
}

// TokenIssuer signs a seat token for role in roomID.
type TokenIssuer func(roomID string, role models.PlayerID) (string, error)

// Store holds the live rooms. All seating and delivery happens under its lock,
// so both members of a room observe notifications in the same order.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room

	IssueToken TokenIssuer
	Log        *logrus.Entry
}

// NewStore returns an empty store issuing tokens with auth.CreateSeatToken.
func NewStore(log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		rooms:      make(map[string]*Room),
		IssueToken: auth.CreateSeatToken,
		Log:        log,
	}
}

// Join seats m in the requested room and queues role_assigned for it. When the
// room becomes full both members are sent player_connected.
//
// A valid seat token reclaims its seat if that seat is empty and skips the
// passcode check. Otherwise the room's first empty seat is taken, host first.
func (s *Store) Join(req JoinRequest, m *Member) (models.PlayerID, error) {
	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		return "", ErrMissingRoomID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[roomID]
	if !exists {
		room = newRoom(roomID)
		if req.Passcode != "" {
			hash, err := auth.HashPasscode(req.Passcode, auth.PasscodeParams)
			if err != nil {
				return "", err
			}
			room.PasscodeHash = hash
		}
	}

	role, err := s.pickSeat(room, req)
	if err != nil {
		return "", err
	}

	token, err := s.IssueToken(roomID, role)
	if err != nil {
		return "", err
	}

	if !exists {
		s.rooms[roomID] = room
	}
	m.Role = role
	room.seats[role] = m

	log := s.Log.WithFields(logrus.Fields{"room": roomID, "role": role, "conn": m.ConnID})
	log.Info("seat assigned")

	m.deliver(models.Message{Type: models.MsgRoleAssigned, RoomID: roomID, Role: role, Token: token})
	if room.full() {
		for _, member := range room.seats {
			member.deliver(models.Message{Type: models.MsgPlayerConnected, RoomID: roomID})
		}
		log.Info("room full, players connected")
	}
	return role, nil
}

// pickSeat chooses the seat for req. Assumes lock is held.
func (s *Store) pickSeat(room *Room, req JoinRequest) (models.PlayerID, error) {
	if req.Token != "" {
		role, err := auth.AuthenticateSeat(req.Token, room.ID)
		if err == nil {
			if room.seats[role] != nil {
				return "", ErrSeatTaken
			}
			return role, nil
		}
		s.Log.WithError(err).WithField("room", room.ID).Debug("seat token ignored")
	}

	role, ok := room.freeRole()
	if !ok {
		return "", ErrRoomFull
	}
	if room.PasscodeHash != "" && !room.empty() {
		ok, err := auth.VerifyPasscode(req.Passcode, room.PasscodeHash)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrBadPasscode
		}
	}
	return role, nil
}

// Leave unseats m, tells the other member and deletes the room once empty.
// It also closes m's outbox.
func (s *Store) Leave(roomID string, m *Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer m.close()

	room, ok := s.rooms[roomID]
	if !ok || room.seats[m.Role] != m {
		return
	}
	delete(room.seats, m.Role)

	if other := room.seats[m.Role.Other()]; other != nil {
		other.deliver(models.Message{Type: models.MsgPlayerDisconnected, RoomID: roomID})
	}
	log := s.Log.WithFields(logrus.Fields{"room": roomID, "role": m.Role, "conn": m.ConnID})
	log.Info("seat freed")

	if room.empty() {
		delete(s.rooms, roomID)
		log.Info("room deleted (empty)")
	}
}

// Forward delivers msg from m to the other member of its room. It reports
// whether anybody received it.
func (s *Store) Forward(roomID string, from *Member, msg models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || room.seats[from.Role] != from {
		return false
	}
	to := room.seats[from.Role.Other()]
	if to == nil {
		return false
	}
	msg.RoomID = roomID
	if !to.deliver(msg) {
		s.Log.WithFields(logrus.Fields{"room": roomID, "to": to.Role, "type": msg.Type}).Warn("outbox full, message dropped")
		return false
	}
	return true
}

// Reply queues msg for m alone.
func (s *Store) Reply(m *Member, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.deliver(msg)
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// GetRoom returns the room with id, if live.
func (s *Store) GetRoom(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}
