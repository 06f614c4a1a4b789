package relay

import (
	"testing"

	"github.com/jason-s-yu/bridgeduel/internal/auth"
	"github.com/jason-s-yu/bridgeduel/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	require.NoError(t, auth.Init())
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return NewStore(logrus.NewEntry(l))
}

// pending drains whatever is queued on m without blocking.
func pending(m *Member) []models.Message {
	var out []models.Message
	for {
		select {
		case msg, ok := <-m.Out():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func types(msgs []models.Message) []models.MessageType {
	var out []models.MessageType
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestJoinAssignsHostThenPeer(t *testing.T) {
	s := setupStore(t)
	host, peer := NewMember(), NewMember()

	role, err := s.Join(JoinRequest{RoomID: "r1"}, host)
	require.NoError(t, err)
	assert.Equal(t, models.Host, role)

	msgs := pending(host)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MsgRoleAssigned, msgs[0].Type)
	assert.Equal(t, models.Host, msgs[0].Role)
	assert.NotEmpty(t, msgs[0].Token)

	role, err = s.Join(JoinRequest{RoomID: "r1"}, peer)
	require.NoError(t, err)
	assert.Equal(t, models.Peer, role)

	assert.Equal(t, []models.MessageType{models.MsgPlayerConnected}, types(pending(host)))
	assert.Equal(t, []models.MessageType{models.MsgRoleAssigned, models.MsgPlayerConnected}, types(pending(peer)))
	assert.Equal(t, 1, s.Count())
}

func TestThirdJoinerRejected(t *testing.T) {
	s := setupStore(t)
	_, err := s.Join(JoinRequest{RoomID: "r1"}, NewMember())
	require.NoError(t, err)
	_, err = s.Join(JoinRequest{RoomID: "r1"}, NewMember())
	require.NoError(t, err)

	_, err = s.Join(JoinRequest{RoomID: "r1"}, NewMember())
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinRequiresRoomID(t *testing.T) {
	s := setupStore(t)
	_, err := s.Join(JoinRequest{RoomID: "  "}, NewMember())
	assert.ErrorIs(t, err, ErrMissingRoomID)
	assert.Zero(t, s.Count())
}

func TestPasscode(t *testing.T) {
	s := setupStore(t)
	_, err := s.Join(JoinRequest{RoomID: "r1", Passcode: "1234"}, NewMember())
	require.NoError(t, err)

	_, err = s.Join(JoinRequest{RoomID: "r1", Passcode: "4321"}, NewMember())
	assert.ErrorIs(t, err, ErrBadPasscode)
	_, err = s.Join(JoinRequest{RoomID: "r1"}, NewMember())
	assert.ErrorIs(t, err, ErrBadPasscode)

	role, err := s.Join(JoinRequest{RoomID: "r1", Passcode: "1234"}, NewMember())
	require.NoError(t, err)
	assert.Equal(t, models.Peer, role)
}

func TestForwardReachesOtherMemberOnly(t *testing.T) {
	s := setupStore(t)
	host, peer := NewMember(), NewMember()
	_, _ = s.Join(JoinRequest{RoomID: "r1"}, host)
	_, _ = s.Join(JoinRequest{RoomID: "r1"}, peer)
	pending(host)
	pending(peer)

	action := models.PassAction()
	assert.True(t, s.Forward("r1", host, models.Message{Type: models.MsgGameAction, Action: &action}))

	got := pending(peer)
	require.Len(t, got, 1)
	assert.Equal(t, models.MsgGameAction, got[0].Type)
	assert.Equal(t, "r1", got[0].RoomID)
	assert.Empty(t, pending(host))

	assert.False(t, s.Forward("nope", host, models.Message{Type: models.MsgSyncRequest}))
}

func TestForwardWithoutOpponent(t *testing.T) {
	s := setupStore(t)
	host := NewMember()
	_, _ = s.Join(JoinRequest{RoomID: "r1"}, host)
	assert.False(t, s.Forward("r1", host, models.Message{Type: models.MsgSyncRequest}))
}

func TestLeaveNotifiesAndDeletes(t *testing.T) {
	s := setupStore(t)
	host, peer := NewMember(), NewMember()
	_, _ = s.Join(JoinRequest{RoomID: "r1"}, host)
	_, _ = s.Join(JoinRequest{RoomID: "r1"}, peer)
	pending(host)

	s.Leave("r1", peer)
	assert.Equal(t, []models.MessageType{models.MsgPlayerDisconnected}, types(pending(host)))
	_, ok := <-peer.Out()
	for ok {
		_, ok = <-peer.Out()
	}
	assert.Equal(t, 1, s.Count())

	// a newcomer takes the free seat
	role, err := s.Join(JoinRequest{RoomID: "r1"}, NewMember())
	require.NoError(t, err)
	assert.Equal(t, models.Peer, role)

	s.Leave("r1", host)
	room, ok := s.GetRoom("r1")
	require.True(t, ok)
	assert.Nil(t, room.Seat(models.Host))
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	s := setupStore(t)
	host := NewMember()
	_, _ = s.Join(JoinRequest{RoomID: "r1"}, host)
	s.Leave("r1", host)
	assert.Zero(t, s.Count())
	s.Leave("r1", host)
}

func TestSeatTokenReclaimsSeat(t *testing.T) {
	s := setupStore(t)
	host, peer := NewMember(), NewMember()
	_, _ = s.Join(JoinRequest{RoomID: "r1", Passcode: "pw"}, host)
	_, _ = s.Join(JoinRequest{RoomID: "r1", Passcode: "pw"}, peer)
	pending(host)
	token := pending(peer)[0].Token
	require.NotEmpty(t, token)

	_, err := s.Join(JoinRequest{RoomID: "r1", Token: token}, NewMember())
	assert.ErrorIs(t, err, ErrSeatTaken)

	// the free host seat does not help a peer token
	s.Leave("r1", host)
	_, err = s.Join(JoinRequest{RoomID: "r1", Token: token}, NewMember())
	assert.ErrorIs(t, err, ErrSeatTaken, "peer seat is still held")

	s.Leave("r1", peer)
	// room deleted; token still names the peer seat of r1
	back := NewMember()
	role, err := s.Join(JoinRequest{RoomID: "r1", Token: token}, back)
	require.NoError(t, err)
	assert.Equal(t, models.Peer, role)
}

func TestSeatTokenReclaimSkipsPasscode(t *testing.T) {
	s := setupStore(t)
	host, peer := NewMember(), NewMember()
	_, _ = s.Join(JoinRequest{RoomID: "r1", Passcode: "pw"}, host)
	_, _ = s.Join(JoinRequest{RoomID: "r1", Passcode: "pw"}, peer)
	token := pending(peer)[0].Token

	s.Leave("r1", peer)
	role, err := s.Join(JoinRequest{RoomID: "r1", Token: token}, NewMember())
	require.NoError(t, err)
	assert.Equal(t, models.Peer, role)
}
