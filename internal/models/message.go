package models

// MessageType names a wire message exchanged with the relay.
type MessageType string

const (
	MsgJoinRoom           MessageType = "join_room"
	MsgRoleAssigned       MessageType = "role_assigned"
	MsgPlayerConnected    MessageType = "player_connected"
	MsgPlayerDisconnected MessageType = "player_disconnected"
	MsgGameAction         MessageType = "game_action"
	MsgSyncState          MessageType = "sync_state"
	MsgSyncRequest        MessageType = "sync_request"
	MsgError              MessageType = "error_message"
	MsgPing               MessageType = "ping_request"
	MsgPong               MessageType = "pong_response"
)

// Message is the single envelope used on the wire. Only the fields meaningful to
// Type are set.
type Message struct {
	Type     MessageType   `json:"type"`
	RoomID   string        `json:"roomId,omitempty"`
	Role     PlayerID      `json:"role,omitempty"`
	Action   *PlayerAction `json:"action,omitempty"`
	State    *GameState    `json:"state,omitempty"`
	Message  string        `json:"message,omitempty"`
	Token    string        `json:"token,omitempty"`
	Passcode string        `json:"passcode,omitempty"`
	Data     int64         `json:"data,omitempty"`
}

// Relayed reports whether the relay forwards this message type to the other
// member of the room unchanged.
func (t MessageType) Relayed() bool {
	switch t {
	case MsgGameAction, MsgSyncState, MsgSyncRequest:
		return true
	}
	return false
}
