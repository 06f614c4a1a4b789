// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the relay. They give more specific
// reasons for closure than the standard codes.
const (
	BadSubprotocolError websocket.StatusCode = 3000 // Client connected with an unsupported subprotocol.
	InvalidJoinError    websocket.StatusCode = 3001 // First message was not a usable join_room.
	RoomFullError       websocket.StatusCode = 3002 // Both seats of the room are taken.
	BadPasscodeError    websocket.StatusCode = 3003 // Room passcode did not match.
)
