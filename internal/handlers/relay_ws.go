// internal/handlers/relay_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/bridgeduel/internal/middleware"
	"github.com/jason-s-yu/bridgeduel/internal/models"
	"github.com/jason-s-yu/bridgeduel/internal/relay"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the WebSocket subprotocol clients must request.
const Subprotocol = "duel"

const (
	joinTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
	readLimit    = 1 << 20
)

// RelayWSHandler upgrades the connection, seats the client in the room named by
// its first join_room message and then relays game traffic to the other seat.
func RelayWSHandler(logger *logrus.Logger, store *relay.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error from %s: %v", r.RemoteAddr, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != Subprotocol {
			logger.Warnf("Client %s connected with invalid subprotocol: %q", r.RemoteAddr, c.Subprotocol())
			c.Close(BadSubprotocolError, "Client must use the 'duel' subprotocol.")
			return
		}
		c.SetReadLimit(readLimit)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		join, err := readJoin(ctx, c)
		if err != nil {
			logger.WithField("remote", r.RemoteAddr).Warnf("Rejecting connection: %v", err)
			sendWsError(ctx, c, "First message must be join_room with a roomId.")
			c.Close(InvalidJoinError, "join_room expected")
			return
		}
		if join.Token == "" {
			join.Token = seatTokenFromRequest(r)
		}

		member := relay.NewMember()
		roomID := strings.TrimSpace(join.RoomID)
		role, err := store.Join(relay.JoinRequest{RoomID: roomID, Passcode: join.Passcode, Token: join.Token}, member)
		if err != nil {
			rejectJoin(ctx, c, logger, roomID, err)
			middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
			return
		}

		log := logger.WithFields(logrus.Fields{"room": roomID, "role": role, "conn": member.ConnID})

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writeRelayMessages(ctx, c, member, log)
		}()

		readErr := readRelayMessages(ctx, c, store, roomID, member, log)

		store.Leave(roomID, member)
		cancel()
		<-writerDone
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readJoin reads the first message, which must be a join_room.
func readJoin(ctx context.Context, c *websocket.Conn) (models.Message, error) {
	jctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	typ, data, err := c.Read(jctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("read join: %w", err)
	}
	if typ != websocket.MessageText {
		return models.Message{}, errors.New("join must be a text message")
	}
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.Message{}, fmt.Errorf("decode join: %w", err)
	}
	if msg.Type != models.MsgJoinRoom || strings.TrimSpace(msg.RoomID) == "" {
		return models.Message{}, fmt.Errorf("unexpected first message %q", msg.Type)
	}
	return msg, nil
}

func rejectJoin(ctx context.Context, c *websocket.Conn, logger *logrus.Logger, roomID string, err error) {
	log := logger.WithField("room", roomID).WithError(err)
	switch {
	case errors.Is(err, relay.ErrRoomFull), errors.Is(err, relay.ErrSeatTaken):
		log.Info("Room is full, rejecting join")
		sendWsError(ctx, c, relay.RoomFullMessage)
		c.Close(RoomFullError, "room full")
	case errors.Is(err, relay.ErrBadPasscode):
		log.Info("Wrong passcode, rejecting join")
		sendWsError(ctx, c, "Wrong passcode.")
		c.Close(BadPasscodeError, "bad passcode")
	default:
		log.Warn("Join failed")
		sendWsError(ctx, c, "Could not join room.")
		c.Close(InvalidJoinError, "join failed")
	}
}

// writeRelayMessages writes the member's outbox in order until it is closed.
func writeRelayMessages(ctx context.Context, c *websocket.Conn, m *relay.Member, log *logrus.Entry) {
	for msg := range m.Out() {
		if err := sendWsMessage(ctx, c, msg); err != nil {
			log.Warnf("Failed to write %s: %v", msg.Type, err)
			// unblocks the read loop, which then frees the seat
			c.Close(websocket.StatusInternalError, "write failed")
			return
		}
	}
}

// readRelayMessages forwards relayed types to the other seat and answers pings.
// It returns the error that ended the loop, nil on a normal close.
func readRelayMessages(ctx context.Context, c *websocket.Conn, store *relay.Store, roomID string, m *relay.Member, log *logrus.Entry) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				log.Info("WebSocket closed normally.")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				log.Info("WebSocket context canceled.")
				return nil
			}
			log.Warnf("Error reading from WebSocket: %v (Status: %d)", err, status)
			return err
		}
		if typ != websocket.MessageText {
			log.Warnf("Received non-text message type %d. Ignoring.", typ)
			continue
		}

		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("Invalid JSON received: %v", err)
			store.Reply(m, models.Message{Type: models.MsgError, Message: "Invalid JSON format."})
			continue
		}

		switch {
		case msg.Type.Relayed():
			if msg.Type == models.MsgGameAction && msg.Action != nil {
				log.Debugf("Relaying game action %s", msg.Action.Type)
			} else {
				log.Debugf("Relaying %s", msg.Type)
			}
			store.Forward(roomID, m, msg)
		case msg.Type == models.MsgPing:
			store.Reply(m, models.Message{Type: models.MsgPong, Data: msg.Data})
		case msg.Type == models.MsgJoinRoom:
			store.Reply(m, models.Message{Type: models.MsgError, Message: "Already joined."})
		default:
			log.Warnf("Unknown message type %q. Ignoring.", msg.Type)
		}
	}
}

func sendWsMessage(ctx context.Context, c *websocket.Conn, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.Write(wctx, websocket.MessageText, data)
}

// sendWsError writes an error_message directly, bypassing any outbox.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	_ = sendWsMessage(ctx, c, models.Message{Type: models.MsgError, Message: errorMsg})
}
