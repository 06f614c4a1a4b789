// internal/client/conn.go
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/bridgeduel/internal/models"
	"github.com/sirupsen/logrus"
)

// Subprotocol must match the relay's.
const Subprotocol = "duel"

const writeTimeout = 5 * time.Second

// Handler consumes inbound relay messages.
type Handler interface {
	HandleMessage(ctx context.Context, msg models.Message) error
}

// Conn is a relay connection for one room. It implements replication.Transport.
type Conn struct {
	ws     *websocket.Conn
	roomID string
	log    *logrus.Entry

	writeMu sync.Mutex
}

// Options configure Dial.
type Options struct {
	RoomID   string
	Passcode string
	// Token is a seat token from an earlier role_assigned, used to reclaim a seat.
	Token string
}

// Dial connects to the relay at url and sends join_room.
func Dial(ctx context.Context, url string, opts Options, log *logrus.Entry) (*Conn, error) {
	if opts.RoomID == "" {
		return nil, errors.New("room id is required")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	ws.SetReadLimit(1 << 20)

	c := &Conn{ws: ws, roomID: opts.RoomID, log: log.WithField("room", opts.RoomID)}
	join := models.Message{Type: models.MsgJoinRoom, RoomID: opts.RoomID, Passcode: opts.Passcode, Token: opts.Token}
	if err := c.Send(ctx, join); err != nil {
		ws.Close(websocket.StatusInternalError, "join failed")
		return nil, err
	}
	return c, nil
}

// Send writes one message. Writes are serialized so messages keep their order.
func (c *Conn) Send(ctx context.Context, msg models.Message) error {
	if msg.RoomID == "" {
		msg.RoomID = c.roomID
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := c.ws.Write(wctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

// Ping sends a ping_request stamped with the current time. The pong echoes it.
func (c *Conn) Ping(ctx context.Context) error {
	return c.Send(ctx, models.Message{Type: models.MsgPing, Data: time.Now().UnixMilli()})
}

// Run reads messages and hands them to h until the connection closes or ctx is
// done. A normal close returns nil.
func (c *Conn) Run(ctx context.Context, h Handler) error {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return &CloseError{Status: status, Err: err}
		}
		if typ != websocket.MessageText {
			c.log.Warnf("Received non-text message type %d. Ignoring.", typ)
			continue
		}

		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warnf("Invalid JSON from relay: %v", err)
			continue
		}
		if err := h.HandleMessage(ctx, msg); err != nil {
			c.log.WithError(err).WithField("type", msg.Type).Warn("message handling failed")
		}
	}
}

// Close closes the connection normally.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}

// CloseError reports why the relay ended the connection.
type CloseError struct {
	Status websocket.StatusCode
	Err    error
}

func (e *CloseError) Error() string {
	if e.Status < 0 {
		return fmt.Sprintf("relay connection lost: %v", e.Err)
	}
	return fmt.Sprintf("relay closed connection (%d): %v", e.Status, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }
