// internal/replication/peer.go
package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/bridgeduel/internal/cache"
	"github.com/jason-s-yu/bridgeduel/internal/game"
	"github.com/jason-s-yu/bridgeduel/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrParked is returned by Act while the opponent is not connected.
	ErrParked = errors.New("opponent is not connected")
	// ErrNoRole is returned by Act before the relay has assigned a role.
	ErrNoRole = errors.New("no role assigned yet")
)

// Transport delivers a message to the other side of the room.
type Transport interface {
	Send(ctx context.Context, msg models.Message) error
}

// Recorder receives accepted actions and finished rounds for the action log.
type Recorder interface {
	Record(ctx context.Context, rec cache.ActionRecord)
}

// RoundResultAction is the action type used for the record written when a
// round is decided.
const RoundResultAction = cache.RoundResultAction

// Peer runs one side of a duel: it owns the local engine, applies local input
// optimistically, mirrors the opponent's actions and keeps the two copies equal.
type Peer struct {
	mu sync.Mutex

	engine    *game.Engine
	transport Transport
	roomID    string
	role      models.PlayerID
	roleView  atomic.Value // models.PlayerID, readable from callbacks
	parked    bool

	Log *logrus.Entry

	// Recorder, if set, receives every accepted action and round result. Only
	// the host records so each event is logged once.
	Recorder Recorder

	// OnState is called after every state change, outside the engine lock. It
	// may run while the peer lock is held and must not call Act or HandleMessage.
	OnState func(state models.GameState, change game.Change)
	// OnError is called with relay error messages.
	OnError func(msg string)

	session     uuid.UUID
	recMu       sync.Mutex
	actionIndex int
}

// NewPeer wires a peer around engine. The peer starts parked and without a role.
func NewPeer(roomID string, engine *game.Engine, transport Transport, log *logrus.Entry) *Peer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Peer{
		engine:    engine,
		transport: transport,
		roomID:    roomID,
		parked:    true,
		session:   uuid.New(),
		Log:       log.WithField("room", roomID),
	}
	engine.OnChange = p.onEngineChange
	return p
}

// Role returns the assigned role, or "" before assignment. It does not take
// the peer lock, so OnState may call it.
func (p *Peer) Role() models.PlayerID {
	role, _ := p.roleView.Load().(models.PlayerID)
	return role
}

// Parked reports whether local input is currently refused.
func (p *Peer) Parked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parked
}

// State returns a copy of the local game state.
func (p *Peer) State() models.GameState {
	return p.engine.State()
}

// Engine exposes the underlying engine.
func (p *Peer) Engine() *game.Engine {
	return p.engine
}

// Close stops the engine's timers.
func (p *Peer) Close() {
	p.engine.Stop()
}

// Act applies a local action and, once accepted, broadcasts it. Rejected
// actions are returned to the caller and never sent.
func (p *Peer) Act(ctx context.Context, action models.PlayerAction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.role == "" {
		return ErrNoRole
	}
	if p.parked {
		return ErrParked
	}
	effect, err := p.engine.ApplyAction(p.role, action)
	if err != nil {
		return err
	}
	p.recordAction(ctx, p.role, action)

	act := action
	if err := p.send(ctx, models.Message{Type: models.MsgGameAction, Action: &act}); err != nil {
		return fmt.Errorf("broadcast %s: %w", action.Type, err)
	}
	return p.afterEffect(ctx, effect)
}

// ResolveTrick resolves a complete trick on the table without waiting for the
// trick delay. It reports whether there was one.
func (p *Peer) ResolveTrick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.ResolvePending()
}

// RequestSync asks for a re-baseline: the host pushes its snapshot, the peer
// requests one.
func (p *Peer) RequestSync(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resync(ctx)
}

// HandleMessage dispatches one inbound relay message.
func (p *Peer) HandleMessage(ctx context.Context, msg models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Type {
	case models.MsgRoleAssigned:
		return p.handleRoleAssigned(ctx, msg.Role)

	case models.MsgPlayerConnected:
		p.parked = false
		p.Log.Info("opponent connected")
		if p.engine.Authoritative() {
			return p.pushState(ctx)
		}

	case models.MsgPlayerDisconnected:
		p.parked = true
		p.Log.Warn("opponent disconnected, input parked")

	case models.MsgGameAction:
		return p.handleRemoteAction(ctx, msg.Action)

	case models.MsgSyncState:
		if msg.State == nil {
			p.Log.Warn("sync_state without state dropped")
			return nil
		}
		if p.engine.Authoritative() {
			p.Log.Warn("ignoring snapshot on the authoritative side")
			return nil
		}
		if err := game.CheckConservation(*msg.State); err != nil {
			p.Log.WithError(err).Warn("adopting snapshot that fails card conservation")
		}
		p.engine.Adopt(*msg.State)

	case models.MsgSyncRequest:
		if p.engine.Authoritative() {
			p.Log.Info("sync requested by opponent")
			return p.pushState(ctx)
		}

	case models.MsgError:
		p.Log.WithField("message", msg.Message).Warn("relay error")
		if p.OnError != nil {
			p.OnError(msg.Message)
		}

	case models.MsgPong:
		if msg.Data > 0 {
			rtt := time.Since(time.UnixMilli(msg.Data))
			p.Log.WithField("rtt", rtt).Debug("pong")
		}

	default:
		p.Log.WithField("type", msg.Type).Debug("unhandled message")
	}
	return nil
}

// Assumes lock is held.
func (p *Peer) handleRoleAssigned(ctx context.Context, role models.PlayerID) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	p.role = role
	p.roleView.Store(role)
	p.Log = p.Log.WithField("role", role)
	p.engine.SetAuthoritative(role == models.Host)
	p.Log.Info("role assigned")

	// the host deals once per session; a reclaimed seat keeps its game
	if role == models.Host && p.engine.State().Phase == models.PhaseLobby {
		if err := p.engine.ResetDeal(); err != nil {
			return err
		}
	}
	return nil
}

// Assumes lock is held.
func (p *Peer) handleRemoteAction(ctx context.Context, action *models.PlayerAction) error {
	if action == nil {
		p.Log.Warn("game_action without action dropped")
		return nil
	}
	if p.role == "" {
		p.Log.Warn("game_action before role assignment dropped")
		return nil
	}
	actor := p.role.Other()
	// the opponent may lead before our trick timer fires; both replicas resolve
	// the trick the same way, so resolve it here instead of diverging
	if action.Type == models.ActionPlayCard && p.engine.ResolvePending() {
		p.Log.WithField("actor", actor).Debug("resolved pending trick ahead of remote lead")
	}
	effect, err := p.engine.ApplyAction(actor, *action)
	if err != nil {
		fields := logrus.Fields{"actor": actor, "type": action.Type}
		if game.IsStructural(err) {
			p.Log.WithFields(fields).WithError(err).Warn("malformed remote action dropped")
			return nil
		}
		p.Log.WithFields(fields).WithError(err).Warn("remote action rejected, states diverged")
		return p.resync(ctx)
	}
	p.recordAction(ctx, actor, *action)
	return p.afterEffect(ctx, effect)
}

// afterEffect performs the follow-up an accepted action requires. Only the
// authoritative side deals; the other side waits for its snapshot.
// Assumes lock is held.
func (p *Peer) afterEffect(ctx context.Context, effect game.Effect) error {
	if !effect.Has(game.EffectRedeal) || !p.engine.Authoritative() {
		return nil
	}
	if err := p.engine.ResetDeal(); err != nil {
		return err
	}
	return p.pushState(ctx)
}

// Assumes lock is held.
func (p *Peer) resync(ctx context.Context) error {
	if p.engine.Authoritative() {
		return p.pushState(ctx)
	}
	return p.send(ctx, models.Message{Type: models.MsgSyncRequest})
}

// Assumes lock is held.
func (p *Peer) pushState(ctx context.Context) error {
	snap := p.engine.State()
	p.Log.WithFields(logrus.Fields{"deal": snap.Deal, "phase": snap.Phase}).Debug("pushing snapshot")
	return p.send(ctx, models.Message{Type: models.MsgSyncState, State: &snap})
}

func (p *Peer) send(ctx context.Context, msg models.Message) error {
	msg.RoomID = p.roomID
	if err := p.transport.Send(ctx, msg); err != nil {
		p.Log.WithError(err).WithField("type", msg.Type).Error("send failed")
		return err
	}
	return nil
}

// onEngineChange runs on the engine's notification path, which may be the trick
// timer goroutine. It must not take p.mu.
func (p *Peer) onEngineChange(state models.GameState, change game.Change) {
	if change == game.ChangeTrick && state.Phase == models.PhaseGameOver && p.engine.Authoritative() {
		if res, ok := game.RoundResult(state); ok {
			p.record(context.Background(), state.Deal, res.Declarer, RoundResultAction, map[string]interface{}{
				"declarer":       string(res.Declarer),
				"level":          res.Contract.Level,
				"suit":           string(res.Contract.Suit),
				"target":         res.Target,
				"declarerTricks": res.DeclarerTricks,
				"defenderTricks": res.DefenderTricks,
				"made":           res.Made,
				"winner":         string(res.Winner),
			})
		}
	}
	if p.OnState != nil {
		p.OnState(state, change)
	}
}

func (p *Peer) recordAction(ctx context.Context, actor models.PlayerID, action models.PlayerAction) {
	if !p.engine.Authoritative() {
		return
	}
	p.record(ctx, p.engine.State().Deal, actor, string(action.Type), action.AsPayload())
}

func (p *Peer) record(ctx context.Context, deal int, actor models.PlayerID, actionType string, payload map[string]interface{}) {
	if p.Recorder == nil {
		return
	}
	p.recMu.Lock()
	p.actionIndex++
	idx := p.actionIndex
	p.recMu.Unlock()

	p.Recorder.Record(ctx, cache.ActionRecord{
		SessionID:     p.session,
		RoomID:        p.roomID,
		Deal:          deal,
		ActionIndex:   idx,
		Actor:         string(actor),
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	})
}
