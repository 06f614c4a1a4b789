// internal/game/engine.go
package game

import (
	"sync"
	"time"

	"github.com/jason-s-yu/bridgeduel/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultTrickDelay is how long a complete trick stays on the table before it
// is resolved.
const DefaultTrickDelay = 1500 * time.Millisecond

// Change describes why the engine state changed.
type Change string

const (
	ChangeAction Change = "action"
	ChangeTrick  Change = "trick_resolved"
	ChangeReset  Change = "reset_deal"
	ChangeAdopt  Change = "adopt_snapshot"
)

// OnChangeFunc receives a copy of the new state after every change. It is called
// without the engine lock held.
type OnChangeFunc func(state models.GameState, change Change)

// Engine owns one peer's copy of the game state. All mutation goes through
// ApplyAction, ResetDeal, Adopt and the scheduled trick resolution.
type Engine struct {
	Mu sync.Mutex

	state         models.GameState
	authoritative bool
	rng           Shuffler

	// TrickDelay defaults to DefaultTrickDelay. Zero or negative resolves tricks
	// only through ResolvePending.
	TrickDelay time.Duration

	// OnChange is invoked after each state change. If nil, nothing is notified.
	OnChange OnChangeFunc

	Log *logrus.Entry

	trickTimer *time.Timer
	stopped    bool
}

// NewEngine builds an engine in the LOBBY state.
func NewEngine(log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		state:      models.NewGameState(),
		rng:        NewShuffler(),
		TrickDelay: DefaultTrickDelay,
		Log:        log,
	}
}

// SetShuffler replaces the random source used for dealing.
func (e *Engine) SetShuffler(r Shuffler) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	e.rng = r
}

// SetAuthoritative marks this engine as the dealing side.
func (e *Engine) SetAuthoritative(v bool) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	e.authoritative = v
}

// Authoritative reports whether this engine deals.
func (e *Engine) Authoritative() bool {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	return e.authoritative
}

// State returns a deep copy of the current state.
func (e *Engine) State() models.GameState {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	return e.state.Clone()
}

// ApplyAction applies action for actor. On rejection the state is unchanged and
// a *RejectionError is returned. A completed trick schedules its resolution.
// EffectRedeal is reported to the caller, which decides when to call ResetDeal.
func (e *Engine) ApplyAction(actor models.PlayerID, action models.PlayerAction) (Effect, error) {
	e.Mu.Lock()
	next, effect, err := Apply(e.state, action, actor)
	if err != nil {
		e.Mu.Unlock()
		return EffectNone, err
	}
	e.state = next
	if effect.Has(EffectTrickComplete) {
		e.scheduleTrickResolution()
	}
	snap := e.state.Clone()
	e.Mu.Unlock()

	e.Log.WithFields(logrus.Fields{
		"actor": actor,
		"type":  action.Type,
		"phase": snap.Phase,
		"turn":  snap.Turn,
	}).Debug("action applied")
	e.notify(snap, ChangeAction)
	return effect, nil
}

// ResetDeal deals a new round. Only the authoritative engine may deal.
func (e *Engine) ResetDeal() error {
	e.Mu.Lock()
	if !e.authoritative {
		e.Mu.Unlock()
		return ErrNotAuthority
	}
	e.cancelTrickTimer()
	e.state = NewDeal(e.state, e.rng)
	snap := e.state.Clone()
	e.Mu.Unlock()

	e.Log.WithFields(logrus.Fields{"deal": snap.Deal, "dealer": snap.Dealer}).Info("new deal")
	e.notify(snap, ChangeReset)
	return nil
}

// Adopt overwrites the local state with a snapshot from the authoritative side.
// A complete trick in the snapshot is rescheduled locally.
func (e *Engine) Adopt(state models.GameState) {
	e.Mu.Lock()
	e.cancelTrickTimer()
	e.state = state.Clone()
	if e.trickPending() {
		e.scheduleTrickResolution()
	}
	snap := e.state.Clone()
	e.Mu.Unlock()

	e.Log.WithFields(logrus.Fields{"deal": snap.Deal, "phase": snap.Phase}).Info("adopted snapshot")
	e.notify(snap, ChangeAdopt)
}

// ResolvePending resolves a complete trick immediately instead of waiting for
// the delay. It reports whether a trick was resolved.
func (e *Engine) ResolvePending() bool {
	e.Mu.Lock()
	if !e.trickPending() {
		e.Mu.Unlock()
		return false
	}
	e.cancelTrickTimer()
	snap, ok := e.resolveLocked()
	e.Mu.Unlock()
	if ok {
		e.notify(snap, ChangeTrick)
	}
	return ok
}

// Stop cancels any pending timer. A stopped engine schedules nothing further.
func (e *Engine) Stop() {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	e.stopped = true
	e.cancelTrickTimer()
}

// trickPending reports whether a complete trick awaits resolution.
// Assumes lock is held.
func (e *Engine) trickPending() bool {
	return e.state.Phase == models.PhasePlaying && len(e.state.CurrentTrick.Cards) == 2
}

// scheduleTrickResolution arms the resolution timer for the current trick.
// The callback is keyed by (deal, trickSeq) and re-validated on fire.
// Assumes lock is held.
func (e *Engine) scheduleTrickResolution() {
	if e.stopped || e.TrickDelay <= 0 {
		return
	}
	e.cancelTrickTimer()
	deal, seq := e.state.Deal, e.state.TrickSeq
	e.trickTimer = time.AfterFunc(e.TrickDelay, func() {
		e.resolveScheduled(deal, seq)
	})
}

// cancelTrickTimer stops the pending resolution, if any. Assumes lock is held.
func (e *Engine) cancelTrickTimer() {
	if e.trickTimer != nil {
		e.trickTimer.Stop()
		e.trickTimer = nil
	}
}

func (e *Engine) resolveScheduled(deal, seq int) {
	e.Mu.Lock()
	if e.stopped || e.state.Deal != deal || e.state.TrickSeq != seq || !e.trickPending() {
		cur := e.state
		e.Mu.Unlock()
		e.Log.WithFields(logrus.Fields{
			"deal": deal, "trick": seq, "currentDeal": cur.Deal, "currentTrick": cur.TrickSeq, "phase": cur.Phase,
		}).Debug("stale trick timer ignored")
		return
	}
	e.trickTimer = nil
	snap, ok := e.resolveLocked()
	e.Mu.Unlock()
	if ok {
		e.notify(snap, ChangeTrick)
	}
}

// resolveLocked resolves the current trick. Assumes lock is held.
func (e *Engine) resolveLocked() (models.GameState, bool) {
	next, err := ResolveTrick(e.state)
	if err != nil {
		e.Log.WithError(err).Error("trick resolution failed")
		return models.GameState{}, false
	}
	e.state = next
	fields := logrus.Fields{"deal": next.Deal, "trick": next.TrickSeq, "winner": next.Turn}
	if next.Phase == models.PhaseGameOver {
		if res, ok := RoundResult(next); ok {
			fields["made"] = res.Made
			fields["declarerTricks"] = res.DeclarerTricks
			fields["target"] = res.Target
		}
		e.Log.WithFields(fields).Info("round over")
	} else {
		e.Log.WithFields(fields).Debug("trick resolved")
	}
	return next.Clone(), true
}

func (e *Engine) notify(state models.GameState, change Change) {
	if e.OnChange != nil {
		e.OnChange(state, change)
	}
}
