// internal/game/transition.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/bridgeduel/internal/models"
)

// Effect tells the owner of a state what must happen after a transition.
type Effect uint8

const (
	EffectNone Effect = 0
	// EffectTrickComplete: the second card of a trick was placed; resolution
	// must be scheduled.
	EffectTrickComplete Effect = 1 << iota
	// EffectRedeal: the deal is over (all passed, or both ready) and the
	// authoritative side must deal again.
	EffectRedeal
)

// Has reports whether e includes f.
func (e Effect) Has(f Effect) bool { return e&f != 0 }

// Apply runs action for actor against state and returns the next state. The input
// state is never modified; the returned state shares nothing with it. On error the
// returned state is the unchanged input.
func Apply(state models.GameState, action models.PlayerAction, actor models.PlayerID) (models.GameState, Effect, error) {
	if !actor.Valid() {
		return state, EffectNone, malformed(ErrUnknownAction, "unknown actor %q", actor)
	}

	var (
		next   models.GameState
		effect Effect
		err    error
	)
	switch action.Type {
	case models.ActionBid:
		next, err = applyBid(state, action, actor)
	case models.ActionPass:
		next, effect, err = applyPass(state, actor)
	case models.ActionPlayCard:
		next, effect, err = applyPlayCard(state, action, actor)
	case models.ActionReadyNext:
		next, effect, err = applyReadyNext(state, actor)
	default:
		err = malformed(ErrUnknownAction, "%q", action.Type)
	}
	if err != nil {
		return state, EffectNone, err
	}
	return next, effect, nil
}

func checkBiddingTurn(state models.GameState, actor models.PlayerID) error {
	if state.Phase != models.PhaseBidding {
		return reject(ErrWrongPhase, "bidding is not open (phase %s)", state.Phase)
	}
	if state.CurrentBid == nil && state.PassCount >= 2 {
		return reject(ErrWrongPhase, "deal abandoned, waiting for redeal")
	}
	if state.Turn != actor {
		return reject(ErrNotYourTurn, "waiting for %s", state.Turn)
	}
	return nil
}

func applyBid(state models.GameState, action models.PlayerAction, actor models.PlayerID) (models.GameState, error) {
	if action.Payload == nil || action.Payload.Bid == nil {
		return state, malformed(ErrMissingPayload, "BID requires payload.bid")
	}
	bid := *action.Payload.Bid
	if err := ValidateBid(bid); err != nil {
		return state, err
	}
	if err := checkBiddingTurn(state, actor); err != nil {
		return state, err
	}
	if bid.Bidder != actor {
		return state, reject(ErrIllegalBid, "bid names %s as bidder", bid.Bidder)
	}
	if !IsValidBid(state.CurrentBid, bid) {
		return state, reject(ErrIllegalBid, "%d%s does not beat %d%s",
			bid.Level, bid.Suit, state.CurrentBid.Level, state.CurrentBid.Suit)
	}

	next := state.Clone()
	next.CurrentBid = &bid
	next.Turn = actor.Other()
	next.PassCount = 0
	return next, nil
}

func applyPass(state models.GameState, actor models.PlayerID) (models.GameState, Effect, error) {
	if err := checkBiddingTurn(state, actor); err != nil {
		return state, EffectNone, err
	}

	next := state.Clone()
	next.PassCount++

	if next.CurrentBid != nil {
		// a pass over an outstanding bid closes the auction
		declarer := next.CurrentBid.Bidder
		trump := next.CurrentBid.Suit
		next.Phase = models.PhasePlaying
		next.Declarer = &declarer
		next.Trump = &trump
		next.ContractTarget = BaseTrickTarget + next.CurrentBid.Level
		next.Turn = declarer
		next.CurrentTrick = models.NewTrick(declarer)
		return next, EffectNone, nil
	}
	if next.PassCount >= 2 {
		return next, EffectRedeal, nil
	}
	next.Turn = actor.Other()
	return next, EffectNone, nil
}

func applyPlayCard(state models.GameState, action models.PlayerAction, actor models.PlayerID) (models.GameState, Effect, error) {
	if action.Payload == nil || action.Payload.CardID == "" {
		return state, EffectNone, malformed(ErrMissingPayload, "PLAY_CARD requires payload.cardId")
	}
	if state.Phase != models.PhasePlaying {
		return state, EffectNone, reject(ErrWrongPhase, "play is not open (phase %s)", state.Phase)
	}
	if len(state.CurrentTrick.Cards) >= 2 {
		return state, EffectNone, reject(ErrIllegalPlay, "Trick is complete.")
	}
	if state.Turn != actor {
		return state, EffectNone, reject(ErrNotYourTurn, "waiting for %s", state.Turn)
	}

	hand := state.Hands[actor]
	idx := -1
	for i, c := range hand {
		if c.ID == action.Payload.CardID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return state, EffectNone, reject(ErrCardNotInHand, "%s", action.Payload.CardID)
	}
	card := hand[idx]

	if verdict := CanPlayCard(card, hand, state, actor); !verdict.Valid {
		return state, EffectNone, &RejectionError{Err: ErrIllegalPlay, Reason: verdict.Reason}
	}

	next := state.Clone()
	remaining := make([]models.Card, 0, len(hand)-1)
	remaining = append(remaining, hand[:idx]...)
	remaining = append(remaining, hand[idx+1:]...)
	next.Hands[actor] = remaining
	next.CurrentTrick.Cards = append(next.CurrentTrick.Cards, models.TrickCard{Player: actor, Card: card})

	if next.Trump != nil && next.Trump.IsTrump(card.Suit) {
		next.TrumpBroken = true
	}

	if len(next.CurrentTrick.Cards) < 2 {
		next.Turn = actor.Other()
		return next, EffectNone, nil
	}
	return next, EffectTrickComplete, nil
}

func applyReadyNext(state models.GameState, actor models.PlayerID) (models.GameState, Effect, error) {
	if state.Phase != models.PhaseGameOver {
		return state, EffectNone, reject(ErrWrongPhase, "round is not over (phase %s)", state.Phase)
	}
	next := state.Clone()
	next.ReadyForNext[actor] = true
	if next.ReadyForNext[models.Host] && next.ReadyForNext[models.Peer] {
		return next, EffectRedeal, nil
	}
	return next, EffectNone, nil
}

// ResolveTrick credits the complete trick to its winner, opens the next trick
// and checks whether the round is decided.
func ResolveTrick(state models.GameState) (models.GameState, error) {
	if state.Phase != models.PhasePlaying {
		return state, reject(ErrWrongPhase, "no trick to resolve (phase %s)", state.Phase)
	}
	winner, err := DetermineTrickWinner(state.CurrentTrick.Cards, state.Trump)
	if err != nil {
		return state, err
	}

	next := state.Clone()
	next.Tricks[winner]++
	for _, tc := range next.CurrentTrick.Cards {
		next.WonCards[winner] = append(next.WonCards[winner], tc.Card)
	}
	w := winner
	next.LastWinner = &w
	next.Turn = winner
	next.CurrentTrick = models.NewTrick(winner)
	next.TrickSeq++

	if ShouldEndRound(next) {
		next.Phase = models.PhaseGameOver
	}
	return next, nil
}

// NewDeal builds the next deal from prev. Every container is freshly allocated;
// only the dealer (alternated) and the deal counter carry over.
func NewDeal(prev models.GameState, r Shuffler) models.GameState {
	hostHand, peerHand := Deal(r)
	dealer := prev.Dealer.Other()
	if !prev.Dealer.Valid() {
		dealer = models.Host
	}

	return models.GameState{
		Phase:        models.PhaseBidding,
		Hands:        map[models.PlayerID][]models.Card{models.Host: hostHand, models.Peer: peerHand},
		Dealer:       dealer,
		Turn:         dealer,
		Tricks:       map[models.PlayerID]int{models.Host: 0, models.Peer: 0},
		WonCards:     map[models.PlayerID][]models.Card{models.Host: {}, models.Peer: {}},
		CurrentTrick: models.NewTrick(dealer),
		ReadyForNext: map[models.PlayerID]bool{models.Host: false, models.Peer: false},
		Deal:         prev.Deal + 1,
	}
}

// CheckConservation verifies that the state holds exactly DealtCards distinct
// cards. It is a diagnostic for snapshots received from the network.
func CheckConservation(state models.GameState) error {
	if state.Phase == models.PhaseLobby {
		return nil
	}
	seen := make(map[string]bool, DealtCards)
	for _, c := range state.AllCards() {
		if seen[c.ID] {
			return fmt.Errorf("duplicate card %s", c.ID)
		}
		seen[c.ID] = true
	}
	if len(seen) != DealtCards {
		return fmt.Errorf("expected %d cards, found %d", DealtCards, len(seen))
	}
	return nil
}
