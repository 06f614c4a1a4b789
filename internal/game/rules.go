// internal/game/rules.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/bridgeduel/internal/models"
)

const (
	// BaseTrickTarget is added to the contract level to give the tricks the
	// declarer must take.
	BaseTrickTarget = 9
	// TotalTricks is the number of tricks in a full round.
	TotalTricks = HandSize
)

// IsValidBid reports whether next may supersede current. Any bid opens the
// auction; after that a bid must be strictly higher on (level, strain).
func IsValidBid(current *models.Bid, next models.Bid) bool {
	if current == nil {
		return true
	}
	return next.Beats(*current)
}

// ValidateBid checks the bid's fields, independent of the auction.
func ValidateBid(b models.Bid) error {
	if b.Level < models.MinBidLevel || b.Level > models.MaxBidLevel {
		return malformed(ErrIllegalBid, "level %d out of range %d..%d", b.Level, models.MinBidLevel, models.MaxBidLevel)
	}
	if !b.Suit.Valid() {
		return malformed(ErrIllegalBid, "unknown strain %q", b.Suit)
	}
	if !b.Bidder.Valid() {
		return malformed(ErrIllegalBid, "unknown bidder %q", b.Bidder)
	}
	return nil
}

// PlayVerdict is the outcome of a play legality check.
type PlayVerdict struct {
	Valid  bool
	Reason string
}

func legal() PlayVerdict { return PlayVerdict{Valid: true} }

func illegal(reason string) PlayVerdict { return PlayVerdict{Reason: reason} }

// CanPlayCard decides whether card may be played from hand into the current trick.
func CanPlayCard(card models.Card, hand []models.Card, state models.GameState, player models.PlayerID) PlayVerdict {
	trick := state.CurrentTrick

	switch len(trick.Cards) {
	case 0:
		if state.Trump == nil || !state.Trump.IsTrump(card.Suit) {
			return legal()
		}
		if state.TrumpBroken {
			return legal()
		}
		for _, c := range hand {
			if !state.Trump.IsTrump(c.Suit) {
				return illegal("Cannot lead trump until broken.")
			}
		}
		// only trumps left
		return legal()

	case 1:
		leadSuit := trick.Cards[0].Card.Suit
		if card.Suit == leadSuit {
			return legal()
		}
		for _, c := range hand {
			if c.Suit == leadSuit {
				return illegal(fmt.Sprintf("Must follow suit (%s)", leadSuit.Symbol()))
			}
		}
		return legal()
	}
	return illegal("Trick is complete.")
}

// DetermineTrickWinner resolves a two-card trick under trump.
func DetermineTrickWinner(cards []models.TrickCard, trump *models.BidSuit) (models.PlayerID, error) {
	if len(cards) != 2 {
		return "", malformed(ErrMalformedTrick, "got %d", len(cards))
	}
	lead, follow := cards[0], cards[1]

	leadTrump := trump != nil && trump.IsTrump(lead.Card.Suit)
	followTrump := trump != nil && trump.IsTrump(follow.Card.Suit)

	switch {
	case followTrump && !leadTrump:
		return follow.Player, nil
	case leadTrump && !followTrump:
		return lead.Player, nil
	case lead.Card.Suit == follow.Card.Suit:
		if follow.Card.Value > lead.Card.Value {
			return follow.Player, nil
		}
		return lead.Player, nil
	}
	// off-suit discard never beats the lead
	return lead.Player, nil
}

// ShouldEndRound reports whether the contract outcome is decided: already made,
// already beaten, or no tricks left.
func ShouldEndRound(state models.GameState) bool {
	if state.Declarer == nil {
		return false
	}
	remaining := TotalTricks - state.TricksPlayed()
	declarerWins := state.Tricks[*state.Declarer]
	target := state.ContractTarget

	return declarerWins >= target || declarerWins+remaining < target || remaining == 0
}

// Result summarises a finished (or in-progress) contract.
type Result struct {
	Declarer       models.PlayerID `json:"declarer"`
	Contract       models.Bid      `json:"contract"`
	Target         int             `json:"target"`
	DeclarerTricks int             `json:"declarerTricks"`
	DefenderTricks int             `json:"defenderTricks"`
	Made           bool            `json:"made"`
	Winner         models.PlayerID `json:"winner"`
}

// Won reports whether player won the round: the declarer when the contract is
// made, the defender when it fails.
func (r Result) Won(player models.PlayerID) bool {
	return r.Winner == player
}

// RoundResult scores the contract. ok is false when no contract was played.
func RoundResult(state models.GameState) (res Result, ok bool) {
	if state.Declarer == nil || state.CurrentBid == nil {
		return Result{}, false
	}
	declarer := *state.Declarer
	res = Result{
		Declarer:       declarer,
		Contract:       *state.CurrentBid,
		Target:         state.ContractTarget,
		DeclarerTricks: state.Tricks[declarer],
		DefenderTricks: state.Tricks[declarer.Other()],
	}
	res.Made = res.DeclarerTricks >= res.Target
	if res.Made {
		res.Winner = declarer
	} else {
		res.Winner = declarer.Other()
	}
	return res, true
}
