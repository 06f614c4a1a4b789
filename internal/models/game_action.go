package models

// ActionType names a player move.
type ActionType string

const (
	ActionBid       ActionType = "BID"
	ActionPass      ActionType = "PASS"
	ActionPlayCard  ActionType = "PLAY_CARD"
	ActionReadyNext ActionType = "READY_NEXT"
)

// ActionPayload carries the arguments of a move. Only the field relevant to the
// action type is set.
type ActionPayload struct {
	Bid    *Bid   `json:"bid,omitempty"`
	CardID string `json:"cardId,omitempty"`
}

// PlayerAction captures a player's in-game move as exchanged between peers.
type PlayerAction struct {
	Type    ActionType     `json:"type"`
	Payload *ActionPayload `json:"payload,omitempty"`
}

// BidAction builds a BID action.
func BidAction(level int, suit BidSuit, bidder PlayerID) PlayerAction {
	return PlayerAction{Type: ActionBid, Payload: &ActionPayload{Bid: &Bid{Level: level, Suit: suit, Bidder: bidder}}}
}

// PassAction builds a PASS action.
func PassAction() PlayerAction {
	return PlayerAction{Type: ActionPass}
}

// PlayCardAction builds a PLAY_CARD action.
func PlayCardAction(cardID string) PlayerAction {
	return PlayerAction{Type: ActionPlayCard, Payload: &ActionPayload{CardID: cardID}}
}

// ReadyNextAction builds a READY_NEXT action.
func ReadyNextAction() PlayerAction {
	return PlayerAction{Type: ActionReadyNext}
}

// AsPayload flattens the action into a generic map for the action log.
func (a PlayerAction) AsPayload() map[string]interface{} {
	out := map[string]interface{}{}
	if a.Payload == nil {
		return out
	}
	if a.Payload.Bid != nil {
		out["level"] = a.Payload.Bid.Level
		out["suit"] = string(a.Payload.Bid.Suit)
		out["bidder"] = string(a.Payload.Bid.Bidder)
	}
	if a.Payload.CardID != "" {
		out["cardId"] = a.Payload.CardID
	}
	return out
}
