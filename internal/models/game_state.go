package models

import "reflect"

// Phase is the round lifecycle state.
type Phase string

const (
	PhaseLobby    Phase = "LOBBY"
	PhaseBidding  Phase = "BIDDING"
	PhasePlaying  Phase = "PLAYING"
	PhaseGameOver Phase = "GAME_OVER"
)

// TrickCard is one card placed into a trick and who placed it.
type TrickCard struct {
	Player PlayerID `json:"player"`
	Card   Card     `json:"card"`
}

// Trick is the trick in progress. It holds zero, one or two cards.
type Trick struct {
	Leader PlayerID    `json:"leader"`
	Cards  []TrickCard `json:"cards"`
}

// NewTrick opens an empty trick led by leader.
func NewTrick(leader PlayerID) Trick {
	return Trick{Leader: leader, Cards: []TrickCard{}}
}

// GameState is the replicated aggregate. Each peer holds a full copy; the two
// copies are kept equal by applying the same actions in the same order and by
// snapshot re-sync.
//
// All containers are non-nil so a JSON round trip yields an equal value.
type GameState struct {
	Phase          Phase                 `json:"phase"`
	Hands          map[PlayerID][]Card   `json:"hands"`
	Dealer         PlayerID              `json:"dealer"`
	Turn           PlayerID              `json:"turn"`
	CurrentBid     *Bid                  `json:"currentBid"`
	PassCount      int                   `json:"passCount"`
	Declarer       *PlayerID             `json:"declarer"`
	Trump          *BidSuit              `json:"trump"`
	ContractTarget int                   `json:"contractTarget"`
	Tricks         map[PlayerID]int      `json:"tricks"`
	WonCards       map[PlayerID][]Card   `json:"wonCards"`
	CurrentTrick   Trick                 `json:"currentTrick"`
	TrumpBroken    bool                  `json:"trumpBroken"`
	ReadyForNext   map[PlayerID]bool     `json:"readyForNext"`
	LastWinner     *PlayerID             `json:"lastWinner"`

	// Deal counts resets; TrickSeq counts tricks resolved in this deal.
	// Together they key the scheduled trick resolution.
	Deal     int `json:"deal"`
	TrickSeq int `json:"trickSeq"`
}

// NewGameState returns the connection-time state: LOBBY, host dealing, nothing dealt.
func NewGameState() GameState {
	return GameState{
		Phase:        PhaseLobby,
		Hands:        map[PlayerID][]Card{Host: {}, Peer: {}},
		Dealer:       Host,
		Turn:         Host,
		Tricks:       map[PlayerID]int{Host: 0, Peer: 0},
		WonCards:     map[PlayerID][]Card{Host: {}, Peer: {}},
		CurrentTrick: NewTrick(Host),
		ReadyForNext: map[PlayerID]bool{Host: false, Peer: false},
	}
}

// Clone returns a deep copy that shares no slice, map or pointer with s.
func (s GameState) Clone() GameState {
	out := s
	out.Hands = cloneCardMap(s.Hands)
	out.WonCards = cloneCardMap(s.WonCards)
	out.Tricks = make(map[PlayerID]int, len(s.Tricks))
	for k, v := range s.Tricks {
		out.Tricks[k] = v
	}
	out.ReadyForNext = make(map[PlayerID]bool, len(s.ReadyForNext))
	for k, v := range s.ReadyForNext {
		out.ReadyForNext[k] = v
	}
	out.CurrentTrick = Trick{
		Leader: s.CurrentTrick.Leader,
		Cards:  append([]TrickCard{}, s.CurrentTrick.Cards...),
	}
	if s.CurrentBid != nil {
		b := *s.CurrentBid
		out.CurrentBid = &b
	}
	if s.Declarer != nil {
		d := *s.Declarer
		out.Declarer = &d
	}
	if s.Trump != nil {
		t := *s.Trump
		out.Trump = &t
	}
	if s.LastWinner != nil {
		w := *s.LastWinner
		out.LastWinner = &w
	}
	return out
}

func cloneCardMap(in map[PlayerID][]Card) map[PlayerID][]Card {
	out := make(map[PlayerID][]Card, len(in))
	for k, v := range in {
		out[k] = append([]Card{}, v...)
	}
	return out
}

// Equal reports deep equality.
func (s GameState) Equal(other GameState) bool {
	return reflect.DeepEqual(s, other)
}

// AllCards returns every card held in hands, the current trick and won piles.
func (s GameState) AllCards() []Card {
	var out []Card
	for _, p := range Players {
		out = append(out, s.Hands[p]...)
		out = append(out, s.WonCards[p]...)
	}
	for _, tc := range s.CurrentTrick.Cards {
		out = append(out, tc.Card)
	}
	return out
}

// CardCount is len(AllCards()).
func (s GameState) CardCount() int {
	return len(s.AllCards())
}

// TricksPlayed is the number of tricks resolved this deal by both players.
func (s GameState) TricksPlayed() int {
	return s.Tricks[Host] + s.Tricks[Peer]
}
