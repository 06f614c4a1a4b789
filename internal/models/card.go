package models

// Suit is a card suit. The single letter form is also the wire form.
type Suit string

const (
	Clubs    Suit = "C"
	Diamonds Suit = "D"
	Hearts   Suit = "H"
	Spades   Suit = "S"
)

// Suits lists the card suits in deck generation order.
var Suits = []Suit{Clubs, Diamonds, Hearts, Spades}

// Symbol returns the printable glyph for the suit, or the letter if unknown.
func (s Suit) Symbol() string {
	switch s {
	case Clubs:
		return "♣"
	case Diamonds:
		return "♦"
	case Hearts:
		return "♥"
	case Spades:
		return "♠"
	}
	return string(s)
}

// Valid reports whether s is one of the four card suits.
func (s Suit) Valid() bool {
	switch s {
	case Clubs, Diamonds, Hearts, Spades:
		return true
	}
	return false
}

// Rank is a card rank, "2" through "10", then "J", "Q", "K", "A".
type Rank string

// Ranks lists the card ranks from lowest to highest.
var Ranks = []Rank{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

var rankValues = map[Rank]int{
	"2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8, "9": 9, "10": 10,
	"J": 11, "Q": 12, "K": 13, "A": 14,
}

// Value returns the rank's strength, 2 through 14. Unknown ranks return 0.
func (r Rank) Value() int {
	return rankValues[r]
}

// Card is an immutable playing card. Cards are copied by value between containers.
type Card struct {
	ID    string `json:"id"`
	Suit  Suit   `json:"suit"`
	Rank  Rank   `json:"rank"`
	Value int    `json:"value"`
}

// NewCard builds the card for a suit and rank with its stable id ("S-A", "H-10").
func NewCard(suit Suit, rank Rank) Card {
	return Card{
		ID:    CardID(suit, rank),
		Suit:  suit,
		Rank:  rank,
		Value: rank.Value(),
	}
}

// CardID returns the composite id of a suit and rank.
func CardID(suit Suit, rank Rank) string {
	return string(suit) + "-" + string(rank)
}

func (c Card) String() string {
	return string(c.Rank) + c.Suit.Symbol()
}
