// internal/game/deck.go
package game

import (
	"math/rand"
	"sort"
	"time"

	"github.com/jason-s-yu/bridgeduel/internal/models"
)

const (
	// DiscardCount cards are burned off the top of a shuffled pack before dealing.
	DiscardCount = 14
	// HandSize is the number of cards dealt to each player.
	HandSize = 19
	// DealtCards is the effective pack size for a round.
	DealtCards = 2 * HandSize
)

// Shuffler is the random source used for shuffling. *rand.Rand satisfies it.
type Shuffler interface {
	Intn(n int) int
}

// NewShuffler returns a time-seeded source.
func NewShuffler() Shuffler {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// GenerateDeck builds the 52-card population.
func GenerateDeck() []models.Card {
	deck := make([]models.Card, 0, len(models.Suits)*len(models.Ranks))
	for _, suit := range models.Suits {
		for _, rank := range models.Ranks {
			deck = append(deck, models.NewCard(suit, rank))
		}
	}
	return deck
}

// Shuffle returns a Fisher-Yates permutation of deck. The input is not modified.
func Shuffle(deck []models.Card, r Shuffler) []models.Card {
	out := append([]models.Card{}, deck...)
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Deal shuffles a fresh deck, burns DiscardCount cards and deals HandSize sorted
// cards to each player.
func Deal(r Shuffler) (host, peer []models.Card) {
	shuffled := Shuffle(GenerateDeck(), r)
	playing := shuffled[DiscardCount:]
	host = SortHand(playing[:HandSize])
	peer = SortHand(playing[HandSize:DealtCards])
	return host, peer
}

var displaySuitOrder = map[models.Suit]int{
	models.Spades:   0,
	models.Hearts:   1,
	models.Diamonds: 2,
	models.Clubs:    3,
}

// SortHand returns a copy of hand ordered S, H, D, C with ranks descending.
// The order is for display only.
func SortHand(hand []models.Card) []models.Card {
	out := append([]models.Card{}, hand...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Suit != b.Suit {
			return displaySuitOrder[a.Suit] < displaySuitOrder[b.Suit]
		}
		return a.Value > b.Value
	})
	return out
}
