package models

// BidSuit is a contract strain: one of the four suits or no trump.
type BidSuit string

const (
	BidClubs    BidSuit = "C"
	BidDiamonds BidSuit = "D"
	BidHearts   BidSuit = "H"
	BidSpades   BidSuit = "S"
	NoTrump     BidSuit = "NT"
)

// BidSuits lists the strains in ascending order.
var BidSuits = []BidSuit{BidClubs, BidDiamonds, BidHearts, BidSpades, NoTrump}

const (
	MinBidLevel = 1
	MaxBidLevel = 7
)

// Rank orders strains C < D < H < S < NT. Unknown strains return -1.
func (s BidSuit) Rank() int {
	switch s {
	case BidClubs:
		return 0
	case BidDiamonds:
		return 1
	case BidHearts:
		return 2
	case BidSpades:
		return 3
	case NoTrump:
		return 4
	}
	return -1
}

// Valid reports whether s is a known strain.
func (s BidSuit) Valid() bool {
	return s.Rank() >= 0
}

// IsTrump reports whether cards of suit c are trump under this strain.
// Nothing is trump in no trump.
func (s BidSuit) IsTrump(c Suit) bool {
	return s != NoTrump && string(s) == string(c)
}

// Bid is a contract offer.
type Bid struct {
	Level  int      `json:"level"`
	Suit   BidSuit  `json:"suit"`
	Bidder PlayerID `json:"bidder"`
}

// Beats reports whether b outranks other on (level, strain).
func (b Bid) Beats(other Bid) bool {
	if b.Level != other.Level {
		return b.Level > other.Level
	}
	return b.Suit.Rank() > other.Suit.Rank()
}
