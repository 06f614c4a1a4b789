package models

// PlayerID is one of the two fixed seats in a duel.
type PlayerID string

const (
	Host PlayerID = "host"
	Peer PlayerID = "peer"
)

// Players lists both seats, host first.
var Players = []PlayerID{Host, Peer}

// Other returns the opposing seat.
func (p PlayerID) Other() PlayerID {
	if p == Host {
		return Peer
	}
	return Host
}

// Valid reports whether p names one of the two seats.
func (p PlayerID) Valid() bool {
	return p == Host || p == Peer
}
