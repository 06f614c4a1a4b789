package game

import (
	"errors"
	"fmt"
)

var (
	ErrWrongPhase     = errors.New("action not allowed in this phase")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrIllegalBid     = errors.New("illegal bid")
	ErrIllegalPlay    = errors.New("illegal play")
	ErrCardNotInHand  = errors.New("card not in hand")
	ErrNotAuthority   = errors.New("only the authoritative side may deal")
	ErrMissingPayload = errors.New("action is missing a required payload field")
	ErrUnknownAction  = errors.New("unknown action type")
	ErrMalformedTrick = errors.New("trick must have exactly 2 cards")
)

// RejectionError is returned when the engine refuses an action. Reason is
// suitable for showing to the acting player. Structural rejections indicate a
// malformed action rather than a game situation.
type RejectionError struct {
	Err        error
	Reason     string
	Structural bool
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Reason)
}

func (e *RejectionError) Unwrap() error { return e.Err }

func reject(err error, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Err: err, Reason: fmt.Sprintf(format, args...)}
}

func malformed(err error, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Err: err, Reason: fmt.Sprintf(format, args...), Structural: true}
}

// IsStructural reports whether err is a structural rejection.
func IsStructural(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej) && rej.Structural
}
