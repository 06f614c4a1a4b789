// internal/client/commands.go
package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jason-s-yu/bridgeduel/internal/game"
	"github.com/jason-s-yu/bridgeduel/internal/models"
)

// CommandKind is a terminal command verb.
type CommandKind string

const (
	CmdAction CommandKind = "action"
	CmdShow   CommandKind = "show"
	CmdSync   CommandKind = "sync"
	CmdNext   CommandKind = "next"
	CmdPing   CommandKind = "ping"
	CmdHelp   CommandKind = "help"
	CmdQuit   CommandKind = "quit"
)

// Command is one parsed input line.
type Command struct {
	Kind   CommandKind
	Action models.PlayerAction
}

var ErrEmptyCommand = errors.New("empty command")

// Usage lists the commands.
const Usage = `commands:
  bid <level> <suit>   suit is C, D, H, S or NT (e.g. "bid 2 H")
  pass
  play <cardId>        e.g. "play S-A"
  next                 resolve the trick on the table now
  ready                start the next deal once the round is over
  show                 print the table
  sync                 re-synchronise with the opponent
  ping                 measure relay latency
  quit`

// ParseCommand parses a line typed by the player in seat role.
func ParseCommand(line string, role models.PlayerID) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "bid", "b":
		if len(args) != 2 {
			return Command{}, errors.New("usage: bid <level> <suit>")
		}
		level, err := strconv.Atoi(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("bad level %q", args[0])
		}
		suit := models.BidSuit(strings.ToUpper(args[1]))
		if !suit.Valid() {
			return Command{}, fmt.Errorf("bad suit %q (C, D, H, S, NT)", args[1])
		}
		return Command{Kind: CmdAction, Action: models.BidAction(level, suit, role)}, nil
	case "pass", "p":
		return Command{Kind: CmdAction, Action: models.PassAction()}, nil
	case "play":
		if len(args) != 1 {
			return Command{}, errors.New("usage: play <cardId>")
		}
		return Command{Kind: CmdAction, Action: models.PlayCardAction(strings.ToUpper(args[0]))}, nil
	case "ready", "r":
		return Command{Kind: CmdAction, Action: models.ReadyNextAction()}, nil
	case "next", "n":
		return Command{Kind: CmdNext}, nil
	case "show", "s":
		return Command{Kind: CmdShow}, nil
	case "sync":
		return Command{Kind: CmdSync}, nil
	case "ping":
		return Command{Kind: CmdPing}, nil
	case "help", "?":
		return Command{Kind: CmdHelp}, nil
	case "quit", "exit", "q":
		return Command{Kind: CmdQuit}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q (try help)", verb)
}

// Render draws the table as seen from seat me. The opponent's hand is shown as
// a count only.
func Render(s models.GameState, me models.PlayerID) string {
	return RenderWith(s, me, Theme{})
}

// RenderWith is Render styled by theme.
func RenderWith(s models.GameState, me models.PlayerID, theme Theme) string {
	var b strings.Builder
	opp := me.Other()

	b.WriteString(theme.apply(theme.header, fmt.Sprintf("deal %d  phase %s", s.Deal, s.Phase)))
	fmt.Fprintf(&b, "  dealer %s  turn %s\n", s.Dealer, s.Turn)
	if s.CurrentBid != nil {
		fmt.Fprintf(&b, "bid: %d%s by %s", s.CurrentBid.Level, s.CurrentBid.Suit, s.CurrentBid.Bidder)
		if s.Declarer != nil {
			fmt.Fprintf(&b, "  declarer %s needs %d", *s.Declarer, s.ContractTarget)
		}
		b.WriteString("\n")
	}
	if s.Phase == models.PhasePlaying || s.Phase == models.PhaseGameOver {
		fmt.Fprintf(&b, "tricks: you %d, opponent %d  trump broken: %t\n", s.Tricks[me], s.Tricks[opp], s.TrumpBroken)
	}
	if len(s.CurrentTrick.Cards) > 0 {
		b.WriteString("table:")
		for _, tc := range s.CurrentTrick.Cards {
			fmt.Fprintf(&b, " %s(%s)", theme.card(tc.Card, tc.Card.String()), tc.Player)
		}
		b.WriteString("\n")
	}
	b.WriteString(theme.apply(theme.subtle, fmt.Sprintf("opponent holds %d cards", len(s.Hands[opp]))))
	b.WriteString("\n")

	b.WriteString("your hand:")
	for _, c := range s.Hands[me] {
		mark := ""
		if s.Phase == models.PhasePlaying && s.Turn == me && !game.CanPlayCard(c, s.Hands[me], s, me).Valid {
			mark = "x"
		}
		fmt.Fprintf(&b, " %s%s", theme.card(c, c.ID), theme.apply(theme.bad, mark))
	}
	b.WriteString("\n")

	if s.Phase == models.PhaseGameOver {
		if res, ok := game.RoundResult(s); ok {
			verdict := theme.apply(theme.bad, "failed")
			if res.Made {
				verdict = theme.apply(theme.good, "made")
			}
			fmt.Fprintf(&b, "contract %d%s %s (%d/%d). winner: %s\n",
				res.Contract.Level, res.Contract.Suit, verdict, res.DeclarerTricks, res.Target, res.Winner)
		}
		b.WriteString("type 'ready' for the next deal\n")
	}
	return b.String()
}
