package client

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/jason-s-yu/bridgeduel/internal/models"
)

var (
	clrSubtle = lipgloss.Color("#8b949e")
	clrTitle  = lipgloss.Color("#58a6ff")
	clrRed    = lipgloss.Color("#f85149")
	clrGreen  = lipgloss.Color("#3fb950")

	suitColors = map[models.Suit]lipgloss.Color{
		models.Clubs:    lipgloss.Color("#44AAFF"),
		models.Diamonds: lipgloss.Color("#FFD700"),
		models.Hearts:   lipgloss.Color("#FF6B6B"),
		models.Spades:   lipgloss.Color("#50FA7B"),
	}
)

// Theme styles the table. The zero Theme prints plain text.
type Theme struct {
	colored bool
	header  lipgloss.Style
	subtle  lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
	suits   map[models.Suit]lipgloss.Style
}

// ColorTheme colours suits and headings. lipgloss drops the colours itself when
// the output is not a terminal.
func ColorTheme() Theme {
	t := Theme{
		colored: true,
		header:  lipgloss.NewStyle().Foreground(clrTitle).Bold(true),
		subtle:  lipgloss.NewStyle().Foreground(clrSubtle),
		good:    lipgloss.NewStyle().Foreground(clrGreen).Bold(true),
		bad:     lipgloss.NewStyle().Foreground(clrRed),
		suits:   make(map[models.Suit]lipgloss.Style, len(suitColors)),
	}
	for s, c := range suitColors {
		t.suits[s] = lipgloss.NewStyle().Foreground(c)
	}
	return t
}

func (t Theme) apply(st lipgloss.Style, s string) string {
	if !t.colored || s == "" {
		return s
	}
	return st.Render(s)
}

func (t Theme) card(c models.Card, text string) string {
	if !t.colored {
		return text
	}
	st, ok := t.suits[c.Suit]
	if !ok {
		return text
	}
	return st.Render(text)
}
