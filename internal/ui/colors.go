package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// TIDAL cyan for titles; the rest are status colors.
var styles = NewPalette("#33FFEE", "#04B575", "#FF4D4D", "#FFA500", "#626262")

// Palette holds the named styles shared by the TUI and the plain CLI output.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(title, ok, err, warn, help string) *Palette {
	return &Palette{
		title: NewBold(title).MarginBottom(1),
		ok:    NewBold(ok),
		err:   NewBold(err),
		warn:  NewStyle(warn),
		help:  NewEm(help),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style { return NewStyle(fg).Bold(true) }

func NewEm(fg string) lipgloss.Style { return NewStyle(fg).Italic(true) }

// Success renders s in the success color.
func Success(s string) string { return styles.ok.Render(s) }

// Error renders s in the error color.
func Error(s string) string { return styles.err.Render(s) }

// Warn renders s in the warning color.
func Warn(s string) string { return styles.warn.Render(s) }

// Muted renders secondary text.
func Muted(s string) string { return styles.help.Render(s) }

// Highlight renders s in the title color without the title margin.
func Highlight(s string) string { return styles.title.UnsetMarginBottom().Render(s) }
