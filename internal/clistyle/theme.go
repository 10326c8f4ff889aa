// Package clistyle holds the shared huh/lipgloss theme for every
// interactive Stratum subcommand, adapted from wave's internal/tui theme.
package clistyle

import (
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme returns a huh.Theme matching Stratum's CLI palette: cyan
// primary, gray muted, white text.
func Theme() *huh.Theme {
	t := huh.ThemeBase()

	var (
		cyan  = lipgloss.Color("6")
		white = lipgloss.Color("7")
		muted = lipgloss.Color("244")
		red   = lipgloss.Color("1")
	)

	t.Focused.Base = t.Focused.Base.BorderForeground(cyan)
	t.Focused.Card = t.Focused.Base
	t.Focused.Title = t.Focused.Title.Foreground(cyan).Bold(true)
	t.Focused.NoteTitle = t.Focused.NoteTitle.Foreground(cyan).Bold(true).MarginBottom(1)
	t.Focused.Description = t.Focused.Description.Foreground(muted)
	t.Focused.ErrorIndicator = t.Focused.ErrorIndicator.Foreground(red)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(red)

	t.Focused.TextInput.Cursor = t.Focused.TextInput.Cursor.Foreground(cyan)
	t.Focused.TextInput.Placeholder = t.Focused.TextInput.Placeholder.Foreground(muted)
	t.Focused.TextInput.Prompt = t.Focused.TextInput.Prompt.Foreground(cyan)

	t.Focused.FocusedButton = t.Focused.FocusedButton.Foreground(lipgloss.Color("0")).Background(cyan)
	t.Focused.Next = t.Focused.FocusedButton
	t.Focused.BlurredButton = t.Focused.BlurredButton.Foreground(white).Background(lipgloss.Color("237"))

	t.Blurred = t.Focused
	t.Blurred.Base = t.Focused.Base.BorderStyle(lipgloss.HiddenBorder())
	t.Blurred.Card = t.Blurred.Base
	t.Blurred.NextIndicator = lipgloss.NewStyle()
	t.Blurred.PrevIndicator = lipgloss.NewStyle()

	t.Group.Title = t.Focused.Title
	t.Group.Description = t.Focused.Description

	return t
}

// Width reports the current terminal's column width, falling back to 80
// when stdout isn't a TTY (piped output, a recorded session, CI).
func Width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// Logo renders the Stratum wordmark used by setup's welcome screen.
func Logo() string {
	logo := "╔═╗╔╦╗╦═╗╔═╗╔╦╗╦ ╦╔╦╗\n╚═╗ ║ ╠╦╝╠═╣ ║ ║ ║║║║\n╚═╝ ╩ ╩╚═╩ ╩ ╩ ╚═╝╩ ╩"
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("6")).
		Margin(1, 0, 1, 2).
		Render(logo)
}
