package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/fablecore/cli"
)

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	styleInput       = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	styleProse       = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	styleItems       = lipgloss.NewStyle().Bold(true)
	styleExits       = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleSpeech      = lipgloss.NewStyle().Foreground(lipgloss.Color("228"))
	styleSystem      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleRefusal     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleTrace       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type lineKind int

const (
	kindProse lineKind = iota
	kindInput
	kindYouSee
	kindExits
	kindSpeech
	kindRefusal
	kindSystem
	kindTrace
)

var refusalPrefixes = []string{
	"You can't",
	"You don't",
	"You aren't",
	"You already",
	"I don't know",
	"Something prevents",
}

func kindOf(l cli.Line) lineKind {
	switch l.Kind {
	case cli.System:
		return kindSystem
	case cli.Trace:
		return kindTrace
	}
	return classifyLine(l.Text)
}

// classifyLine picks a style for a line of narrative.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "You see:"):
		return kindYouSee
	case strings.HasPrefix(line, "Exits:"):
		return kindExits
	}
	for _, p := range refusalPrefixes {
		if strings.HasPrefix(line, p) {
			return kindRefusal
		}
	}
	if hasQuotedSpeech(line) {
		return kindSpeech
	}
	return kindProse
}

// hasQuotedSpeech reports whether line holds a double-quoted or
// single-quoted run longer than a few characters. Apostrophes in
// contractions stay short and are ignored.
func hasQuotedSpeech(line string) bool {
	var open rune
	n := 0
	for _, r := range line {
		switch {
		case open == 0 && (r == '"' || r == '\''):
			open, n = r, 0
		case r == open:
			if n > 3 {
				return true
			}
			open = 0
		case open != 0:
			n++
		}
	}
	return false
}

func render(text string, kind lineKind) string {
	switch kind {
	case kindInput:
		return styleInput.Render(text)
	case kindYouSee:
		const prefix = "You see: "
		if rest, ok := strings.CutPrefix(text, prefix); ok {
			return styleProse.Render(prefix) + styleItems.Render(rest)
		}
		return styleProse.Render(text)
	case kindExits:
		return styleExits.Render(text)
	case kindSpeech:
		return styleSpeech.Render(text)
	case kindRefusal:
		return styleRefusal.Render(text)
	case kindSystem:
		return styleSystem.Render("[" + text + "]")
	case kindTrace:
		return styleTrace.Render(text)
	default:
		return styleProse.Render(text)
	}
}
