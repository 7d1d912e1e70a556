// Package tui is a full-screen Bubble Tea front end: a scrolling story
// pane, a status bar and an input line with history.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/fablecore/cli"
	"github.com/nathoo/fablecore/engine"
)

// rawLine keeps output unstyled so it can be re-wrapped on resize.
type rawLine struct {
	text string
	kind lineKind
}

// Model is the Bubble Tea model.
type Model struct {
	cmds    *cli.Commands
	engine  *engine.Engine
	history *History

	viewport viewport.Model
	input    textinput.Model
	lines    []rawLine

	width    int
	height   int
	ready    bool
	quitting bool
}

// outputMsg carries the reply to one line of input into Update.
type outputMsg struct {
	input string // empty for the opening text
	reply cli.Reply
}

// New creates a model driving the engine behind cmds.
func New(cmds *cli.Commands) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.CharLimit = 256
	ti.Focus()

	return Model{
		cmds:    cmds,
		engine:  cmds.Engine,
		history: NewHistory(100),
		input:   ti,
	}
}

// Run starts the full-screen program and blocks until the player quits.
func Run(cmds *cli.Commands) error {
	p := tea.NewProgram(New(cmds), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.opening)
}

func (m Model) opening() tea.Msg {
	var r cli.Reply
	if header := titleLine(m.engine); header != "" {
		r.Lines = append(r.Lines, cli.Line{Text: header}, cli.Line{})
	}
	for _, l := range m.engine.Intro() {
		r.Lines = append(r.Lines, cli.Line{Text: l})
	}
	return outputMsg{reply: r}
}

func titleLine(e *engine.Engine) string {
	g := e.Defs.Game
	if g.Title == "" {
		return ""
	}
	s := g.Title
	if g.Version != "" {
		s += " v" + g.Version
	}
	if g.Author != "" {
		s += " by " + g.Author
	}
	return s
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil
		case "down":
			next, ok := m.history.Next()
			if !ok {
				m.history.ResetCursor()
			}
			m.input.SetValue(next)
			m.input.CursorEnd()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case outputMsg:
		m.append(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	vpHeight := max(height-2, 1) // status bar and input line

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.viewport.KeyMap = viewportKeyMap()
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.refresh()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" {
		return m, nil
	}
	m.history.Push(input)
	m.history.ResetCursor()

	reply := m.cmds.Handle(input)
	m.append(outputMsg{input: input, reply: reply})
	if reply.Quit {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) append(msg outputMsg) {
	if msg.input != "" {
		m.lines = append(m.lines, rawLine{text: "> " + msg.input, kind: kindInput})
	}
	for _, l := range msg.reply.Lines {
		m.lines = append(m.lines, rawLine{text: l.Text, kind: kindOf(l)})
	}
	m.lines = append(m.lines, rawLine{})
	m.refresh()
}

// refresh re-wraps and re-styles every line at the current width.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	width := max(m.width, 10)

	styled := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		if l.text == "" {
			styled = append(styled, "")
			continue
		}
		styled = append(styled, render(wordWrap(l.text, width), l.kind))
	}
	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap breaks text at spaces so no line exceeds width, unless a
// single word is longer.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}
	var b strings.Builder
	n := 0
	for i, w := range strings.Fields(text) {
		switch {
		case i == 0:
			n = len(w)
		case n+1+len(w) > width:
			b.WriteByte('\n')
			n = len(w)
		default:
			b.WriteByte(' ')
			n += 1 + len(w)
		}
		b.WriteString(w)
	}
	return b.String()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.viewport.View(), m.statusBar(), m.input.View())
}

// viewportKeyMap leaves the arrow keys to input history.
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
