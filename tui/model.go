// Package tui is the interactive chat loop. Each line typed is routed through
// the copilot and the answer is appended to a scrolling history.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/poiesic/callscope/core"
)

// Asker is the TUI-facing subset of the copilot.
type Asker interface {
	Ask(ctx context.Context, utterance string) *core.Answer
}

const (
	readyStatus    = "Ask about your calls. Type quit to leave."
	thinkingStatus = "Processing your query..."
	goodbyeText    = "Thank you for using the call copilot."
)

// answerMsg carries a finished answer back to Update.
type answerMsg struct {
	question string
	answer   *core.Answer
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	history  []string
	status   string
	pending  bool
	ready    bool
	quitting bool
}

// New creates a chat model. ctx bounds every request made from it.
func New(ctx context.Context, asker Asker) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Your question"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		asker:    asker,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   readyStatus,
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, resize and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, hh := historyStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + ih + 1 + hh // header, status, input box, history frame
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case answerMsg:
		m.pending = false
		m.status = readyStatus
		m.history = append(m.history, FormatAnswer(msg.answer))
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m.quit()
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if IsQuit(q) {
				return m.quit()
			}
			if q == "" || m.pending {
				return m, nil
			}
			m.input.Reset()
			m.pending = true
			m.status = thinkingStatus
			m.history = append(m.history, userStyle.Render("Your question: ")+q)
			m.refresh()
			return m, m.ask(q)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

func (m Model) ask(question string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		return answerMsg{question: question, answer: asker.Ask(ctx, question)}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
}

// View renders the history, the input line and the status.
func (m Model) View() string {
	if m.quitting {
		return goodbyeText + "\n"
	}
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Sales Call Copilot")
	history := historyStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + history + "\n" + input + "\n" + status
}

// Run starts a full-screen chat session and blocks until it ends.
func Run(ctx context.Context, asker Asker) error {
	p := tea.NewProgram(New(ctx, asker), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
