package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/callscope/core"
)

type stubAsker struct {
	mu    sync.Mutex
	asked []string
}

func (s *stubAsker) Ask(_ context.Context, utterance string) *core.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, utterance)
	return &core.Answer{Tool: core.LabelAnalytics, Text: "There are 2 calls."}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	assert.Nil(t, cmd)
	return next.(Model)
}

func typeLine(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestModel_View(t *testing.T) {
	m := New(context.Background(), &stubAsker{})
	assert.Equal(t, "Loading...", m.View())

	m = sized(t, m)
	view := m.View()
	assert.Contains(t, view, "Sales Call Copilot")
	assert.Contains(t, view, readyStatus)
}

func TestModel_AskRoundTrip(t *testing.T) {
	asker := &stubAsker{}
	m := sized(t, New(context.Background(), asker))

	m, cmd := typeLine(t, m, "  how many calls?  ")
	require.NotNil(t, cmd)
	assert.True(t, m.pending)
	assert.Equal(t, thinkingStatus, m.status)
	assert.Empty(t, m.input.Value())
	require.Len(t, m.history, 1)
	assert.Contains(t, m.history[0], "how many calls?")

	// A second enter while the answer is outstanding is ignored.
	blocked, again := typeLine(t, m, "another")
	assert.Nil(t, again)
	assert.Len(t, blocked.history, 1)

	msg := cmd()
	answer, ok := msg.(answerMsg)
	require.True(t, ok)
	assert.Equal(t, "how many calls?", answer.question)
	assert.Equal(t, []string{"how many calls?"}, asker.asked)

	next, cmd := m.Update(msg)
	assert.Nil(t, cmd)
	m = next.(Model)
	assert.False(t, m.pending)
	assert.Equal(t, readyStatus, m.status)
	require.Len(t, m.history, 2)
	assert.Contains(t, m.history[1], "There are 2 calls.")
	assert.Contains(t, m.View(), "There are 2 calls.")
}

func TestModel_BlankInputIsIgnored(t *testing.T) {
	asker := &stubAsker{}
	m := sized(t, New(context.Background(), asker))

	m, cmd := typeLine(t, m, "   ")
	assert.Nil(t, cmd)
	assert.False(t, m.pending)
	assert.Empty(t, m.history)
}

func TestModel_Quit(t *testing.T) {
	tests := []struct {
		name string
		send func(Model) (tea.Model, tea.Cmd)
	}{
		{"quit command", func(m Model) (tea.Model, tea.Cmd) {
			m.input.SetValue("quit")
			return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		}},
		{"q command", func(m Model) (tea.Model, tea.Cmd) {
			m.input.SetValue("Q")
			return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		}},
		{"ctrl+c", func(m Model) (tea.Model, tea.Cmd) {
			return m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		}},
		{"escape", func(m Model) (tea.Model, tea.Cmd) {
			return m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &stubAsker{}
			next, cmd := tt.send(sized(t, New(context.Background(), asker)))
			require.NotNil(t, cmd)
			assert.Equal(t, tea.QuitMsg{}, cmd())
			assert.True(t, strings.HasPrefix(next.View(), goodbyeText))
			assert.Empty(t, asker.asked)
		})
	}
}
