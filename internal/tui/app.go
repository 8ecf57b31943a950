package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muser-music/muser/backend/internal/model/chat"
	chatService "github.com/muser-music/muser/backend/internal/service/chat"
)

var (
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userMsgStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	botLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

const (
	inputHeight  = 1
	statusHeight = 1
	sepLines     = 1
)

// App is the root bubbletea model. It shows the transcript in a viewport
// above a single-line draft input.
type App struct {
	session     *chatService.Session
	messages    <-chan chat.Message
	unsubscribe func()

	viewport   viewport.Model
	input      textinput.Model
	autoscroll *chatService.Autoscroll
	lastScroll chatService.Behavior

	rendered []chat.Message
	status   string
	sized    bool

	width, height int
}

// NewApp subscribes to session and renders its current transcript.
func NewApp(session *chatService.Session) *App {
	messages, unsubscribe := session.Subscribe()

	ti := textinput.New()
	ti.Prompt = "muser> "
	ti.Placeholder = "describe the music you want"
	ti.SetValue(session.Draft())
	ti.Focus()

	m := &App{
		session:     session,
		messages:    messages,
		unsubscribe: unsubscribe,
		viewport:    viewport.New(0, 0),
		input:       ti,
		rendered:    session.Transcript().Messages(),
	}
	m.autoscroll = chatService.NewAutoscroll(chatService.ScrollFunc(func(_ chat.Message, behavior chatService.Behavior) {
		m.lastScroll = behavior
		m.viewport.GotoBottom()
	})).WithBehavior(chatService.BehaviorInstant)
	return m
}

func (m *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForAppend())
}

// waitForAppend blocks on the subscription until the next append.
func (m *App) waitForAppend() tea.Cmd {
	messages := m.messages
	return func() tea.Msg {
		msg, ok := <-messages
		if !ok {
			return subscriptionClosedMsg{}
		}
		return AppendedMsg{Message: msg}
	}
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.sized = true
		m.recalcLayout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, m.quit()
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, m.updateInput(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case AppendedMsg:
		if n := len(m.rendered); n == 0 || msg.Message.ID > m.rendered[n-1].ID {
			m.rendered = append(m.rendered, msg.Message)
			m.refresh()
		}
		return m, m.waitForAppend()

	case ReplyDoneMsg:
		m.status = ""
		if msg.Failed && !msg.Discarded {
			m.status = "the responder failed, try again"
		}
		return m, nil

	case subscriptionClosedMsg:
		return m, nil
	}

	return m, m.updateInput(msg)
}

// updateInput forwards msg to the text input and mirrors its value into the
// session draft.
func (m *App) updateInput(msg tea.Msg) tea.Cmd {
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		if err := m.session.SetDraft(after); err != nil {
			m.status = err.Error()
		}
	}
	return cmd
}

func (m *App) submit() tea.Cmd {
	pending, err := m.session.Begin()
	switch {
	case errors.Is(err, chatService.ErrEmptyDraft):
		return nil
	case errors.Is(err, chatService.ErrSubmitInFlight):
		m.status = "still waiting for the last reply"
		return nil
	case errors.Is(err, chatService.ErrSessionClosed):
		return tea.Quit
	case err != nil:
		m.status = err.Error()
		return nil
	}

	m.input.Reset()
	m.status = "thinking..."
	return func() tea.Msg {
		sub := pending.Wait(context.Background())
		return ReplyDoneMsg{Failed: sub.Err != nil, Discarded: sub.Discarded}
	}
}

// quit closes the session: a reply still in flight is discarded.
func (m *App) quit() tea.Cmd {
	m.session.Close()
	m.unsubscribe()
	return tea.Quit
}

// refresh re-renders the transcript and lets the autoscroll controller follow
// new messages.
func (m *App) refresh() {
	if !m.sized || len(m.rendered) == 0 {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.autoscroll.AfterRender(len(m.rendered), m.rendered[len(m.rendered)-1])
}

func (m *App) renderTranscript() string {
	wrap := lipgloss.NewStyle().Width(max(m.width, 1))
	lines := make([]string, 0, len(m.rendered))
	for _, msg := range m.rendered {
		var line string
		if msg.FromUser() {
			line = userMsgStyle.Render("> " + msg.Text)
		} else {
			line = botLabelStyle.Render("muser") + " " + msg.Text
		}
		lines = append(lines, wrap.Render(line))
	}
	return strings.Join(lines, "\n")
}

func (m *App) View() string {
	if !m.sized {
		return "initializing..."
	}

	sep := separatorStyle.Render(strings.Repeat("─", m.width))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		sep,
		statusStyle.Render(m.status),
		m.input.View(),
	)
}

func (m *App) recalcLayout() {
	chatH := max(m.height-inputHeight-statusHeight-sepLines, 1)
	m.viewport.Width = m.width
	m.viewport.Height = chatH
	m.input.Width = max(m.width-len(m.input.Prompt)-1, 1)
}
