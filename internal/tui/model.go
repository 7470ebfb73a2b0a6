package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"echochat/internal/app"
)

// ChatPort is the TUI-facing subset of the application.
type ChatPort interface {
	Chat(ctx context.Context, sessionID, message string) (*app.ChatResult, error)
}

type entry struct {
	speaker string
	text    string
	sources string
}

type replyMsg struct {
	res *app.ChatResult
	err error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	app           ChatPort
	characterName string
	input         textinput.Model
	viewport      viewport.Model
	transcript    []entry
	sessionID     string
	status        string
	ready         bool
	waiting       bool
}

// New creates a new chat TUI model.
func New(a ChatPort, characterName string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Say something and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		app:           a,
		characterName: characterName,
		input:         ti,
		viewport:      vp,
		status:        "Connected. Type to chat.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and reply events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header + input frame + status
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.sessionID = msg.res.SessionID
			m.transcript = append(m.transcript, entry{
				speaker: m.characterName,
				text:    msg.res.Response,
				sources: renderSources(msg.res),
			})
			m.status = "Session " + shortID(m.sessionID)
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.waiting {
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.transcript = append(m.transcript, entry{speaker: "You", text: text})
				m.input.SetValue("")
				m.waiting = true
				m.status = m.characterName + " is thinking..."
				m.viewport.SetContent(m.renderTranscript())
				m.viewport.GotoBottom()
				return m, m.send(text)
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send(text string) tea.Cmd {
	a, id := m.app, m.sessionID
	return func() tea.Msg {
		res, err := a.Chat(context.Background(), id, text)
		return replyMsg{res: res, err: err}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Chatting with " + m.characterName)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No messages yet. Say hello!"
	}
	var b strings.Builder
	for i, e := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		name := speakerStyle.Render(e.speaker + ":")
		b.WriteString(name + " " + e.text)
		if e.sources != "" {
			b.WriteString("\n" + sourceStyle.Render(e.sources))
		}
	}
	return b.String()
}

func renderSources(res *app.ChatResult) string {
	if len(res.Sources) == 0 {
		return ""
	}
	parts := make([]string, len(res.Sources))
	for i, src := range res.Sources {
		parts[i] = fmt.Sprintf("%s (%.3f)", src.File, src.Relevance)
	}
	return "sources: " + strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	speakerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
