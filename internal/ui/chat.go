package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ChatTitle is shown at the top of the chat screen.
const ChatTitle = "Azure Reliability Assistant"

// ChatAnswer is one reply shown in the transcript.
type ChatAnswer struct {
	Text    string
	Sources []string
}

// AskFunc answers one question.
type AskFunc func(ctx context.Context, query string) (ChatAnswer, error)

// ChatTurn is one question and its outcome.
type ChatTurn struct {
	Query  string
	Answer ChatAnswer
	Err    error
}

type answerMsg struct {
	turn ChatTurn
}

// ChatModel is the Bubble Tea model for the interactive question loop.
type ChatModel struct {
	ask     AskFunc
	ctx     context.Context
	timeout time.Duration
	styles  Styles

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	summary string
	turns   []ChatTurn
	pending string
	ready   bool
}

// NewChatModel creates a chat model. summary is shown under the title,
// timeout bounds each question (zero means no limit).
func NewChatModel(ctx context.Context, ask AskFunc, summary string, timeout time.Duration, noColor bool) ChatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents and press Enter"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return ChatModel{
		ask:      ask,
		ctx:      ctx,
		timeout:  timeout,
		styles:   GetStyles(noColor),
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
	}
}

// Init implements tea.Model.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update implements tea.Model.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := m.styles.Panel.GetFrameSize()
		// title, summary, input line, status and spacing
		height := msg.Height - frame - 5
		if height < 3 {
			height = 3
		}
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = height
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending != "" {
				return m, nil
			}
			if q == "/quit" || q == "/exit" {
				return m, tea.Quit
			}
			m.pending = q
			m.input.Reset()
			m.refresh()
			return m, tea.Batch(m.askCmd(q), m.spinner.Tick)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.pending = ""
		m.turns = append(m.turns, msg.turn)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.pending == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ChatModel) askCmd(q string) tea.Cmd {
	parent := m.ctx
	if parent == nil {
		parent = context.Background()
	}
	ask, timeout := m.ask, m.timeout
	return func() tea.Msg {
		ctx := parent
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parent, timeout)
			defer cancel()
		}
		ans, err := ask(ctx, q)
		return answerMsg{turn: ChatTurn{Query: q, Answer: ans, Err: err}}
	}
}

// View implements tea.Model.
func (m ChatModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(ChatTitle))
	b.WriteString("\n")
	b.WriteString(m.styles.Label.Render(m.summary))
	b.WriteString("\n")
	b.WriteString(m.styles.Panel.Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.pending != "" {
		b.WriteString(m.spinner.View() + " " + m.styles.Dim.Render("thinking..."))
	} else {
		b.WriteString(m.styles.Dim.Render("enter: ask  pgup/pgdn: scroll  esc: quit"))
	}
	return b.String()
}

// Turns returns the completed questions.
func (m ChatModel) Turns() []ChatTurn {
	return m.turns
}

func (m *ChatModel) refresh() {
	m.viewport.SetContent(m.Transcript())
	m.viewport.GotoBottom()
}

// Transcript renders every turn, and the pending question if any.
func (m ChatModel) Transcript() string {
	if len(m.turns) == 0 && m.pending == "" {
		return m.styles.Label.Render("No questions yet.")
	}

	var b strings.Builder
	for i, turn := range m.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.styles.User.Render("You: ") + turn.Query + "\n")
		if turn.Err != nil {
			b.WriteString(m.styles.Error.Render("Error: "+turn.Err.Error()) + "\n")
			continue
		}
		b.WriteString(m.styles.Assistant.Render("Assistant: "+turn.Answer.Text) + "\n")
		if len(turn.Answer.Sources) > 0 {
			b.WriteString(m.styles.Source.Render(fmt.Sprintf("Sources: %s", strings.Join(turn.Answer.Sources, ", "))) + "\n")
		}
	}
	if m.pending != "" {
		if len(m.turns) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.styles.User.Render("You: ") + m.pending + "\n")
	}
	return b.String()
}
