// Package tui is the bubbletea chat interface over a single chain session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/pdfchat/internal/chain"
)

// Asker answers one question at a time. *chain.Session implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (*chain.Answer, error)
}

type entry struct {
	question string
	answer   *chain.Answer
	err      error
	took     time.Duration
}

// answerMsg carries the result of an ask back into Update.
type answerMsg struct {
	answer *chain.Answer
	err    error
	took   time.Duration
}

// Model is the chat screen.
type Model struct {
	asker    Asker
	title    string
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries     []entry
	pending     string
	cancel      context.CancelFunc
	status      string
	showSources bool
	ready       bool
	quitting    bool
}

// NewModel creates a chat model. title is shown in the header, usually the
// document path.
func NewModel(asker Asker, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the document"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		asker:    asker,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready.",
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Busy reports whether an ask is in flight.
func (m Model) Busy() bool { return m.cancel != nil }

func ask(ctx context.Context, asker Asker, question string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		answer, err := asker.Ask(ctx, question)
		return answerMsg{answer: answer, err: err, took: time.Since(start)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := transcriptStyle.GetFrameSize()
		reserved := 2 + lipgloss.Height(inputStyle.Render("")) + 1
		m.viewport.Width = max(20, msg.Width-frame)
		m.viewport.Height = max(3, msg.Height-reserved-frame)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc:
			if m.Busy() {
				m.cancel()
				m.status = "Cancelling..."
			}
			return m, nil
		case tea.KeyCtrlC:
			if m.Busy() {
				m.cancel()
				m.status = "Cancelling..."
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		case tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			m.quitting = true
			return m, tea.Quit
		case tea.KeyTab:
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}

	case answerMsg:
		m.cancel = nil
		question := m.pending
		m.pending = ""
		switch {
		case msg.err == nil:
			m.entries = append(m.entries, entry{question: question, answer: msg.answer, took: msg.took})
			m.status = fmt.Sprintf("Answered in %s.", FormatDuration(msg.took))
		case errors.Is(msg.err, context.Canceled):
			m.status = "Cancelled. The question was not added to the conversation."
		default:
			m.entries = append(m.entries, entry{question: question, err: msg.err, took: msg.took})
			m.status = "Failed: " + describeError(msg.err)
		}
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if !m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.Busy() {
		m.status = "Still answering. Press Esc to cancel."
		return m, nil
	}
	q := strings.TrimSpace(m.input.Value())
	if q == "" {
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.pending = q
	m.input.Reset()
	m.status = "Thinking..."
	m.refresh()
	m.viewport.GotoBottom()
	return m, tea.Batch(m.spinner.Tick, ask(ctx, m.asker, q))
}

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	header := headerStyle.Render("pdfchat") + " " + dimStyle.Render(m.title)
	status := statusStyle.Render(m.status)
	if m.Busy() {
		status = m.spinner.View() + " " + status
	}
	footer := footerStyle.Render(
		footerKeyStyle.Render("enter") + " ask  " +
			footerKeyStyle.Render("esc") + " cancel  " +
			footerKeyStyle.Render("tab") + " sources  " +
			footerKeyStyle.Render("ctrl+d") + " quit")

	return header + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		status + "  " + footer
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 && m.pending == "" {
		return dimStyle.Render("No questions yet.")
	}

	width := max(20, m.viewport.Width-2)
	var sb strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(questionStyle.Render("You: ") + e.question + "\n")
		if e.err != nil {
			sb.WriteString(errorStyle.Render("Error: "+describeError(e.err)) + "\n")
			continue
		}
		sb.WriteString(answerStyle.Width(width).Render(e.answer.Text) + "\n")
		if m.showSources {
			for _, s := range e.answer.Sources {
				sb.WriteString(dimStyle.Render(FormatSource(s, 60)) + "\n")
			}
		}
	}
	if m.pending != "" {
		if len(m.entries) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(questionStyle.Render("You: ") + m.pending + "\n")
		sb.WriteString(dimStyle.Render(m.spinner.View()+" answering") + "\n")
	}
	return sb.String()
}
