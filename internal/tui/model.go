package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"policyqa/internal/domain"
)

// AnswerPort is the TUI-facing subset of the pipeline.
type AnswerPort interface {
	Answer(ctx context.Context, ref, question string) domain.Decision
}

// decisionMsg carries a finished answer back into the update loop.
type decisionMsg struct {
	question string
	decision domain.Decision
}

// Model is the Bubble Tea model for the interactive question prompt.
type Model struct {
	pipeline AnswerPort
	ref      string
	summary  string

	input    textinput.Model
	viewport viewport.Model
	decision *domain.Decision
	question string
	status   string
	ready    bool
	busy     bool
}

// New creates a TUI model answering questions about the document at ref.
// summary is shown under the header.
func New(pipeline AnswerPort, ref, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the policy and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		pipeline: pipeline,
		ref:      ref,
		summary:  summary,
		input:    ti,
		viewport: vp,
		status:   "Document loaded. Ask a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and question boxes
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		totalHeaderLines := 2 // header + summary
		totalFooterLines := 1 // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-ah)
		m.viewport.SetContent(m.renderDecision())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.busy {
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.busy = true
				m.status = "Thinking..."
				m.question = q
				m.input.SetValue("")
				return m, m.ask(q)
			}
		}
	case decisionMsg:
		m.busy = false
		m.status = fmt.Sprintf("Answered %q", msg.question)
		m.decision = &msg.decision
		m.viewport.SetContent(m.renderDecision())
		return m, nil
	}
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// ask runs the pipeline off the update loop so the UI stays responsive.
func (m Model) ask(question string) tea.Cmd {
	pipeline, ref := m.pipeline, m.ref
	return func() tea.Msg {
		dec := pipeline.Answer(context.Background(), ref, question)
		return decisionMsg{question: question, decision: dec}
	}
}

// View renders the TUI layout and the current decision.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Policy Q&A")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := questionBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answer := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + answer + "\n" + input + "\n" + status
}

func (m Model) renderDecision() string {
	if m.decision == nil {
		return "No answer yet."
	}
	d := m.decision
	var b strings.Builder
	b.WriteString(verdictStyle(d.Verdict).Render(string(d.Verdict)))
	if d.Amount != nil {
		fmt.Fprintf(&b, "  amount: %.2f", *d.Amount)
	}
	b.WriteString("\n\n")
	b.WriteString(d.Justification.Reason)
	if len(d.Justification.ClauseRefs) > 0 {
		b.WriteString("\n\nReferences:")
		for _, ref := range d.Justification.ClauseRefs {
			b.WriteString("\n  - " + ref)
		}
	}
	return b.String()
}

var (
	answerBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	approvedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	neutralStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	failureStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

func verdictStyle(v domain.Verdict) lipgloss.Style {
	switch v {
	case domain.VerdictApproved:
		return approvedStyle
	case domain.VerdictRejected:
		return rejectedStyle
	case domain.VerdictTimeout, domain.VerdictErrorFallback:
		return failureStyle
	}
	return neutralStyle
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
