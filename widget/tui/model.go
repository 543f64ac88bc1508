// Package tui is a bubbletea front end for the chat widget.
package tui

import (
	"context"
	"strings"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/render"
	"github.com/Desarso/minetchat/widget"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	frameStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62"))
)

// ChangedMsg tells the program the widget state moved.
type ChangedMsg struct{}

type Model struct {
	ctx      context.Context
	widget   *widget.Widget
	style    string
	renderer *render.TerminalRenderer

	input    textinput.Model
	viewport viewport.Model
	notice   string
	width    int
	height   int
}

func New(ctx context.Context, w *widget.Widget, style string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type your message here..."
	ti.Prompt = "> "
	ti.Focus()

	m := Model{
		ctx:      ctx,
		widget:   w,
		style:    style,
		input:    ti,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   24,
	}
	m.renderer, _ = render.NewTerminalRenderer(style, m.width-4)
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = max(msg.Height-7, 3)
		m.input.Width = msg.Width - 4
		if r, err := render.NewTerminalRenderer(m.style, m.viewport.Width-2); err == nil {
			m.renderer = r
		}
		m.refresh()
		return m, nil

	case ChangedMsg:
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.widget.Cancel()
			return m, tea.Quit
		case "esc":
			m.widget.Cancel()
			m.notice = ""
			m.refresh()
			return m, nil
		case "ctrl+r":
			m.notice = ""
			if err := m.widget.Retry(m.ctx); err != nil {
				m.notice = err.Error()
			}
			m.refresh()
			return m, nil
		case "enter":
			m.notice = ""
			if err := m.widget.Submit(m.ctx, m.input.Value()); err != nil {
				m.notice = err.Error()
			} else {
				m.input.Reset()
			}
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m Model) transcript() string {
	msgs := m.widget.Messages()
	if len(msgs) == 0 {
		return statusStyle.Render("No message yet.")
	}
	var sb strings.Builder
	for _, msg := range msgs {
		switch msg.Role {
		case models.RoleUser:
			sb.WriteString(userStyle.Render("You"))
			sb.WriteString("\n")
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		default:
			sb.WriteString(assistantStyle.Render("Minet AI"))
			sb.WriteString("\n")
			sb.WriteString(m.markdown(msg.Content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m Model) markdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, _ := m.renderer.Render(content)
	return strings.TrimRight(out, "\n")
}

func (m Model) status() string {
	switch {
	case m.notice != "":
		return errorStyle.Render(m.notice)
	case m.widget.State() == widget.AwaitingResponse:
		return statusStyle.Render("Loading... (esc to stop)")
	case m.widget.Err() != nil:
		return errorStyle.Render("An error occurred.") + statusStyle.Render(" ctrl+r to retry")
	default:
		return statusStyle.Render("enter send, esc stop, ctrl+r retry, ctrl+c quit")
	}
}

func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Chat with Minet AI"),
		frameStyle.Render(m.viewport.View()),
		m.status(),
		m.input.View(),
	)
}

// Run drives w in a full screen terminal program until the user quits.
func Run(ctx context.Context, w *widget.Widget, style string) error {
	p := tea.NewProgram(New(ctx, w, style), tea.WithAltScreen(), tea.WithContext(ctx))
	w.OnChange(func() { p.Send(ChangedMsg{}) })
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
