package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/mstream/cli/reader"
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Top, k.Bottom}, {k.Quit}}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "previous part"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "next part"),
	),
	Top: key.NewBinding(
		key.WithKeys("home", "g"),
		key.WithHelp("g", "first part"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("end", "G"),
		key.WithHelp("G", "last part"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// InspectModel browses the parts of a parsed document.
type InspectModel struct {
	doc      *reader.DocumentView
	cursor   int
	help     help.Model
	width    int
	quitting bool
}

// NewInspectModel creates a model for a *reader.DocumentView.
func NewInspectModel(data any) InspectModel {
	doc, _ := data.(*reader.DocumentView)
	return InspectModel{doc: doc, help: help.New()}
}

// Cursor returns the index of the selected part.
func (m InspectModel) Cursor() int { return m.cursor }

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		last := 0
		if m.doc != nil && len(m.doc.Parts) > 0 {
			last = len(m.doc.Parts) - 1
		}
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.cursor = max(m.cursor-1, 0)
		case key.Matches(msg, keys.Down):
			m.cursor = min(m.cursor+1, last)
		case key.Matches(msg, keys.Top):
			m.cursor = 0
		case key.Matches(msg, keys.Bottom):
			m.cursor = last
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	if m.doc == nil {
		return ErrorStyle.Render("Invalid data type for " + ViewInspectDocument)
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Document"))
	b.WriteString("\n")
	b.WriteString(row("Boundary", m.doc.Boundary))
	if m.doc.Envelope {
		b.WriteString(row("Envelope", m.doc.ContentType))
	}
	b.WriteString(row("Size", fmt.Sprintf("%d bytes", m.doc.Bytes)))
	b.WriteString(row("Parts", fmt.Sprintf("%d", len(m.doc.Parts))))

	body := BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
	if len(m.doc.Parts) > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.renderParts(), m.renderDetail())
	}
	return body + "\n" + HelpStyle.Render(m.help.View(keys))
}

func row(label, value string) string {
	return fmt.Sprintf("%s %s\n", LabelStyle.Render(label+":"), ValueStyle.Render(value))
}

func (m InspectModel) renderParts() string {
	var b strings.Builder
	for i, p := range m.doc.Parts {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		line := fmt.Sprintf("%2d  %-20s %-28s %s", p.Index, name, p.ContentType, EncodingStyle(p.Encoding).Render(p.Encoding))
		if i == m.cursor {
			b.WriteString(SelectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m InspectModel) renderDetail() string {
	p := m.doc.Parts[m.cursor]

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Part %d", p.Index)))
	b.WriteString("\n")
	if p.Filename != "" {
		b.WriteString(row("Filename", p.Filename))
	}
	b.WriteString(row("Size", fmt.Sprintf("%d bytes", p.Size)))
	b.WriteString(row("Decoded", fmt.Sprintf("%d bytes", p.DecodedSize)))
	if p.Detected != "" {
		b.WriteString(row("Detected", p.Detected))
	}
	if p.DecodeError != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Error:"), ErrorStyle.Render(p.DecodeError)))
	}
	if len(p.Headers) > 0 {
		b.WriteString("\n")
		for _, h := range p.Headers {
			b.WriteString("  " + h + "\n")
		}
	}
	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderInspectStatic renders the document view without starting a program.
func RenderInspectStatic(data any) string {
	return NewInspectModel(data).View()
}
