package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/mstream/metrics"
)

// StatsModel shows the counters of a build.
type StatsModel struct {
	snap     *metrics.Snapshot
	quitting bool
}

// NewStatsModel creates a model for a metrics.Snapshot or *metrics.Snapshot.
func NewStatsModel(data any) StatsModel {
	switch s := data.(type) {
	case *metrics.Snapshot:
		return StatsModel{snap: s}
	case metrics.Snapshot:
		return StatsModel{snap: &s}
	}
	return StatsModel{}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	if m.snap == nil {
		return ErrorStyle.Render("Invalid data type for " + ViewBuildStats)
	}
	s := m.snap

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Build Statistics"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Fields", s.FieldsAdded, successColor),
		statBox("Parts", s.PartsAdded, primaryColor),
		statBox("Bytes read", s.BytesRead, primaryColor),
		statBox("Seeks", s.Seeks, warningColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Frames", s.FramesDecoded, primaryColor),
		statBox("Frame errors", s.FrameDecodeErrors, errorColor),
		statBox("Encode errors", s.EncodeErrors, errorColor),
		statBox("Stored", s.DocumentsWritten, successColor),
	))

	if len(s.BytesEncoded) > 0 {
		schemes := make([]string, 0, len(s.BytesEncoded))
		for k := range s.BytesEncoded {
			schemes = append(schemes, k)
		}
		sort.Strings(schemes)

		var enc strings.Builder
		enc.WriteString(TitleStyle.Render("Bytes encoded"))
		enc.WriteString("\n")
		for _, k := range schemes {
			enc.WriteString(fmt.Sprintf("%s %d\n", LabelStyle.Render(k), s.BytesEncoded[k]))
		}
		b.WriteString("\n")
		b.WriteString(BoxStyle.Render(strings.TrimRight(enc.String(), "\n")))
	}

	if s.StorageBackend != "" {
		b.WriteString("\n")
		b.WriteString(row("Storage", s.StorageBackend+" ("+s.Compression+")"))
	}

	return b.String() + "\n" + HelpStyle.Render("Press q to quit")
}

func statBox(label string, value int64, color lipgloss.Color) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value)),
		StatLabelStyle.Render(label),
	)
	return StatBoxStyle.Render(content)
}
