package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// View types.
const (
	ViewInspectDocument = "inspect_document"
	ViewBuildStats      = "build_stats"
)

// IsTUISupported reports whether viewType has a TUI.
func IsTUISupported(viewType string) bool {
	switch viewType {
	case ViewInspectDocument, ViewBuildStats:
		return true
	}
	return false
}

// Model returns the model of a view, or an error for unsupported views.
func Model(viewType string, data any) (tea.Model, error) {
	switch viewType {
	case ViewInspectDocument:
		return NewInspectModel(data), nil
	case ViewBuildStats:
		return NewStatsModel(data), nil
	}
	return nil, fmt.Errorf("TUI mode is not supported for %s", viewType)
}

// Run shows a view full screen until the user quits.
func Run(viewType string, data any) error {
	m, err := Model(viewType, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
