package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ekoc/coinfolio/internal/services"
)

// TrackerMonitor runs the tracker service behind the terminal view and
// forwards every state change into the bubbletea program.
type TrackerMonitor struct {
	tracker *services.TrackerService
	program *tea.Program
}

func NewTrackerMonitor(tracker *services.TrackerService) *TrackerMonitor {
	return &TrackerMonitor{
		tracker: tracker,
	}
}

// Run hydrates the tracker, starts the refresh loop, and blocks on the
// terminal view until the user quits.
func (tm *TrackerMonitor) Run(ctx context.Context) error {
	model := NewModel(tm.tracker)
	tm.program = tea.NewProgram(model, tea.WithAltScreen())

	tm.tracker.SetOnChange(func() {
		if tm.program != nil {
			tm.program.Send(StateMsg{State: tm.tracker.State()})
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tm.tracker.Start(ctx)
	defer tm.tracker.Stop()

	if _, err := tm.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}

// Stop quits the terminal view from outside, e.g. on a signal.
func (tm *TrackerMonitor) Stop() {
	if tm.program != nil {
		tm.program.Quit()
	}
}
