// Package tui is the operator-facing terminal dashboard for the Processor
// Registry: a live table of session id, offset, subscriber count, and last
// access time, refreshed on a ticker.
package tui

import (
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/riverpatch/uistream/internal/registry"
)

// Run renders a live table of registry.Snapshot(), refreshed every refresh
// interval and on terminal resize. It owns its own event loop and returns
// only when the user quits (q, Ctrl-C).
func Run(reg *registry.Registry, refresh time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("tui: init: %w", err)
	}
	defer ui.Close()

	table := widgets.NewTable()
	table.Title = "genui stream — processor registry"
	table.TextStyle = ui.NewStyle(ui.ColorWhite)
	table.RowSeparator = false
	table.SetRect(0, 0, 100, 30)
	table.Rows = headerRow()

	render := func() {
		table.Rows = append(headerRow(), snapshotRows(reg)...)
		ui.Render(table)
	}
	render()

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	events := ui.PollEvents()
	for {
		select {
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				table.SetRect(0, 0, payload.Width, payload.Height)
				render()
			}
		case <-ticker.C:
			render()
		}
	}
}

func headerRow() [][]string {
	return [][]string{{"SESSION", "OFFSET", "SUBSCRIBERS", "LAST ACCESSED"}}
}

func snapshotRows(reg *registry.Registry) [][]string {
	stats := reg.Snapshot()
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.SessionID,
			fmt.Sprintf("%d", s.Offset),
			fmt.Sprintf("%d", s.Subscribers),
			s.LastAccessed.Format(time.Kitchen),
		})
	}
	return rows
}
