package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	"github.com/manav03panchal/livedesk/internal/output"
	"github.com/manav03panchal/livedesk/internal/queue"
)

// QueueComponent displays queue counters as bars relative to the total.
type QueueComponent struct {
	Stats queue.Stats
	Width int
}

// NewQueueComponent creates a new queue component.
func NewQueueComponent(stats queue.Stats, width int) *QueueComponent {
	return &QueueComponent{Stats: stats, Width: width}
}

type stateCount struct {
	state string
	count int
}

func (qc *QueueComponent) rows() []stateCount {
	return []stateCount{
		{queue.StatePending, qc.Stats.Pending},
		{queue.StateScheduled, qc.Stats.Scheduled},
		{queue.StateSending, qc.Stats.Sending},
		{queue.StateStale, qc.Stats.Stale},
		{queue.StateFailed, qc.Stats.Failed},
	}
}

// NeedsAttention reports whether any job is stale or failed.
func (qc *QueueComponent) NeedsAttention() bool {
	return qc.Stats.Stale > 0 || qc.Stats.Failed > 0
}

// View renders the queue component.
func (qc *QueueComponent) View() string {
	var content strings.Builder

	content.WriteString(StyleTitle.Render("Notification Queue"))
	content.WriteString("\n")
	content.WriteString(StyleCount.Render(fmt.Sprintf("%d", qc.Stats.Total)))
	content.WriteString(StyleSubtitle.Render(" jobs"))
	content.WriteString("\n")

	barWidth := qc.Width - 30
	if barWidth < 10 {
		barWidth = 10
	}
	for _, row := range qc.rows() {
		pct := 0.0
		if qc.Stats.Total > 0 {
			pct = float64(row.count) * 100 / float64(qc.Stats.Total)
		}
		content.WriteString("\n")
		content.WriteString(StateStyle(row.state).Render(fmt.Sprintf("%-10s", row.state)))
		content.WriteString(fmt.Sprintf(" %4d ", row.count))
		content.WriteString(ProgressBar(pct, barWidth))
	}

	box := StyleQueueBox
	if qc.NeedsAttention() {
		box = StyleAlertBox
	}
	return box.Width(qc.Width - 4).Render(content.String())
}

// TriggersComponent lists upcoming open and close triggers.
type TriggersComponent struct {
	Triggers []businesshours.Upcoming
	Now      time.Time
	Width    int
}

// NewTriggersComponent creates a new triggers component.
func NewTriggersComponent(triggers []businesshours.Upcoming, now time.Time, width int) *TriggersComponent {
	return &TriggersComponent{Triggers: triggers, Now: now, Width: width}
}

// View renders the triggers component.
func (tc *TriggersComponent) View() string {
	var content strings.Builder

	content.WriteString(StyleTitle.Render("Next Triggers"))
	content.WriteString("\n")

	if len(tc.Triggers) == 0 {
		content.WriteString(StyleSubtitle.Render("No business hours scheduled"))
	}
	for i, tr := range tc.Triggers {
		if i > 0 {
			content.WriteString("\n")
		}
		style := StyleOpen
		if tr.Action == businesshours.ActionClose {
			style = StyleClose
		}
		content.WriteString(style.Render(fmt.Sprintf("%-6s", tr.Action)))
		content.WriteString(fmt.Sprintf(" %-9s %s", tr.Day, tr.Time))
		content.WriteString(StyleSubtitle.Render("  in " + output.FormatDurationShort(tr.At.Sub(tc.Now))))
	}

	return StyleTriggerBox.Width(tc.Width - 4).Render(content.String())
}

// HelpBar renders the help bar at the bottom.
func HelpBar() string {
	keys := []struct {
		key  string
		desc string
	}{
		{"r", "refresh"},
		{"q", "quit"},
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts, StyleHelpKey.Render(k.key)+" "+StyleHelpDesc.Render(k.desc))
	}

	return StyleHelp.Render(strings.Join(parts, "  •  "))
}

// joinSections stacks rendered sections vertically.
func joinSections(sections ...string) string {
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
