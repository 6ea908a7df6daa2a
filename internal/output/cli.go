package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/queue"
)

// Styles for CLI output.
var (
	// Colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#10B981") // Green
	colorMuted     = lipgloss.Color("#6B7280") // Gray
	colorWarning   = lipgloss.Color("#F59E0B") // Yellow
	colorError     = lipgloss.Color("#EF4444") // Red
	colorSuccess   = lipgloss.Color("#10B981") // Green

	// Styles
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleBold = lipgloss.NewStyle().
			Bold(true)

	styleName = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleAccent = lipgloss.NewStyle().
			Foreground(colorSecondary)
)

// stateStyles colors queue job states.
var stateStyles = map[string]lipgloss.Style{
	queue.StatePending:   styleAccent,
	queue.StateScheduled: styleMuted,
	queue.StateSending:   styleName,
	queue.StateStale:     styleWarning,
	queue.StateFailed:    styleError,
}

// CLIFormatter provides CLI-specific formatting.
type CLIFormatter struct {
	*Formatter
}

// NewCLIFormatter creates a new CLI formatter.
func NewCLIFormatter(f *Formatter) *CLIFormatter {
	return &CLIFormatter{Formatter: f}
}

func (c *CLIFormatter) render(style lipgloss.Style, text string) string {
	if c.IsColorEnabled() {
		return style.Render(text)
	}
	return text
}

// Title prints a title.
func (c *CLIFormatter) Title(text string) {
	c.Println(c.render(styleTitle, text))
}

// Success prints a success message.
func (c *CLIFormatter) Success(text string) {
	c.Println(c.render(styleSuccess, "✓ "+text))
}

// Warning prints a warning message.
func (c *CLIFormatter) Warning(text string) {
	c.Println(c.render(styleWarning, "⚠ "+text))
}

// Error prints an error message.
func (c *CLIFormatter) Error(text string) {
	c.Println(c.render(styleError, "✗ "+text))
}

// Muted prints muted text.
func (c *CLIFormatter) Muted(text string) {
	c.Println(c.render(styleMuted, text))
}

// Name formats an entity name.
func (c *CLIFormatter) Name(name string) string {
	return c.render(styleName, name)
}

// Accent formats secondary highlighted text.
func (c *CLIFormatter) Accent(text string) string {
	return c.render(styleAccent, text)
}

// State formats a queue job state.
func (c *CLIFormatter) State(state string) string {
	style, ok := stateStyles[state]
	if !ok {
		return state
	}
	return c.render(style, state)
}

// Field prints an aligned "label: value" line.
func (c *CLIFormatter) Field(label, value string) {
	c.Printf("  %-12s %s\n", label+":", value)
}

// ProgressBar creates a simple progress bar.
func ProgressBar(percentage float64, width int) string {
	if percentage > 100 {
		percentage = 100
	}
	if percentage < 0 {
		percentage = 0
	}

	filled := int(float64(width) * percentage / 100)
	empty := width - filled

	return strings.Repeat("█", filled) + strings.Repeat("░", empty)
}

// Table helpers for CLI output.
type TableRow struct {
	Columns []string
}

// PrintTable prints a simple table. Column widths ignore ANSI styling.
func (c *CLIFormatter) PrintTable(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, col := range row.Columns {
			if i < len(widths) && lipgloss.Width(col) > widths[i] {
				widths[i] = lipgloss.Width(col)
			}
		}
	}

	var headerLine strings.Builder
	for i, h := range headers {
		headerLine.WriteString(fmt.Sprintf("%-*s  ", widths[i], h))
	}
	c.Println(c.render(styleBold, strings.TrimRight(headerLine.String(), " ")))

	var sep strings.Builder
	for _, w := range widths {
		sep.WriteString(strings.Repeat("─", w) + "  ")
	}
	c.Println(strings.TrimRight(sep.String(), " "))

	for _, row := range rows {
		var rowLine strings.Builder
		for i, col := range row.Columns {
			if i < len(widths) {
				rowLine.WriteString(col)
				rowLine.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(col)+2))
			}
		}
		c.Println(strings.TrimRight(rowLine.String(), " "))
	}
}

// =============================================================================
// Business hours
// =============================================================================

func openDays(b *model.BusinessHour) string {
	var days []string
	for _, wh := range b.OpenWorkHours() {
		if len(wh.Day) >= 3 {
			days = append(days, wh.Day[:3])
		} else {
			days = append(days, wh.Day)
		}
	}
	if len(days) == 0 {
		return "-"
	}
	return strings.Join(days, ",")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// PrintBusinessHours prints business hours as a table.
func (c *CLIFormatter) PrintBusinessHours(hours []*model.BusinessHour) {
	if len(hours) == 0 {
		c.Muted("No business hours configured.")
		return
	}
	rows := make([]TableRow, 0, len(hours))
	for _, b := range hours {
		rows = append(rows, TableRow{Columns: []string{
			b.ID,
			b.Name,
			string(b.Type),
			yesNo(b.Active),
			b.Timezone.Name + " (" + b.Timezone.UTC + ")",
			openDays(b),
		}})
	}
	c.PrintTable([]string{"ID", "NAME", "TYPE", "ACTIVE", "TIMEZONE", "OPEN"}, rows)
}

// PrintBusinessHour prints one business hour with its work hours.
func (c *CLIFormatter) PrintBusinessHour(b *model.BusinessHour) {
	name := b.Name
	if name == "" {
		name = b.ID
	}
	c.Title(name)
	c.Field("ID", b.ID)
	c.Field("Type", string(b.Type))
	c.Field("Active", yesNo(b.Active))
	c.Field("Timezone", fmt.Sprintf("%s (UTC%s)", b.Timezone.Name, signed(b.Timezone.UTC)))
	if !b.TS.IsZero() {
		c.Field("Created", FormatTime(b.TS))
	}
	c.Println()

	rows := make([]TableRow, 0, len(b.WorkHours))
	for _, wh := range b.WorkHours {
		rows = append(rows, TableRow{Columns: []string{
			wh.Day,
			yesNo(wh.Open),
			wh.Start.Time,
			wh.Finish.Time,
			wh.Start.Cron.DayOfWeek + " " + wh.Start.Cron.Time,
			wh.Finish.Cron.DayOfWeek + " " + wh.Finish.Cron.Time,
		}})
	}
	c.PrintTable([]string{"DAY", "OPEN", "START", "FINISH", "CRON START", "CRON FINISH"}, rows)
}

func signed(offset string) string {
	if offset == "" || strings.HasPrefix(offset, "-") || strings.HasPrefix(offset, "+") {
		return offset
	}
	return "+" + offset
}

// PrintScheduleTable prints the open and close trigger groupings.
func (c *CLIFormatter) PrintScheduleTable(t businesshours.ScheduleTable) {
	if t.IsEmpty() {
		c.Muted("No triggers: no active business hour is open on any day.")
		return
	}
	c.printTriggerGroup("Open", t.Start)
	c.Println()
	c.printTriggerGroup("Close", t.Finish)
}

func (c *CLIFormatter) printTriggerGroup(label string, items []businesshours.CronJobsItem) {
	c.Title(label)
	rows := make([]TableRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, TableRow{Columns: []string{item.Day, strings.Join(item.Times, " ")}})
	}
	if len(rows) == 0 {
		c.Muted("  none")
		return
	}
	c.PrintTable([]string{"DAY", "TIMES"}, rows)
}

// =============================================================================
// Notification queue
// =============================================================================

func optionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return FormatTimeShort(*t)
}

// PrintJobs prints queued jobs with their state at now.
func (c *CLIFormatter) PrintJobs(jobs []*model.NotificationJob, now, staleAfter time.Time) {
	if len(jobs) == 0 {
		c.Muted("Queue is empty.")
		return
	}
	rows := make([]TableRow, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, TableRow{Columns: []string{
			j.ID,
			j.UID,
			c.State(queue.State(j, now, staleAfter)),
			strconv.Itoa(len(j.Items)),
			FormatTimeShort(j.TS),
			optionalTime(j.Schedule),
			truncate(j.ErrorMessage(), 40),
		}})
	}
	c.PrintTable([]string{"ID", "USER", "STATE", "ITEMS", "QUEUED", "SCHEDULE", "ERROR"}, rows)
}

// PrintJob prints a single job.
func (c *CLIFormatter) PrintJob(j *model.NotificationJob, now, staleAfter time.Time) {
	c.Title(j.ID)
	c.Field("User", j.UID)
	if j.RID != "" {
		c.Field("Room", j.RID)
	}
	if j.MID != "" {
		c.Field("Message", j.MID)
	}
	c.Field("State", c.State(queue.State(j, now, staleAfter)))
	c.Field("Queued", FormatTime(j.TS))
	c.Field("Expires", FormatTime(queue.ExpiresAt(j)))
	if j.Schedule != nil {
		c.Field("Schedule", FormatTime(*j.Schedule))
	}
	if j.Sending != nil {
		c.Field("Claimed", FormatTime(*j.Sending))
	}
	if j.Error != nil {
		c.Field("Error", *j.Error)
	}
	for i, item := range j.Items {
		c.Field(fmt.Sprintf("Item %d", i+1), string(item.Type)+" "+formatData(item.Data))
	}
}

func formatData(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}
	n := model.Notification{Fields: data}
	parts := make([]string, 0, len(data))
	for _, k := range n.FieldKeys() {
		parts = append(parts, k+"="+data[k])
	}
	return strings.Join(parts, " ")
}

// PrintQueueStats prints queue counters.
func (c *CLIFormatter) PrintQueueStats(s queue.Stats) {
	c.Title("Notification queue")
	c.Field("Total", strconv.Itoa(s.Total))
	c.Field("Pending", c.Accent(strconv.Itoa(s.Pending)))
	c.Field("Scheduled", strconv.Itoa(s.Scheduled))
	c.Field("Sending", strconv.Itoa(s.Sending))
	c.Field("Stale", strconv.Itoa(s.Stale))
	c.Field("Failed", strconv.Itoa(s.Failed))
}

// =============================================================================
// Teams and webhooks
// =============================================================================

// PrintTeamMembers prints memberships as a table.
func (c *CLIFormatter) PrintTeamMembers(members []*model.TeamMember) {
	if len(members) == 0 {
		c.Muted("No team members.")
		return
	}
	rows := make([]TableRow, 0, len(members))
	for _, m := range members {
		roles := strings.Join(m.Roles, ",")
		if roles == "" {
			roles = "-"
		}
		rows = append(rows, TableRow{Columns: []string{
			m.TeamID,
			m.UserID,
			roles,
			FormatDate(m.CreatedAt),
		}})
	}
	c.PrintTable([]string{"TEAM", "USER", "ROLES", "SINCE"}, rows)
}

// PrintWebhooks prints webhooks as a table with masked URLs.
func (c *CLIFormatter) PrintWebhooks(hooks []*model.Webhook) {
	if len(hooks) == 0 {
		c.Muted("No webhooks configured. Add one with 'livedesk webhook add'.")
		return
	}
	rows := make([]TableRow, 0, len(hooks))
	for _, w := range hooks {
		status := "enabled"
		if !w.Enabled {
			status = "disabled"
		}
		last := "-"
		if !w.LastUsed.IsZero() {
			last = FormatTimeShort(w.LastUsed)
		}
		rows = append(rows, TableRow{Columns: []string{
			w.Name,
			w.Type,
			status,
			w.MaskedURL(),
			last,
			truncate(w.LastError, 40),
		}})
	}
	c.PrintTable([]string{"NAME", "TYPE", "STATUS", "URL", "LAST USED", "LAST ERROR"}, rows)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
