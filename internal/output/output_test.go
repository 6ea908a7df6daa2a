package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	"github.com/manav03panchal/livedesk/internal/model"
	"github.com/manav03panchal/livedesk/internal/queue"
)

// =============================================================================
// Formatter Tests
// =============================================================================

func TestNewFormatter(t *testing.T) {
	f := NewFormatter()
	assert.NotNil(t, f)
	assert.Equal(t, FormatCLI, f.Format)
	assert.Equal(t, ColorAuto, f.ColorMode)
	assert.False(t, f.NoNewline)
}

func TestFormatterIsColorEnabled(t *testing.T) {
	t.Run("color_always", func(t *testing.T) {
		f := &Formatter{ColorMode: ColorAlways}
		assert.True(t, f.IsColorEnabled())
	})

	t.Run("color_never", func(t *testing.T) {
		f := &Formatter{ColorMode: ColorNever}
		assert.False(t, f.IsColorEnabled())
	})

	t.Run("color_auto_non_terminal", func(t *testing.T) {
		var buf bytes.Buffer
		f := &Formatter{
			Writer:    &buf,
			ColorMode: ColorAuto,
		}
		// Buffer is not a terminal
		assert.False(t, f.IsColorEnabled())
	})
}

func TestFormatterPrint(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf}

	f.Print("hello")
	assert.Equal(t, "hello", buf.String())
}

func TestFormatterPrintln(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf}

	f.Println("hello")
	assert.Equal(t, "hello\n", buf.String())
}

func TestFormatterPrintf(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf}

	f.Printf("hello %s", "world")
	assert.Equal(t, "hello world", buf.String())
}

func TestFormatterJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf}

	data := map[string]string{"key": "value"}
	err := f.JSON(data)
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `"key": "value"`)
}

func TestFormatterPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf}

	data := map[string]int{"count": 42}
	err := f.PrintJSON(data)
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `"count": 42`)
}

// =============================================================================
// Format and ColorMode Constants Tests
// =============================================================================

func TestFormatConstants(t *testing.T) {
	assert.Equal(t, Format("cli"), FormatCLI)
	assert.Equal(t, Format("json"), FormatJSON)
	assert.Equal(t, Format("plain"), FormatPlain)
}

func TestColorModeConstants(t *testing.T) {
	assert.Equal(t, ColorMode("auto"), ColorAuto)
	assert.Equal(t, ColorMode("always"), ColorAlways)
	assert.Equal(t, ColorMode("never"), ColorNever)
}

// =============================================================================
// Duration Formatting Tests
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m"},
		{90 * time.Second, "1m 30s"},
		{5 * time.Minute, "5m"},
		{5*time.Minute + 30*time.Second, "5m 30s"},
		{59 * time.Minute, "59m"},
		{60 * time.Minute, "1h"},
		{90 * time.Minute, "1h 30m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
		{8*time.Hour + 30*time.Minute, "8h 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatDuration(tt.duration)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{60 * time.Second, "1m"},
		{90 * time.Second, "1m"}, // No seconds in short form
		{5 * time.Minute, "5m"},
		{60 * time.Minute, "1h"},
		{90 * time.Minute, "1h 30m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := FormatDurationShort(tt.duration)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// =============================================================================
// Time Formatting Tests
// =============================================================================

func TestFormatTime(t *testing.T) {
	tm := time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)
	result := FormatTime(tm)
	assert.Contains(t, result, "2024-01-15")
	assert.Contains(t, result, "30")
	assert.Contains(t, result, "45")
}

func TestFormatTimeShort(t *testing.T) {
	tm := time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)
	result := FormatTimeShort(tm)
	assert.Contains(t, result, "2024-01-15")
	assert.Contains(t, result, "30")
	assert.NotContains(t, result, ":45")
}

func TestFormatDate(t *testing.T) {
	tm := time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)
	result := FormatDate(tm)
	assert.Contains(t, result, "2024-01-15")
	assert.NotContains(t, result, "14")
}

func TestFormatTimeOnly(t *testing.T) {
	tm := time.Date(2024, 1, 15, 14, 30, 45, 0, time.UTC)
	result := FormatTimeOnly(tm)
	assert.NotContains(t, result, "2024")
	assert.Contains(t, result, ":")
}

// =============================================================================
// CLIFormatter Tests
// =============================================================================

func TestNewCLIFormatter(t *testing.T) {
	f := NewFormatter()
	cli := NewCLIFormatter(f)
	assert.NotNil(t, cli)
	assert.Equal(t, f, cli.Formatter)
}

func TestCLIFormatterTitle(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf, ColorMode: ColorNever}
	cli := NewCLIFormatter(f)

	cli.Title("My Title")
	assert.Contains(t, buf.String(), "My Title")
}

func TestCLIFormatterSuccess(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf, ColorMode: ColorNever}
	cli := NewCLIFormatter(f)

	cli.Success("Operation completed")
	assert.Contains(t, buf.String(), "✓ Operation completed")
}

func TestCLIFormatterWarning(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf, ColorMode: ColorNever}
	cli := NewCLIFormatter(f)

	cli.Warning("Be careful")
	assert.Contains(t, buf.String(), "⚠ Be careful")
}

func TestCLIFormatterError(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf, ColorMode: ColorNever}
	cli := NewCLIFormatter(f)

	cli.Error("Something failed")
	assert.Contains(t, buf.String(), "✗ Something failed")
}

func TestCLIFormatterMuted(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf, ColorMode: ColorNever}
	cli := NewCLIFormatter(f)

	cli.Muted("Subtle text")
	assert.Contains(t, buf.String(), "Subtle text")
}

func newTestCLI() (*CLIFormatter, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewCLIFormatter(&Formatter{Writer: &buf, ColorMode: ColorNever}), &buf
}

func TestCLIFormatterNameAndAccent(t *testing.T) {
	cli, _ := newTestCLI()
	assert.Equal(t, "support", cli.Name("support"))
	assert.Equal(t, "3", cli.Accent("3"))
	assert.Equal(t, "failed", cli.State("failed"))

	colored := NewCLIFormatter(&Formatter{ColorMode: ColorAlways})
	assert.Contains(t, colored.Name("support"), "support")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", ProgressBar(50, 10))
	assert.Equal(t, "██████████", ProgressBar(150, 10))
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(-5, 10))
}

func TestCLIFormatterPrintTable(t *testing.T) {
	cli, buf := newTestCLI()
	cli.PrintTable([]string{"A", "LONG"}, []TableRow{
		{Columns: []string{"wide-value", "x"}},
		{Columns: []string{"y", "z"}},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "A           LONG", lines[0])
	assert.Equal(t, "wide-value  x", lines[2])
	assert.Equal(t, "y           z", lines[3])
}

func TestCLIFormatterPrintTableEmpty(t *testing.T) {
	cli, buf := newTestCLI()
	cli.PrintTable([]string{"A"}, nil)
	assert.Empty(t, buf.String())
}

func sampleBusinessHour() *model.BusinessHour {
	mark := func(day, hhmm string) model.HourMark {
		return model.HourMark{Time: hhmm, UTC: model.DayTime{DayOfWeek: day, Time: hhmm}, Cron: model.DayTime{DayOfWeek: day, Time: hhmm}}
	}
	b := model.NewBusinessHour("support", model.BusinessHourDefault, model.Timezone{Name: "America/Sao_Paulo", UTC: "-3"}, []model.WorkHour{
		{Day: "Monday", Start: mark("Monday", "08:00"), Finish: mark("Monday", "18:00"), Open: true},
		{Day: "Sunday", Start: mark("Sunday", "00:00"), Finish: mark("Sunday", "00:00"), Open: false},
	})
	b.ID = "bh-1"
	return b
}

func TestCLIFormatterPrintBusinessHours(t *testing.T) {
	cli, buf := newTestCLI()
	cli.PrintBusinessHours([]*model.BusinessHour{sampleBusinessHour()})

	out := buf.String()
	assert.Contains(t, out, "bh-1")
	assert.Contains(t, out, "support")
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "America/Sao_Paulo (-3)")
	assert.Contains(t, out, "Mon")
	assert.NotContains(t, out, "Sun")
}

func TestCLIFormatterPrintBusinessHoursEmpty(t *testing.T) {
	cli, buf := newTestCLI()
	cli.PrintBusinessHours(nil)
	assert.Contains(t, buf.String(), "No business hours")
}

func TestCLIFormatterPrintBusinessHour(t *testing.T) {
	cli, buf := newTestCLI()
	cli.PrintBusinessHour(sampleBusinessHour())

	out := buf.String()
	assert.Contains(t, out, "support")
	assert.Contains(t, out, "UTC-3")
	assert.Contains(t, out, "Monday 08:00")
	assert.Contains(t, out, "Monday 18:00")
}

func TestSigned(t *testing.T) {
	assert.Equal(t, "+5.5", signed("5.5"))
	assert.Equal(t, "-3", signed("-3"))
	assert.Equal(t, "", signed(""))
}

func TestCLIFormatterPrintScheduleTable(t *testing.T) {
	cli, buf := newTestCLI()
	cli.PrintScheduleTable(businesshours.ScheduleTable{
		Start:  []businesshours.CronJobsItem{{Day: "Monday", Times: []string{"08:00", "09:00"}}},
		Finish: []businesshours.CronJobsItem{{Day: "Monday", Times: []string{"18:00"}}},
	})

	out := buf.String()
	assert.Contains(t, out, "Open")
	assert.Contains(t, out, "08:00 09:00")
	assert.Contains(t, out, "Close")
	assert.Contains(t, out, "18:00")

	cli, buf = newTestCLI()
	cli.PrintScheduleTable(businesshours.ScheduleTable{})
	assert.Contains(t, buf.String(), "No triggers")
}

func TestCLIFormatterPrintJobs(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	reason := "bad address"
	later := now.Add(time.Hour)
	jobs := []*model.NotificationJob{
		{ID: "01A", UID: "u1", TS: now, Items: []model.NotificationItem{{Type: model.ItemPush}}},
		{ID: "01B", UID: "u2", TS: now, Schedule: &later},
		{ID: "01C", UID: "u3", TS: now, Error: &reason},
	}

	cli, buf := newTestCLI()
	cli.PrintJobs(jobs, now, now.Add(-5*time.Minute))

	out := buf.String()
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "scheduled")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "bad address")
}

func TestCLIFormatterPrintJob(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	job := &model.NotificationJob{
		ID:      "01A",
		UID:     "u1",
		RID:     "general",
		TS:      now,
		Sending: &now,
		Items:   []model.NotificationItem{{Type: model.ItemEmail, Data: map[string]string{"b": "2", "a": "1"}}},
	}

	cli, buf := newTestCLI()
	cli.PrintJob(job, now, now.Add(-5*time.Minute))

	out := buf.String()
	assert.Contains(t, out, "general")
	assert.Contains(t, out, "sending")
	assert.Contains(t, out, "email a=1 b=2")
}

func TestCLIFormatterPrintQueueStats(t *testing.T) {
	cli, buf := newTestCLI()
	cli.PrintQueueStats(queue.Stats{Total: 4, Pending: 2, Failed: 2})

	out := buf.String()
	assert.Contains(t, out, "Total:")
	assert.Contains(t, out, "4")
	assert.Contains(t, out, "Failed:")
}

func TestCLIFormatterPrintTeamMembers(t *testing.T) {
	cli, buf := newTestCLI()
	cli.PrintTeamMembers([]*model.TeamMember{
		{TeamID: "t1", UserID: "u1", Roles: []string{"owner", "moderator"}, CreatedAt: time.Now()},
		{TeamID: "t1", UserID: "u2", CreatedAt: time.Now()},
	})

	out := buf.String()
	assert.Contains(t, out, "owner,moderator")
	assert.Contains(t, out, "u2")
}

func TestCLIFormatterPrintWebhooks(t *testing.T) {
	hook := model.NewWebhook("desk", model.WebhookTypeSlack, "https://hooks.slack.com/services/T000/B000/XXXXXXXXXXXXXXXX")
	hook.Enabled = false
	hook.LastError = "server error (HTTP 500)"

	cli, buf := newTestCLI()
	cli.PrintWebhooks([]*model.Webhook{hook})

	out := buf.String()
	assert.Contains(t, out, "desk")
	assert.Contains(t, out, "disabled")
	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "XXXXXXXXXXXXXXXX")
	assert.Contains(t, out, "HTTP 500")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

// =============================================================================
// JSONFormatter Tests
// =============================================================================

func TestJSONFormatterPrintList(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf})

	require.NoError(t, j.PrintList("business_hours", []*model.BusinessHour{sampleBusinessHour()}, 1, 0))

	var resp struct {
		Kind  string           `json:"kind"`
		Items []map[string]any `json:"items"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "business_hours", resp.Kind)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "bh-1", resp.Items[0]["_id"])
	assert.Contains(t, resp.Items[0], "workHours")
}

func TestJSONFormatterPrintListEmpty(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf})

	var jobs []*model.NotificationJob
	require.NoError(t, j.PrintList("jobs", jobs, 0, 0))
	assert.Contains(t, buf.String(), `"items": []`)
}

func TestJSONFormatterPrintError(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf})

	require.NoError(t, j.PrintError("error", "not found", "no such job"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "not found", resp.Error)
	assert.Equal(t, "no such job", resp.Message)
}

func TestJSONFormatterPrintCount(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf})

	require.NoError(t, j.PrintCount("cleared", 0))
	assert.Contains(t, buf.String(), `"count": 0`)
}
