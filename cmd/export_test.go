package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

func sampleHour() *model.BusinessHour {
	return &model.BusinessHour{
		ID:       "bh1",
		Name:     "Support",
		Type:     model.BusinessHourCustom,
		Active:   true,
		Timezone: model.Timezone{Name: "America/Sao_Paulo", UTC: "-3"},
		WorkHours: []model.WorkHour{
			{
				Day:  "Monday",
				Open: true,
				Start: model.HourMark{
					Time: "08:00",
					UTC:  model.DayTime{DayOfWeek: "Monday", Time: "11:00"},
					Cron: model.DayTime{DayOfWeek: "Monday", Time: "11:00"},
				},
				Finish: model.HourMark{
					Time: "18:00",
					UTC:  model.DayTime{DayOfWeek: "Monday", Time: "21:00"},
					Cron: model.DayTime{DayOfWeek: "Monday", Time: "21:00"},
				},
			},
			{Day: "Sunday", Start: model.HourMark{Time: "00:00"}, Finish: model.HourMark{Time: "00:00"}},
		},
	}
}

func TestExportWorkHoursCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, exportWorkHoursCSV(&buf, []*model.BusinessHour{sampleHour()}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "finish_cron", rows[0][len(rows[0])-1])

	assert.Equal(t, []string{
		"bh1", "Support", "custom", "true", "America/Sao_Paulo", "Monday", "true",
		"08:00", "18:00", "Monday 11:00", "Monday 21:00", "Monday 11:00", "Monday 21:00",
	}, rows[1])

	assert.Equal(t, "Sunday", rows[2][5])
	assert.Equal(t, "false", rows[2][6])
	assert.Equal(t, "", rows[2][9])
}

func TestExportWorkHoursCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, exportWorkHoursCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadBackup(t *testing.T) {
	path := writeFile(t, `{
  "version": "1",
  "exported_at": "2026-10-17T12:00:00Z",
  "business_hours": [{"_id": "bh1", "type": "default", "active": true, "timezone": {"name": "UTC", "utc": "0"}, "workHours": []}],
  "webhooks": [{"name": "ops", "type": "slack", "url": "https://hooks.slack.com/services/x", "enabled": true}],
  "team_members": [{"_id": "sales:user1", "teamId": "sales", "userId": "user1", "roles": ["owner"]}]
}`)

	backup, err := readBackup(path)
	require.NoError(t, err)
	require.Len(t, backup.BusinessHours, 1)
	assert.Equal(t, model.BusinessHourDefault, backup.BusinessHours[0].Type)
	require.Len(t, backup.Webhooks, 1)
	assert.Equal(t, "ops", backup.Webhooks[0].Name)
	require.Len(t, backup.TeamMembers, 1)
	assert.Equal(t, []string{"owner"}, backup.TeamMembers[0].Roles)
}

func TestReadBackupRejectsUnknownVersion(t *testing.T) {
	path := writeFile(t, `{"version": "9", "business_hours": []}`)

	_, err := readBackup(path)
	require.Error(t, err)
	assert.True(t, lderrors.IsUserError(err))
}

func TestReadBackupRejectsInvalidJSON(t *testing.T) {
	path := writeFile(t, `not json`)

	_, err := readBackup(path)
	require.Error(t, err)
	assert.True(t, lderrors.IsUserError(err))
}

func TestReadBackupMissingFile(t *testing.T) {
	_, err := readBackup(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.False(t, lderrors.IsUserError(err))
}

func TestDisplayValueMasksSecrets(t *testing.T) {
	uri := displayValue("store.uri", "mongodb://admin:hunter2@db:27017/livedesk")
	assert.NotContains(t, uri, "hunter2")
	assert.Contains(t, uri, "db:27017")

	assert.Equal(t, "5m0s", displayValue("queue.stale_after", "5m0s"))
	assert.Equal(t, 4, displayValue("queue.workers", 4))
}

func TestDayTime(t *testing.T) {
	assert.Equal(t, "Monday 08:00", dayTime(model.DayTime{DayOfWeek: "Monday", Time: "08:00"}))
	assert.Equal(t, "08:00", dayTime(model.DayTime{Time: "08:00"}))
}
