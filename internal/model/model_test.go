package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Key Tests
// =============================================================================

func TestGenerateKeyAndIDFromKey(t *testing.T) {
	key := GenerateKey(PrefixNotification, "01HX")
	assert.Equal(t, "notification:01HX", key)
	assert.Equal(t, "01HX", IDFromKey(PrefixNotification, key))
	assert.Equal(t, "plain", IDFromKey(PrefixNotification, "plain"))
}

func TestModelSetGetKey(t *testing.T) {
	bh := &BusinessHour{}
	bh.SetKey("businesshour:abc")
	assert.Equal(t, "abc", bh.ID)
	assert.Equal(t, "businesshour:abc", bh.GetKey())

	job := &NotificationJob{}
	job.SetKey("notification:xyz")
	assert.Equal(t, "xyz", job.ID)
	assert.Equal(t, "notification:xyz", job.GetKey())

	member := &TeamMember{}
	member.SetKey("teammember:m1")
	assert.Equal(t, "m1", member.ID)

	wh := &Webhook{}
	wh.SetKey("webhook:ops")
	assert.Equal(t, "ops", wh.Name)
	assert.Equal(t, "webhook:ops", wh.GetKey())
}

func TestTrashRecordKeyRoundTrip(t *testing.T) {
	rec := &TrashRecord{ID: "abc", Collection: CollectionBusinessHours}
	key := rec.GetKey()
	assert.Equal(t, "trash:livechat_business_hours:abc", key)

	decoded := &TrashRecord{}
	decoded.SetKey(key)
	assert.Equal(t, "abc", decoded.ID)
	assert.Equal(t, CollectionBusinessHours, decoded.Collection)
}

// =============================================================================
// BusinessHour Tests
// =============================================================================

func TestBusinessHourTypes(t *testing.T) {
	assert.True(t, BusinessHourDefault.IsValid())
	assert.True(t, BusinessHourCustom.IsValid())
	assert.False(t, LegacyBusinessHourSingle.IsValid())
	assert.True(t, LegacyBusinessHourSingle.IsLegacy())
	assert.True(t, LegacyBusinessHourMultiple.IsLegacy())
	assert.False(t, BusinessHourDefault.IsLegacy())
}

func TestBusinessHourJSONContract(t *testing.T) {
	bh := &BusinessHour{
		ID:       "bh1",
		Type:     BusinessHourDefault,
		Active:   true,
		Timezone: Timezone{Name: "America/Sao_Paulo", UTC: "-3"},
		WorkHours: []WorkHour{{
			Day:    "Monday",
			Open:   true,
			Start:  HourMark{Time: "08:00", Cron: DayTime{DayOfWeek: "Monday", Time: "08:00"}},
			Finish: HourMark{Time: "18:00", Cron: DayTime{DayOfWeek: "Monday", Time: "18:00"}},
		}},
	}

	data, err := json.Marshal(bh)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "bh1", raw["_id"])
	assert.Equal(t, "default", raw["type"])

	workHours := raw["workHours"].([]any)
	first := workHours[0].(map[string]any)
	start := first["start"].(map[string]any)
	cron := start["cron"].(map[string]any)
	assert.Equal(t, "Monday", cron["dayOfWeek"])
	assert.Equal(t, "08:00", cron["time"])
}

func TestBusinessHourDisplayName(t *testing.T) {
	assert.Equal(t, "support", (&BusinessHour{ID: "a", Name: "support"}).DisplayName())
	assert.Equal(t, "default", (&BusinessHour{ID: "a", Type: BusinessHourDefault}).DisplayName())
	assert.Equal(t, "a", (&BusinessHour{ID: "a", Type: BusinessHourCustom}).DisplayName())
}

func TestBusinessHourOpenWorkHours(t *testing.T) {
	bh := &BusinessHour{WorkHours: []WorkHour{
		{Day: "Monday", Open: true},
		{Day: "Sunday", Open: false},
	}}
	open := bh.OpenWorkHours()
	require.Len(t, open, 1)
	assert.Equal(t, "Monday", open[0].Day)
}

// =============================================================================
// NotificationJob Tests
// =============================================================================

func TestNotificationJobOptionalFieldsOmitted(t *testing.T) {
	job := NewNotificationJob("u1", "r1", "m1", NotificationItem{Type: ItemPush})
	job.ID = "j1"
	job.TS = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	data, err := json.Marshal(job)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "schedule")
	assert.NotContains(t, raw, "sending")
	assert.NotContains(t, raw, "error")
	assert.Equal(t, "u1", raw["uid"])
}

func TestNotificationJobState(t *testing.T) {
	job := &NotificationJob{}
	assert.False(t, job.IsClaimed())
	assert.False(t, job.IsFailed())
	assert.False(t, job.IsScheduled())
	assert.Equal(t, "", job.ErrorMessage())

	now := time.Now()
	reason := "smtp refused"
	job.Sending = &now
	job.Schedule = &now
	job.Error = &reason
	assert.True(t, job.IsClaimed())
	assert.True(t, job.IsFailed())
	assert.True(t, job.IsScheduled())
	assert.Equal(t, reason, job.ErrorMessage())
}

// =============================================================================
// TeamMember Tests
// =============================================================================

func TestTeamMemberRoles(t *testing.T) {
	m := &TeamMember{Roles: []string{"owner"}}
	m.AddRoles("moderator", "owner", "leader")
	assert.Equal(t, []string{"owner", "moderator", "leader"}, m.Roles)
	assert.True(t, m.HasRole("leader"))

	m.RemoveRoles("owner", "missing")
	assert.Equal(t, []string{"moderator", "leader"}, m.Roles)
	assert.False(t, m.HasRole("owner"))
}

// =============================================================================
// Trash Tests
// =============================================================================

func TestTrashRecordDecode(t *testing.T) {
	bh := &BusinessHour{ID: "bh1", Name: "Support"}
	rec, err := NewTrashRecord(CollectionBusinessHours, bh.ID, bh)
	require.NoError(t, err)
	assert.False(t, rec.DeletedAt.IsZero())

	var restored BusinessHour
	require.NoError(t, rec.Decode(&restored))
	assert.Equal(t, "Support", restored.Name)
}

// =============================================================================
// Webhook & Notification Tests
// =============================================================================

func TestDetectWebhookType(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://discord.com/api/webhooks/1/abc", WebhookTypeDiscord},
		{"https://hooks.slack.com/services/T/B/X", WebhookTypeSlack},
		{"https://acme.webhook.office.com/webhookb2/x", WebhookTypeTeams},
		{"https://example.com/hook", WebhookTypeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectWebhookType(tt.url))
		})
	}
}

func TestIsValidWebhookName(t *testing.T) {
	assert.True(t, IsValidWebhookName("ops-alerts"))
	assert.False(t, IsValidWebhookName(""))
	assert.False(t, IsValidWebhookName("-bad"))
}

func TestNotificationFromItem(t *testing.T) {
	job := &NotificationJob{UID: "u1", RID: "GENERAL", TS: time.Now()}
	item := NotificationItem{Type: ItemEmail, Data: map[string]string{
		"title":   "Mention",
		"message": "@u1 ping",
		"sender":  "alice",
	}}

	n := NotificationFromItem(job, item)
	assert.Equal(t, NotifyEmail, n.Type)
	assert.Equal(t, "Mention", n.Title)
	assert.Equal(t, "@u1 ping", n.Message)
	assert.Equal(t, "alice", n.Fields["sender"])
	assert.Equal(t, "GENERAL", n.Fields["Room"])
	assert.Equal(t, []string{"Room", "User", "sender"}, n.FieldKeys())
}
