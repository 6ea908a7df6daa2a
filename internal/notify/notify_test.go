package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/manav03panchal/livedesk/internal/config"
	lderrors "github.com/manav03panchal/livedesk/internal/errors"
	"github.com/manav03panchal/livedesk/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// memWebhooks is an in-memory WebhookStore.
type memWebhooks struct {
	mu    sync.Mutex
	hooks map[string]*model.Webhook
}

func newMemWebhooks(hooks ...*model.Webhook) *memWebhooks {
	m := &memWebhooks{hooks: make(map[string]*model.Webhook)}
	for _, h := range hooks {
		m.hooks[h.Name] = h
	}
	return m
}

func (m *memWebhooks) Create(_ context.Context, w *model.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[w.Name] = w
	return nil
}

func (m *memWebhooks) Get(_ context.Context, name string) (*model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.hooks[name]
	if !ok {
		return nil, lderrors.ErrWebhookNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memWebhooks) List(_ context.Context) ([]*model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Webhook
	for _, w := range m.hooks {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memWebhooks) ListEnabled(ctx context.Context) ([]*model.Webhook, error) {
	all, _ := m.List(ctx)
	var out []*model.Webhook
	for _, w := range all {
		if w.Enabled {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWebhooks) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hooks[name]; !ok {
		return lderrors.ErrWebhookNotFound
	}
	delete(m.hooks, name)
	return nil
}

func (m *memWebhooks) SetEnabled(_ context.Context, name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.hooks[name]
	if !ok {
		return lderrors.ErrWebhookNotFound
	}
	w.Enabled = enabled
	return nil
}

func (m *memWebhooks) UpdateLastUsed(_ context.Context, name string, lastErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.hooks[name]
	if !ok {
		return lderrors.ErrWebhookNotFound
	}
	w.LastUsed = time.Now()
	w.LastError = ""
	if lastErr != nil {
		w.LastError = lastErr.Error()
	}
	return nil
}

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		RetryDelays:     []time.Duration{0, 0, 0},
		BreakerFailures: 5,
		BreakerTimeout:  time.Minute,
	}
}

// statusServer answers every request with the next status in codes,
// repeating the last one, and counts hits.
func statusServer(t *testing.T, codes ...int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&hits, 1)) - 1
		if n >= len(codes) {
			n = len(codes) - 1
		}
		w.WriteHeader(codes[n])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// captureServer records request bodies and answers 200.
func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

// =============================================================================
// Formatter Tests
// =============================================================================

func TestGetFormatter(t *testing.T) {
	tests := []struct {
		webhookType string
		expected    string
	}{
		{model.WebhookTypeDiscord, "*notify.DiscordFormatter"},
		{model.WebhookTypeSlack, "*notify.SlackFormatter"},
		{model.WebhookTypeTeams, "*notify.TeamsFormatter"},
		{model.WebhookTypeGeneric, "*notify.GenericFormatter"},
		{"unknown", "*notify.GenericFormatter"},
		{"", "*notify.GenericFormatter"},
	}

	for _, tt := range tests {
		t.Run(tt.webhookType, func(t *testing.T) {
			formatter := GetFormatter(tt.webhookType)
			assert.NotNil(t, formatter)
			assert.Equal(t, tt.expected, fmt.Sprintf("%T", formatter))
		})
	}
}

func TestFormatters(t *testing.T) {
	n := model.NewNotification(model.NotifyPush, "Test Title", "Test Message")

	for _, f := range []Formatter{&DiscordFormatter{}, &SlackFormatter{}, &TeamsFormatter{}, &GenericFormatter{}} {
		t.Run(fmt.Sprintf("%T", f), func(t *testing.T) {
			assert.Equal(t, "application/json", f.ContentType())

			payload, err := f.Format(n)
			require.NoError(t, err)
			assert.True(t, json.Valid(payload))
			assert.Contains(t, string(payload), "Test Title")
			assert.Contains(t, string(payload), "Test Message")
		})
	}
}

func TestDiscordFormatterWithFields(t *testing.T) {
	formatter := &DiscordFormatter{}

	notification := model.NewNotification(model.NotifyBusinessOpen, "Support desk open", "Agents are now online").
		WithField("Window", "support").
		WithField("Day", "Monday").
		WithColor(model.ColorSuccess)

	payload, err := formatter.Format(notification)
	require.NoError(t, err)

	assert.Contains(t, string(payload), "Support desk open")
	assert.Contains(t, string(payload), "Monday")
	assert.Contains(t, string(payload), "support")
	assert.Contains(t, string(payload), fmt.Sprintf("%d", model.ColorSuccess))
}

func TestDiscordFormatterFieldOrder(t *testing.T) {
	notification := model.NewNotification(model.NotifyPush, "t", "m").
		WithField("b", "2").
		WithField("a", "1")

	payload, err := (&DiscordFormatter{}).Format(notification)
	require.NoError(t, err)

	var decoded struct {
		Embeds []struct {
			Fields []struct {
				Name string `json:"name"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Len(t, decoded.Embeds, 1)
	var names []string
	for _, f := range decoded.Embeds[0].Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, notification.FieldKeys(), names)
}

func TestSlackFormatterEscapesText(t *testing.T) {
	notification := model.NewNotification(model.NotifyPush, "a <b>", "x & y")

	payload, err := (&SlackFormatter{}).Format(notification)
	require.NoError(t, err)

	var decoded struct {
		Blocks []struct {
			Text *struct {
				Text string `json:"text"`
			} `json:"text"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.GreaterOrEqual(t, len(decoded.Blocks), 2)
	assert.Equal(t, "a <b>", decoded.Blocks[0].Text.Text, "plain_text header is not escaped")
	assert.Equal(t, "x &amp; y", decoded.Blocks[1].Text.Text)
}

func TestTeamsFormatterWithFields(t *testing.T) {
	notification := model.NewNotification(model.NotifyBusinessClose, "Closed", "Desk closed").
		WithField("Window", "support")

	payload, err := (&TeamsFormatter{}).Format(notification)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Closed")
	assert.Contains(t, string(payload), "support")
}

func TestGenericFormatterDefaultPayload(t *testing.T) {
	notification := model.NewNotification(model.NotifyEmail, "Subject", "Body").WithField("User", "u1")

	payload, err := NewGenericFormatter("").Format(notification)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "livedesk", decoded["source"])
	assert.Equal(t, "email", decoded["type"])
	assert.Equal(t, "Subject", decoded["title"])
}

func TestGenericFormatterWithTemplate(t *testing.T) {
	formatter := NewGenericFormatter("{ \"text\": \"{{.Title}}: {{.Message}}\" }")

	payload, err := formatter.Format(model.NewNotification(model.NotifyTest, "Custom", "Custom message"))
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Custom: Custom message")
}

func TestGenericFormatterWithInvalidTemplate(t *testing.T) {
	payload, err := NewGenericFormatter("{{ invalid template").Format(model.NewNotification(model.NotifyTest, "Test", "Test"))
	assert.Error(t, err)
	assert.Nil(t, payload)
}

func TestSlackEscape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no_special_chars", "Hello World", "Hello World"},
		{"with_ampersand", "AT&T", "AT&amp;T"},
		{"with_less_than", "a < b", "a &lt; b"},
		{"with_greater_than", "a > b", "a &gt; b"},
		{"all_special", "<script>alert('&')</script>", "&lt;script&gt;alert('&amp;')&lt;/script&gt;"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, slackEscape(tt.input))
		})
	}
}

func TestColorToHex(t *testing.T) {
	tests := []struct {
		name     string
		color    int
		expected string
	}{
		{"red", 0xFF0000, "#FF0000"},
		{"green", 0x00FF00, "#00FF00"},
		{"blue", 0x0000FF, "#0000FF"},
		{"black", 0x000000, "#000000"},
		{"white", 0xFFFFFF, "#FFFFFF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, colorToHex(tt.color))
		})
	}
}

// =============================================================================
// HTTP Client Tests
// =============================================================================

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient()
	require.NotNil(t, client)
	assert.Equal(t, config.Global.HTTP.Timeout, client.client.Timeout)
}

func TestHTTPClientSendSuccess(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		h := r.Header.Clone()
		h.Set("X-Body", string(b))
		headers <- h
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClientWithConfig(testHTTPConfig())
	res := client.Send(context.Background(), srv.URL, "application/json", []byte(`{"ok":true}`))

	require.NoError(t, res.Error)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)

	h := <-headers
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "livedesk/1.0", h.Get("User-Agent"))
	assert.Equal(t, `{"ok":true}`, h.Get("X-Body"))
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	srv, hits := statusServer(t, http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusOK)

	client := NewHTTPClientWithConfig(testHTTPConfig())
	res := client.Send(context.Background(), srv.URL, "application/json", []byte("{}"))

	require.NoError(t, res.Error)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestHTTPClientDoesNotRetryClientErrors(t *testing.T) {
	srv, hits := statusServer(t, http.StatusBadRequest)

	client := NewHTTPClientWithConfig(testHTTPConfig())
	res := client.Send(context.Background(), srv.URL, "application/json", []byte("{}"))

	require.Error(t, res.Error)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.False(t, lderrors.IsRecoverableError(res.Error))
}

func TestHTTPClientExhaustsRetries(t *testing.T) {
	srv, hits := statusServer(t, http.StatusBadGateway)

	client := NewHTTPClientWithConfig(testHTTPConfig())
	res := client.Send(context.Background(), srv.URL, "application/json", []byte("{}"))

	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "502")
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestHTTPClientBreakerOpens(t *testing.T) {
	srv, hits := statusServer(t, http.StatusInternalServerError)

	cfg := testHTTPConfig()
	cfg.MaxRetries = 0
	cfg.BreakerFailures = 2
	client := NewHTTPClientWithConfig(cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res := client.Send(ctx, srv.URL, "application/json", []byte("{}"))
		require.Error(t, res.Error)
		assert.False(t, lderrors.IsRecoverableError(res.Error))
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState(srv.URL))

	res := client.Send(ctx, srv.URL, "application/json", []byte("{}"))
	require.Error(t, res.Error)
	assert.True(t, lderrors.IsRecoverableError(res.Error))
	assert.ErrorIs(t, res.Error, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits), "open circuit short-circuits the request")
}

func TestHTTPClientBreakerIgnoresClientErrors(t *testing.T) {
	srv, hits := statusServer(t, http.StatusNotFound)

	cfg := testHTTPConfig()
	cfg.BreakerFailures = 1
	client := NewHTTPClientWithConfig(cfg)

	for i := 0; i < 3; i++ {
		res := client.Send(context.Background(), srv.URL, "application/json", []byte("{}"))
		require.Error(t, res.Error)
		assert.Equal(t, 1, res.Attempts)
	}
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState(srv.URL))
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestHTTPClientBreakerPerHost(t *testing.T) {
	client := NewHTTPClientWithConfig(testHTTPConfig())
	a := client.breaker("https://hooks.example.com/a")
	b := client.breaker("https://hooks.example.com/b")
	c := client.breaker("https://other.example.com/a")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "hooks.example.com", a.Name())
}

func TestHTTPClientCanceledContext(t *testing.T) {
	srv, _ := statusServer(t, http.StatusServiceUnavailable)

	cfg := testHTTPConfig()
	cfg.RetryDelays = []time.Duration{0, time.Hour}
	client := NewHTTPClientWithConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *SendResult)
	go func() { done <- client.Send(ctx, srv.URL, "application/json", []byte("{}")) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		assert.ErrorIs(t, res.Error, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("send did not observe cancellation")
	}
}

// =============================================================================
// Dispatcher Tests
// =============================================================================

func TestDispatcherSendNotificationNoWebhooks(t *testing.T) {
	d := NewDispatcherWithClient(newMemWebhooks(), NewHTTPClientWithConfig(testHTTPConfig()))

	results := d.SendNotification(context.Background(), model.NewNotification(model.NotifyTest, "t", "m"))
	assert.Empty(t, results)
	assert.Equal(t, 0, d.CountEnabledWebhooks(context.Background()))
}

func TestDispatcherSendToSingleNotFound(t *testing.T) {
	d := NewDispatcherWithClient(newMemWebhooks(), NewHTTPClientWithConfig(testHTTPConfig()))

	result := d.SendToSingle(context.Background(), model.NewNotification(model.NotifyTest, "t", "m"), "missing")
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, lderrors.ErrWebhookNotFound)
}

func TestDispatcherSkipsDisabledWebhooks(t *testing.T) {
	srv, hits := statusServer(t, http.StatusOK)

	on := model.NewWebhook("on", model.WebhookTypeGeneric, srv.URL)
	off := model.NewWebhook("off", model.WebhookTypeGeneric, srv.URL)
	off.Enabled = false
	d := NewDispatcherWithClient(newMemWebhooks(on, off), NewHTTPClientWithConfig(testHTTPConfig()))

	results := d.SendNotification(context.Background(), model.NewNotification(model.NotifyTest, "t", "m"))
	require.Len(t, results, 1)
	assert.Equal(t, "on", results[0].WebhookName)
	assert.True(t, results[0].Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, 1, d.CountEnabledWebhooks(context.Background()))
}

func TestDispatcherDeliver(t *testing.T) {
	srv, bodies := captureServer(t)

	hooks := newMemWebhooks(model.NewWebhook("desk", model.WebhookTypeGeneric, srv.URL))
	d := NewDispatcherWithClient(hooks, NewHTTPClientWithConfig(testHTTPConfig()))

	job := model.NewNotificationJob("u1", "room-1", "msg-1",
		model.NotificationItem{Type: model.ItemPush, Data: map[string]string{"title": "Hello", "message": "New chat"}},
		model.NotificationItem{Type: model.ItemEmail, Data: map[string]string{"title": "Digest"}},
	)
	job.ID = "job-1"
	job.TS = time.Now()

	require.NoError(t, d.Deliver(context.Background(), job))

	got := bodies()
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "Hello")
	assert.Contains(t, got[0], "room-1")
	assert.Contains(t, got[1], "Digest")

	w, err := hooks.Get(context.Background(), "desk")
	require.NoError(t, err)
	assert.False(t, w.LastUsed.IsZero())
	assert.Empty(t, w.LastError)
}

func TestDispatcherDeliverFailure(t *testing.T) {
	srv, _ := statusServer(t, http.StatusForbidden)

	hooks := newMemWebhooks(model.NewWebhook("desk", model.WebhookTypeSlack, srv.URL))
	d := NewDispatcherWithClient(hooks, NewHTTPClientWithConfig(testHTTPConfig()))

	job := model.NewNotificationJob("u1", "", "", model.NotificationItem{Type: model.ItemPush})
	err := d.Deliver(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "desk")

	w, gerr := hooks.Get(context.Background(), "desk")
	require.NoError(t, gerr)
	assert.Contains(t, w.LastError, "403")
}

func TestDispatcherDeliverDefersWhenCircuitOpen(t *testing.T) {
	srv, _ := statusServer(t, http.StatusBadGateway)

	cfg := testHTTPConfig()
	cfg.MaxRetries = 0
	cfg.BreakerFailures = 1
	hooks := newMemWebhooks(model.NewWebhook("desk", model.WebhookTypeGeneric, srv.URL))
	d := NewDispatcherWithClient(hooks, NewHTTPClientWithConfig(cfg))

	job := model.NewNotificationJob("u1", "", "", model.NotificationItem{Type: model.ItemPush})
	err := d.Deliver(context.Background(), job)
	require.Error(t, err)
	assert.False(t, lderrors.IsRecoverableError(err), "a 502 is a real failure")

	err = d.Deliver(context.Background(), job)
	require.Error(t, err)
	assert.True(t, lderrors.IsRecoverableError(err))
	assert.Contains(t, err.Error(), "desk")
}

func TestDispatcherTestWebhook(t *testing.T) {
	srv, bodies := captureServer(t)

	d := NewDispatcherWithClient(
		newMemWebhooks(model.NewWebhook("desk", model.WebhookTypeDiscord, srv.URL)),
		NewHTTPClientWithConfig(testHTTPConfig()))

	result := d.TestWebhook(context.Background(), "desk")
	require.True(t, result.Success, "%v", result.Error)
	require.Len(t, bodies(), 1)
	assert.Contains(t, bodies()[0], "livedesk test")
}
