package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/livedesk/internal/businesshours"
	"github.com/manav03panchal/livedesk/internal/queue"
)

// tickMsg is sent when the refresh timer fires.
type tickMsg time.Time

// snapshotMsg carries freshly loaded data.
type snapshotMsg struct {
	stats    queue.Stats
	triggers []businesshours.Upcoming
	at       time.Time
	err      error
}

// WatchConfig holds configuration for the queue watch view.
type WatchConfig struct {
	// Stats loads the queue counters.
	Stats func(ctx context.Context) (queue.Stats, error)
	// Table loads the current schedule table. Optional.
	Table func(ctx context.Context) (businesshours.ScheduleTable, error)

	Location        *time.Location
	Now             func() time.Time
	RefreshInterval time.Duration
	MaxTriggers     int
	LoadTimeout     time.Duration
}

// WatchModel is the bubbletea model behind `queue watch`.
type WatchModel struct {
	cfg WatchConfig

	stats    queue.Stats
	triggers []businesshours.Upcoming
	loadedAt time.Time
	loaded   bool
	err      error

	width  int
	height int
}

// NewWatchModel creates a watch model, filling in defaults.
func NewWatchModel(cfg WatchConfig) *WatchModel {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 2 * time.Second
	}
	if cfg.MaxTriggers <= 0 {
		cfg.MaxTriggers = 6
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 5 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &WatchModel{cfg: cfg}
}

// Init loads the first snapshot and starts the timer.
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.loadCmd())
}

// Update handles messages and updates the model.
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.loadCmd()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.tickCmd(), m.loadCmd())

	case snapshotMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
			m.triggers = msg.triggers
			m.loadedAt = msg.at
		}
		return m, nil
	}

	return m, nil
}

// View renders the queue watch screen.
func (m *WatchModel) View() string {
	if m.width == 0 || !m.loaded {
		return "Loading..."
	}

	sections := []string{m.renderHeader()}

	if m.err != nil {
		sections = append(sections, StyleError.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	sections = append(sections,
		NewQueueComponent(m.stats, m.width).View(),
		NewTriggersComponent(m.triggers, m.loadedAt, m.width).View(),
		HelpBar(),
	)

	return joinSections(sections...)
}

// Stats returns the last loaded queue counters.
func (m *WatchModel) Stats() queue.Stats {
	return m.stats
}

// Triggers returns the last loaded upcoming triggers.
func (m *WatchModel) Triggers() []businesshours.Upcoming {
	return m.triggers
}

// Err returns the error of the last load, if any.
func (m *WatchModel) Err() error {
	return m.err
}

func (m *WatchModel) renderHeader() string {
	title := StyleTitle.Render("livedesk queue")
	updated := "never"
	if !m.loadedAt.IsZero() {
		updated = m.loadedAt.Format("Mon Jan 2, 15:04:05")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", StyleSubtitle.Render(updated)) + "\n"
}

// load reads one snapshot.
func (m *WatchModel) load() snapshotMsg {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.LoadTimeout)
	defer cancel()

	now := m.cfg.Now().In(m.cfg.Location)
	msg := snapshotMsg{at: now}

	if m.cfg.Stats != nil {
		stats, err := m.cfg.Stats(ctx)
		if err != nil {
			msg.err = fmt.Errorf("load queue stats: %w", err)
			return msg
		}
		msg.stats = stats
	}

	if m.cfg.Table != nil {
		table, err := m.cfg.Table(ctx)
		if err != nil {
			msg.err = fmt.Errorf("load schedule: %w", err)
			return msg
		}
		msg.triggers = table.NextTriggers(now, m.cfg.MaxTriggers)
	}

	return msg
}

func (m *WatchModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return m.load()
	}
}

func (m *WatchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.cfg.RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunWatch starts the queue watch TUI and blocks until the user quits.
func RunWatch(cfg WatchConfig) error {
	p := tea.NewProgram(NewWatchModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
