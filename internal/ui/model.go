// Package ui renders the terminal dashboard. The model polls the
// engine's publisher on its own tick and issues control actions through
// a narrow Monitor interface; it never blocks the monitoring loop.
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Harry-kp/vortix/internal/engine"
	"github.com/Harry-kp/vortix/internal/profile"
)

// Monitor is the control surface the dashboard drives.
type Monitor interface {
	Connect(name string) error
	Disconnect() error
	SetSelected(name string)
	RequestLeakCheck()
}

// ProfileStore is the profile persistence the dashboard needs.
type ProfileStore interface {
	List() (*profile.ListResult, error)
	Save(p *profile.Profile) error
	Delete(id string) error
}

// ImportFunc parses a VPN config file and persists it as a profile.
type ImportFunc func(path string) (*profile.Profile, error)

const (
	// historyPoints is how many throughput samples the chart keeps.
	historyPoints = 60
	// toastDuration is how long a notification stays visible.
	toastDuration = 3 * time.Second
	// refreshInterval is the dashboard's own poll cadence.
	refreshInterval = 500 * time.Millisecond
)

type focusArea int

const (
	focusProfiles focusArea = iota
	focusLog
)

type mode int

const (
	modeNormal mode = iota
	modeImport
	modeConfirmDelete
	modeHelp
)

type ratePoint struct {
	down float64
	up   float64
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	monitor  Monitor
	pub      *engine.Publisher
	store    ProfileStore
	importFn ImportFunc

	snap     *engine.Snapshot
	profiles []*profile.Profile
	selected int

	focus focusArea
	mode  mode

	importInput textinput.Model
	logView     viewport.Model
	lastEvent   uint64
	logLines    []string

	history []ratePoint

	toast       string
	toastUntil  time.Time
	reconnectTo string

	pendingDelete *profile.Profile

	width  int
	height int
	ready  bool
}

// New builds the dashboard model.
func New(monitor Monitor, pub *engine.Publisher, store ProfileStore, importFn ImportFunc) *Model {
	ti := textinput.New()
	ti.Placeholder = "/path/to/config.conf or .ovpn"
	ti.CharLimit = 256
	ti.Width = 50

	return &Model{
		monitor:     monitor,
		pub:         pub,
		store:       store,
		importFn:    importFn,
		importInput: ti,
		snap:        pub.Latest(),
		history:     make([]ratePoint, 0, historyPoints),
	}
}

type tickMsg time.Time

type importDoneMsg struct {
	profile *profile.Profile
	err     error
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh tick and loads profiles.
func (m *Model) Init() tea.Cmd {
	m.reloadProfiles()
	return tick()
}

func (m *Model) reloadProfiles() {
	result, err := m.store.List()
	if err != nil {
		m.showToast("loading profiles failed: " + err.Error())
		return
	}
	m.profiles = result.Profiles
	if m.selected >= len(m.profiles) {
		m.selected = len(m.profiles) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) selectedProfile() *profile.Profile {
	if len(m.profiles) == 0 || m.selected >= len(m.profiles) {
		return nil
	}
	return m.profiles[m.selected]
}

func (m *Model) showToast(msg string) {
	m.toast = msg
	m.toastUntil = time.Now().Add(toastDuration)
}

// recordRate appends the current throughput to the chart history.
func (m *Model) recordRate(snap *engine.Snapshot) {
	var pt ratePoint
	if snap.Rate.Valid {
		pt = ratePoint{down: snap.Rate.DownBytesPerSec, up: snap.Rate.UpBytesPerSec}
	}
	m.history = append(m.history, pt)
	if len(m.history) > historyPoints {
		m.history = m.history[1:]
	}
}

// drainEvents appends any new activity log entries to the viewport.
func (m *Model) drainEvents() {
	events := m.pub.Events()
	var added bool
	for _, ev := range events {
		if ev.Seq <= m.lastEvent {
			continue
		}
		m.lastEvent = ev.Seq
		line := ev.At.Format("15:04:05") + " " + formatEventLevel(ev.Level) + " " + ev.Msg
		m.logLines = append(m.logLines, line)
		added = true
	}
	if len(m.logLines) > engine.MaxEvents {
		m.logLines = m.logLines[len(m.logLines)-engine.MaxEvents:]
	}
	if added && m.ready {
		m.logView.SetContent(joinLines(m.logLines))
		m.logView.GotoBottom()
	}
}

func formatEventLevel(level engine.EventLevel) string {
	switch level {
	case engine.EventWarn:
		return warnStyle.Render("WARN ")
	case engine.EventError:
		return errorStyle.Render("ERROR")
	default:
		return dimStyle.Render("INFO ")
	}
}

func newLogViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
