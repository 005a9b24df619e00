package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harry-kp/vortix/internal/engine"
	"github.com/Harry-kp/vortix/internal/profile"
	"github.com/Harry-kp/vortix/internal/scan"
)

type fakeMonitor struct {
	connected    []string
	disconnects  int
	leakRequests int
	selected     string
	connectErr   error
}

func (f *fakeMonitor) Connect(name string) error {
	f.connected = append(f.connected, name)
	return f.connectErr
}
func (f *fakeMonitor) Disconnect() error    { f.disconnects++; return nil }
func (f *fakeMonitor) SetSelected(n string) { f.selected = n }
func (f *fakeMonitor) RequestLeakCheck()    { f.leakRequests++ }

type fakeStore struct {
	profiles []*profile.Profile
	deleted  []string
}

func (f *fakeStore) List() (*profile.ListResult, error) {
	return &profile.ListResult{Profiles: f.profiles}, nil
}
func (f *fakeStore) Save(*profile.Profile) error { return nil }
func (f *fakeStore) Delete(id string) error {
	f.deleted = append(f.deleted, id)
	for i, p := range f.profiles {
		if p.ID == id {
			f.profiles = append(f.profiles[:i], f.profiles[i+1:]...)
			break
		}
	}
	return nil
}

func testProfiles(names ...string) []*profile.Profile {
	out := make([]*profile.Profile, 0, len(names))
	for _, n := range names {
		out = append(out, profile.New(n, profile.ProtocolWireGuard))
	}
	return out
}

func newTestModel(t *testing.T, monitor *fakeMonitor, store *fakeStore) *Model {
	t.Helper()
	m := New(monitor, engine.NewPublisher(), store, func(string) (*profile.Profile, error) {
		return nil, errors.New("not implemented")
	})
	m.reloadProfiles()
	return m
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Navigation(t *testing.T) {
	store := &fakeStore{profiles: testProfiles("alpha", "beta", "gamma")}
	m := newTestModel(t, &fakeMonitor{}, store)

	assert.Equal(t, 0, m.selected)
	m.Update(key("j"))
	assert.Equal(t, 1, m.selected)
	m.Update(key("j"))
	m.Update(key("j"))
	assert.Equal(t, 2, m.selected, "selection stops at last profile")
	m.Update(key("k"))
	assert.Equal(t, 1, m.selected)
}

func TestModel_ConnectSelected(t *testing.T) {
	monitor := &fakeMonitor{}
	store := &fakeStore{profiles: testProfiles("alpha", "beta")}
	m := newTestModel(t, monitor, store)

	m.Update(key("j"))
	m.Update(key("enter"))

	assert.Equal(t, []string{"beta"}, monitor.connected)
	assert.Equal(t, "beta", monitor.selected)
}

func TestModel_EnterDisconnectsActiveProfile(t *testing.T) {
	monitor := &fakeMonitor{}
	store := &fakeStore{profiles: testProfiles("alpha")}
	m := newTestModel(t, monitor, store)
	m.snap = &engine.Snapshot{
		State:   engine.StateConnected,
		Session: &scan.Session{ProfileName: "alpha"},
	}

	m.Update(key("enter"))

	assert.Equal(t, 1, monitor.disconnects)
	assert.Empty(t, monitor.connected)
}

func TestModel_ConnectRejectedWhileConnected(t *testing.T) {
	monitor := &fakeMonitor{}
	store := &fakeStore{profiles: testProfiles("alpha", "beta")}
	m := newTestModel(t, monitor, store)
	m.snap = &engine.Snapshot{
		State:   engine.StateConnected,
		Session: &scan.Session{ProfileName: "alpha"},
	}

	m.Update(key("j"))
	m.Update(key("enter"))

	assert.Empty(t, monitor.connected)
	assert.Contains(t, m.toast, "already")
}

func TestModel_QuickSlot(t *testing.T) {
	monitor := &fakeMonitor{}
	store := &fakeStore{profiles: testProfiles("alpha", "beta", "gamma")}
	m := newTestModel(t, monitor, store)

	m.Update(key("3"))

	assert.Equal(t, 2, m.selected)
	assert.Equal(t, []string{"gamma"}, monitor.connected)
}

func TestModel_QuickSlotOutOfRange(t *testing.T) {
	monitor := &fakeMonitor{}
	store := &fakeStore{profiles: testProfiles("alpha")}
	m := newTestModel(t, monitor, store)

	m.Update(key("5"))

	assert.Empty(t, monitor.connected)
}

func TestModel_DeleteRequiresConfirmation(t *testing.T) {
	monitor := &fakeMonitor{}
	store := &fakeStore{profiles: testProfiles("alpha")}
	m := newTestModel(t, monitor, store)
	id := store.profiles[0].ID

	m.Update(key("x"))
	assert.Equal(t, modeConfirmDelete, m.mode)

	m.Update(key("n"))
	assert.Empty(t, store.deleted, "unconfirmed delete must not happen")
	assert.Equal(t, modeNormal, m.mode)

	m.Update(key("x"))
	m.Update(key("y"))
	assert.Equal(t, []string{id}, store.deleted)
	assert.Empty(t, m.profiles)
}

func TestModel_DeleteActiveProfileRefused(t *testing.T) {
	monitor := &fakeMonitor{}
	store := &fakeStore{profiles: testProfiles("alpha")}
	m := newTestModel(t, monitor, store)
	m.snap = &engine.Snapshot{
		State:   engine.StateConnected,
		Session: &scan.Session{ProfileName: "alpha"},
	}

	m.Update(key("x"))

	assert.Equal(t, modeNormal, m.mode)
	assert.Contains(t, m.toast, "disconnect before deleting")
}

func TestModel_LeakCheckKey(t *testing.T) {
	monitor := &fakeMonitor{}
	m := newTestModel(t, monitor, &fakeStore{})

	m.Update(key("t"))

	assert.Equal(t, 1, monitor.leakRequests)
}

func TestModel_ImportFlow(t *testing.T) {
	monitor := &fakeMonitor{}
	store := &fakeStore{}
	imported := profile.New("office", profile.ProtocolOpenVPN)
	m := New(monitor, engine.NewPublisher(), store, func(path string) (*profile.Profile, error) {
		assert.Equal(t, "/tmp/office.ovpn", path)
		return imported, nil
	})

	m.Update(key("i"))
	require.Equal(t, modeImport, m.mode)

	m.importInput.SetValue("/tmp/office.ovpn")
	_, cmd := m.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, modeNormal, m.mode)

	msg := cmd()
	done, ok := msg.(importDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.err)
	assert.Equal(t, "office", done.profile.Name)

	m.Update(done)
	assert.Contains(t, m.toast, "imported office")
}

func TestModel_ImportCancelled(t *testing.T) {
	m := newTestModel(t, &fakeMonitor{}, &fakeStore{})

	m.Update(key("i"))
	_, cmd := m.Update(key("esc"))

	assert.Nil(t, cmd)
	assert.Equal(t, modeNormal, m.mode)
}

func TestModel_HelpOverlayTogglesOff(t *testing.T) {
	m := newTestModel(t, &fakeMonitor{}, &fakeStore{})

	m.Update(key("?"))
	assert.Equal(t, modeHelp, m.mode)
	m.Update(key("j"))
	assert.Equal(t, modeNormal, m.mode)
}

func TestSparkline(t *testing.T) {
	points := []ratePoint{{down: 0}, {down: 50}, {down: 100}}

	line := sparkline(points, 3, func(p ratePoint) float64 { return p.down })
	runes := []rune(line)
	require.Len(t, runes, 3)
	assert.Equal(t, '▁', runes[0])
	assert.Equal(t, '█', runes[2])

	// Shorter series is right-aligned with padding.
	padded := sparkline(points[:1], 3, func(p ratePoint) float64 { return p.down })
	assert.Len(t, []rune(padded), 3)
}
