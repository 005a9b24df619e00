package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Harry-kp/vortix/internal/engine"
)

// Update is the bubbletea message loop.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logHeight := m.height - 24
		if logHeight < 4 {
			logHeight = 4
		}
		if !m.ready {
			m.logView = newLogViewport(m.width-4, logHeight)
			m.ready = true
			m.logView.SetContent(joinLines(m.logLines))
		} else {
			m.logView.Width = m.width - 4
			m.logView.Height = logHeight
		}
		return m, nil

	case tickMsg:
		snap := m.pub.Latest()
		m.snap = snap
		m.recordRate(snap)
		m.drainEvents()
		if time.Now().After(m.toastUntil) {
			m.toast = ""
		}
		if m.reconnectTo != "" && snap.State == engine.StateDisconnected {
			name := m.reconnectTo
			m.reconnectTo = ""
			if err := m.monitor.Connect(name); err != nil {
				m.showToast(err.Error())
			} else {
				m.showToast("reconnecting to " + name)
			}
		}
		return m, tick()

	case importDoneMsg:
		if msg.err != nil {
			m.showToast("import failed: " + msg.err.Error())
		} else {
			m.showToast(fmt.Sprintf("imported %s (%s)", msg.profile.Name, msg.profile.Protocol.String()))
			m.reloadProfiles()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeImport:
		return m.handleImportKey(msg)
	case modeConfirmDelete:
		return m.handleConfirmDeleteKey(msg)
	case modeHelp:
		m.mode = modeNormal
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "?":
		m.mode = modeHelp

	case "tab":
		if m.focus == focusProfiles {
			m.focus = focusLog
		} else {
			m.focus = focusProfiles
		}

	case "up", "k":
		if m.focus == focusLog {
			m.logView.LineUp(1)
		} else if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.focus == focusLog {
			m.logView.LineDown(1)
		} else if m.selected < len(m.profiles)-1 {
			m.selected++
		}

	case "enter", "c":
		m.toggleConnection()

	case "d":
		if m.snap.State.CanDisconnect() {
			if err := m.monitor.Disconnect(); err != nil {
				m.showToast(err.Error())
			}
		}

	case "r":
		if m.snap.State.IsConnected() && m.snap.Session != nil && m.snap.Session.ProfileName != "" {
			m.reconnectTo = m.snap.Session.ProfileName
			if err := m.monitor.Disconnect(); err != nil {
				m.reconnectTo = ""
				m.showToast(err.Error())
			}
		}

	case "i":
		m.mode = modeImport
		m.importInput.SetValue("")
		m.importInput.Focus()

	case "x":
		if p := m.selectedProfile(); p != nil {
			if m.snap.Session != nil && m.snap.Session.ProfileName == p.Name {
				m.showToast("disconnect before deleting " + p.Name)
				break
			}
			m.pendingDelete = p
			m.mode = modeConfirmDelete
		}

	case "t":
		m.monitor.RequestLeakCheck()
		m.showToast("running leak checks")

	case "1", "2", "3", "4", "5":
		slot, _ := strconv.Atoi(msg.String())
		if slot <= len(m.profiles) {
			m.selected = slot - 1
			m.toggleConnection()
		}
	}

	return m, nil
}

// toggleConnection connects the selected profile, or disconnects when
// it is the active one.
func (m *Model) toggleConnection() {
	p := m.selectedProfile()
	if p == nil {
		m.showToast("no profiles, press i to import one")
		return
	}

	if m.snap.Session != nil && m.snap.Session.ProfileName == p.Name && m.snap.State.CanDisconnect() {
		if err := m.monitor.Disconnect(); err != nil {
			m.showToast(err.Error())
		}
		return
	}
	if !m.snap.State.CanConnect() {
		m.showToast("already " + string(m.snap.State))
		return
	}

	m.monitor.SetSelected(p.Name)
	if err := m.monitor.Connect(p.Name); err != nil {
		m.showToast(err.Error())
		return
	}
	m.showToast("connecting to " + p.Name)
}

func (m *Model) handleImportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.importInput.Blur()
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.importInput.Value())
		m.mode = modeNormal
		m.importInput.Blur()
		if path == "" {
			return m, nil
		}
		importFn := m.importFn
		return m, func() tea.Msg {
			p, err := importFn(path)
			return importDoneMsg{profile: p, err: err}
		}
	}

	var cmd tea.Cmd
	m.importInput, cmd = m.importInput.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	defer func() {
		m.mode = modeNormal
		m.pendingDelete = nil
	}()

	if msg.String() != "y" && msg.String() != "Y" {
		return m, nil
	}
	if m.pendingDelete == nil {
		return m, nil
	}

	if err := m.store.Delete(m.pendingDelete.ID); err != nil {
		m.showToast("delete failed: " + err.Error())
		return m, nil
	}
	m.showToast("deleted " + m.pendingDelete.Name)
	m.reloadProfiles()
	return m, nil
}
