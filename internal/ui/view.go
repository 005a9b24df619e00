package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Harry-kp/vortix/internal/engine"
	"github.com/Harry-kp/vortix/internal/leak"
	"github.com/Harry-kp/vortix/internal/stats"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// View renders the dashboard.
func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}

	switch m.mode {
	case modeHelp:
		return m.renderHelp()
	case modeImport:
		return m.renderImport()
	case modeConfirmDelete:
		return m.renderConfirmDelete()
	}

	header := titleStyle.Render("vortix") + " " + m.renderStateBadge()

	sidebarWidth := 28
	mainWidth := m.width - sidebarWidth - 6
	if mainWidth < 40 {
		mainWidth = 40
	}

	sidebar := m.renderProfiles(sidebarWidth)
	status := m.renderStatus(mainWidth)
	throughput := m.renderThroughput(mainWidth)
	security := m.renderSecurity(mainWidth)

	main := lipgloss.JoinVertical(lipgloss.Left, status, throughput, security)
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)

	log := m.renderLog()
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, log, footer)
}

func (m *Model) renderStateBadge() string {
	switch m.snap.State {
	case engine.StateConnected:
		return connectedStyle.Render("● connected")
	case engine.StateConnecting:
		return connectingStyle.Render("◌ connecting")
	case engine.StateDisconnecting:
		return connectingStyle.Render("◌ disconnecting")
	default:
		if m.snap.ScannerDegraded {
			return warnStyle.Render("? scanner degraded")
		}
		return disconnectedStyle.Render("○ disconnected")
	}
}

func (m *Model) renderProfiles(width int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Profiles"))
	b.WriteString("\n")

	if len(m.profiles) == 0 {
		b.WriteString(dimStyle.Render("none yet, press i"))
	}
	for i, p := range m.profiles {
		marker := "  "
		if m.snap.Session != nil && m.snap.Session.ProfileName == p.Name {
			marker = connectedStyle.Render("● ")
		}
		slot := "  "
		if i < 5 {
			slot = dimStyle.Render(fmt.Sprintf("%d ", i+1))
		}
		line := fmt.Sprintf("%s%s%s %s", slot, marker, p.Name, dimStyle.Render(p.Protocol.String()))
		if i == m.selected && m.focus == focusProfiles {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		if i < len(m.profiles)-1 {
			b.WriteString("\n")
		}
	}

	style := panelStyle
	if m.focus == focusProfiles {
		style = focusedPanelStyle
	}
	return style.Width(width).Render(b.String())
}

func (m *Model) renderStatus(width int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Connection"))
	b.WriteString("\n")

	sess := m.snap.Session
	if sess == nil {
		b.WriteString(dimStyle.Render("no active session"))
		return panelStyle.Width(width).Render(b.String())
	}

	name := sess.ProfileName
	if name == "" {
		name = "(unknown profile)"
	}
	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label)), value))
	}

	row("Profile", name)
	row("Protocol", sess.Protocol.String())
	row("Interface", sess.Interface)
	row("Endpoint", sess.Endpoint)
	row("Local IP", sess.InternalIP)
	if sess.MTU > 0 {
		row("MTU", fmt.Sprintf("%d", sess.MTU))
	}
	if !sess.StartedAt.IsZero() {
		row("Uptime", stats.FormatDuration(time.Since(sess.StartedAt)))
	}
	if sess.HasHandshake {
		row("Handshake", stats.FormatDuration(sess.HandshakeAge)+" ago")
	}
	if m.snap.RxBytes > 0 || m.snap.TxBytes > 0 {
		row("Transfer", fmt.Sprintf("↓ %s  ↑ %s", stats.FormatBytes(m.snap.RxBytes), stats.FormatBytes(m.snap.TxBytes)))
	}

	return panelStyle.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}

func (m *Model) renderThroughput(width int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Throughput"))
	b.WriteString("\n")

	if m.snap.Rate.Valid {
		b.WriteString(fmt.Sprintf("%s  %s\n",
			downRateStyle.Render("↓ "+stats.FormatRate(m.snap.Rate.DownBytesPerSec)),
			upRateStyle.Render("↑ "+stats.FormatRate(m.snap.Rate.UpBytesPerSec))))
	} else {
		b.WriteString(dimStyle.Render("no rate data") + "\n")
	}

	chartWidth := width - 6
	if chartWidth > historyPoints {
		chartWidth = historyPoints
	}
	b.WriteString(downRateStyle.Render(sparkline(m.history, chartWidth, func(p ratePoint) float64 { return p.down })))
	b.WriteString("\n")
	b.WriteString(upRateStyle.Render(sparkline(m.history, chartWidth, func(p ratePoint) float64 { return p.up })))

	return panelStyle.Width(width).Render(b.String())
}

func (m *Model) renderSecurity(width int) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Security"))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("IPv6 leak "), renderVerdict(m.snap.Leak.IPv6)))
	dns := renderVerdict(m.snap.Leak.DNS)
	if m.snap.Leak.ResolverAddr != "" {
		dns += dimStyle.Render(" via " + m.snap.Leak.ResolverAddr)
	}
	b.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("DNS leak  "), dns))
	if !m.snap.Leak.CheckedAt.IsZero() {
		b.WriteString(dimStyle.Render("  (checked " + m.snap.Leak.CheckedAt.Format("15:04:05") + ")"))
	}

	net := m.snap.Network
	if net.PublicIP != "" {
		line := net.PublicIP
		if net.ISP != "" {
			line += dimStyle.Render(" (" + net.ISP + ")")
		}
		b.WriteString(fmt.Sprintf("\n%s %s", labelStyle.Render("Public IP "), line))
	}
	if net.HasLatency {
		b.WriteString(fmt.Sprintf("\n%s %d ms", labelStyle.Render("Latency   "), net.Latency.Milliseconds()))
	}

	return panelStyle.Width(width).Render(b.String())
}

func renderVerdict(v leak.Verdict) string {
	switch v {
	case leak.VerdictClear:
		return connectedStyle.Render("clear")
	case leak.VerdictLeaking:
		return errorStyle.Render("LEAKING")
	default:
		return dimStyle.Render("unknown")
	}
}

func (m *Model) renderLog() string {
	title := panelTitleStyle.Render("Activity")
	style := panelStyle
	if m.focus == focusLog {
		style = focusedPanelStyle
	}
	return style.Width(m.width - 4).Render(title + "\n" + m.logView.View())
}

func (m *Model) renderFooter() string {
	if m.toast != "" {
		return toastStyle.Render(m.toast)
	}
	return helpStyle.Render("enter/c connect · d disconnect · r reconnect · i import · x delete · t leak test · ? help · q quit")
}

func (m *Model) renderHelp() string {
	help := `vortix keys

  q, ctrl+c    quit
  tab          switch panel focus
  j/k, ↓/↑     navigate profiles or scroll log
  enter, c     connect selected profile (or disconnect if active)
  d            disconnect
  r            reconnect the active session
  i            import a config file (.conf / .ovpn)
  x            delete selected profile
  1-5          quick-connect slot
  t            run leak checks now
  ?            toggle this help

press any key to close`
	return overlayStyle.Render(help)
}

func (m *Model) renderImport() string {
	return overlayStyle.Render(
		panelTitleStyle.Render("Import profile") + "\n\n" +
			m.importInput.View() + "\n\n" +
			dimStyle.Render("enter to import · esc to cancel"))
}

func (m *Model) renderConfirmDelete() string {
	name := ""
	if m.pendingDelete != nil {
		name = m.pendingDelete.Name
	}
	return overlayStyle.Render(
		errorStyle.Render("Delete profile "+name+"?") + "\n\n" +
			dimStyle.Render("y to confirm · any other key to cancel"))
}

// sparkline renders values as a single row of block characters scaled
// to the series maximum.
func sparkline(points []ratePoint, width int, pick func(ratePoint) float64) string {
	if width <= 0 {
		return ""
	}

	series := make([]float64, 0, width)
	start := 0
	if len(points) > width {
		start = len(points) - width
	}
	var max float64
	for _, p := range points[start:] {
		v := pick(p)
		series = append(series, v)
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	for i := len(series); i < width; i++ {
		b.WriteRune(' ')
	}
	for _, v := range series {
		if max == 0 {
			b.WriteRune(sparkRunes[0])
			continue
		}
		idx := int(v / max * float64(len(sparkRunes)-1))
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
