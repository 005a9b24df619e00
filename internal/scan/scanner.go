package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Harry-kp/vortix/internal/profile"
)

// DefaultWireguardRunDir holds the wg-quick interface name mapping files.
// On platforms where kernel interfaces cannot carry the tunnel name
// (macOS utunX), wg-quick records the real interface name here.
const DefaultWireguardRunDir = "/var/run/wireguard"

// Scanner inspects OS-level VPN artifacts to determine which profile, if
// any, is currently connected. It is stateless per invocation; all
// cross-tick state (debounce, failure counting) lives in the engine.
type Scanner struct {
	runner Runner
	runDir string

	// Seams for tests; production values set by New.
	ifaceInfo  func(name string) (ip string, mtu int, exists bool)
	tunIfaces  func() []string
	fileMtime  func(path string) (time.Time, bool)
	readFile   func(path string) (string, bool)
	listRunDir func(dir string) []string
}

// New creates a scanner running probes through the given runner.
// If runDir is empty, DefaultWireguardRunDir is used.
func New(runner Runner, runDir string) *Scanner {
	if runDir == "" {
		runDir = DefaultWireguardRunDir
	}
	return &Scanner{
		runner:     runner,
		runDir:     runDir,
		ifaceInfo:  interfaceInfo,
		tunIfaces:  upTunInterfaces,
		fileMtime:  fileMtime,
		readFile:   readTrimmedFile,
		listRunDir: listNameFiles,
	}
}

// Scan probes all known profiles plus the WireGuard run directory and
// returns at most one active session after tie-breaking. preferred is
// the user-selected profile name, used only to break ties.
//
// A non-nil error means the scanner itself could not determine anything
// (probe commands unavailable); the engine must not interpret that as
// disconnected.
func (s *Scanner) Scan(ctx context.Context, profiles []*profile.Profile, preferred string) (Result, error) {
	sorted := make([]*profile.Profile, len(profiles))
	copy(sorted, profiles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var (
		sessions []Session
		warnings []string
		hardErr  error
	)

	for _, p := range sorted {
		var (
			sess *Session
			err  error
		)
		switch p.Protocol {
		case profile.ProtocolWireGuard:
			sess, err = s.checkWireGuard(ctx, p)
		case profile.ProtocolOpenVPN:
			sess, err = s.checkOpenVPN(ctx, p)
		default:
			continue
		}
		if sess != nil {
			// A live interface outweighs a failed detail probe; keep the
			// session and surface the degradation as a warning.
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("session details unavailable for %s: %v", p.Name, err))
			}
			sessions = append(sessions, *sess)
			continue
		}
		if err != nil {
			hardErr = err
		}
	}

	// Report tunnels in the run dir that no profile claims, so a user
	// sees "unknown active session" instead of a false disconnected.
	for _, name := range s.listRunDir(s.runDir) {
		if hasProfileNamed(sorted, name) {
			continue
		}
		iface := s.resolveInterface(name)
		if _, _, exists := s.ifaceInfo(iface); !exists {
			continue
		}
		sessions = append(sessions, Session{
			Interface: iface,
			Protocol:  profile.ProtocolWireGuard,
		})
		warnings = append(warnings, fmt.Sprintf("unknown active session on %s (no matching profile)", iface))
	}

	if len(sessions) == 0 {
		if hardErr != nil {
			return Result{}, hardErr
		}
		return Result{Warnings: warnings}, nil
	}

	chosen := sessions[0]
	if len(sessions) > 1 {
		warnings = append(warnings, fmt.Sprintf("multiple active tunnels detected (%d); reporting one", len(sessions)))
		for _, sess := range sessions {
			if sess.ProfileName != "" && sess.ProfileName == preferred {
				chosen = sess
				break
			}
		}
	}

	return Result{Session: &chosen, Warnings: warnings}, nil
}

// checkWireGuard reports the session for a WireGuard profile, or nil when
// its tunnel is down.
func (s *Scanner) checkWireGuard(ctx context.Context, p *profile.Profile) (*Session, error) {
	nameFile := filepath.Join(s.runDir, p.Name+".name")
	iface := s.resolveInterface(p.Name)

	startedAt, hasNameFile := s.fileMtime(nameFile)
	_, mtu, exists := s.ifaceInfo(iface)
	if !hasNameFile && !exists {
		return nil, nil
	}

	sess := &Session{
		ProfileName: p.Name,
		Interface:   iface,
		Protocol:    profile.ProtocolWireGuard,
		StartedAt:   startedAt,
		MTU:         mtu,
	}
	if ip, _, ok := s.ifaceInfo(iface); ok {
		sess.InternalIP = ip
	}

	out, err := s.runner.Output(ctx, "wg", "show", iface)
	if err != nil {
		if exitCode(err) == -1 {
			// wg binary unusable; the interface still proves the session.
			return sess, fmt.Errorf("wg show %s: %w", iface, ErrProbeUnavailable)
		}
		return sess, nil
	}
	parseWgShow(sess, string(out))

	return sess, nil
}

// checkOpenVPN reports the session for an OpenVPN profile by matching a
// running daemon against the profile's config path. OpenVPN exposes no
// peer statistics here; only liveness and a best-effort tun interface.
func (s *Scanner) checkOpenVPN(ctx context.Context, p *profile.Profile) (*Session, error) {
	_, err := s.runner.Output(ctx, "pgrep", "-f", "openvpn.*"+p.ConfigPath)
	if err != nil {
		if exitCode(err) == 1 {
			return nil, nil // no matching process
		}
		return nil, fmt.Errorf("pgrep openvpn: %w", ErrProbeUnavailable)
	}

	sess := &Session{
		ProfileName: p.Name,
		Protocol:    profile.ProtocolOpenVPN,
	}
	if ifaces := s.tunIfaces(); len(ifaces) > 0 {
		sess.Interface = ifaces[0]
		if ip, mtu, ok := s.ifaceInfo(sess.Interface); ok {
			sess.InternalIP = ip
			sess.MTU = mtu
		}
	}
	return sess, nil
}

// resolveInterface maps a tunnel name to the real interface name via the
// wg-quick name file, falling back to the tunnel name itself.
func (s *Scanner) resolveInterface(name string) string {
	if real, ok := s.readFile(filepath.Join(s.runDir, name+".name")); ok && real != "" {
		return real
	}
	return name
}

func hasProfileNamed(profiles []*profile.Profile, name string) bool {
	for _, p := range profiles {
		if p.Name == name {
			return true
		}
	}
	return false
}

func fileMtime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func readTrimmedFile(path string) (string, bool) {
	data, err := os.ReadFile(path) // #nosec G304 -- paths derive from the run dir
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// listNameFiles returns tunnel names for every .name file in dir.
func listNameFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".name") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".name"))
	}
	sort.Strings(names)
	return names
}
