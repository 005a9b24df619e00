package vpn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Harry-kp/vortix/internal/keyring"
	"github.com/Harry-kp/vortix/internal/profile"
)

var (
	// ErrRootRequired is returned when a command needs root privileges
	// the process does not have.
	ErrRootRequired = errors.New("root privileges required")
	// ErrMissingDependencies is returned when required binaries are not
	// installed. Use CheckDependencies for the full list.
	ErrMissingDependencies = errors.New("required binaries not found")
)

// Controller runs the external VPN tools for a profile. Commands are
// fire-and-forget; the caller watches the scanner for the outcome.
type Controller struct {
	runner ProcessRunner
	creds  keyring.Store
	log    *slog.Logger

	// authDir holds OpenVPN auth files between connect and disconnect.
	authDir string

	// Seams for tests.
	lookPath func(string) (string, error)
	geteuid  func() int
}

// NewController creates a controller. creds may be nil when no OpenVPN
// profile requires authentication. authDir receives 0600 auth files for
// OpenVPN; the user state dir is a good choice.
func NewController(runner ProcessRunner, creds keyring.Store, authDir string, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		runner:   runner,
		creds:    creds,
		log:      log,
		authDir:  authDir,
		lookPath: exec.LookPath,
		geteuid:  os.Geteuid,
	}
}

// CheckDependencies returns the binaries required for the protocol that
// are not installed. An empty slice means all dependencies are present.
func (c *Controller) CheckDependencies(proto profile.Protocol) []string {
	var required []string
	switch proto {
	case profile.ProtocolWireGuard:
		required = []string{"wg-quick", "wg"}
	case profile.ProtocolOpenVPN:
		required = []string{"openvpn", "pgrep", "pkill"}
	default:
		return nil
	}

	var missing []string
	for _, bin := range required {
		if _, err := c.lookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	return missing
}

// Connect brings up the tunnel for the profile. It validates
// dependencies and privileges first so the failure reason is precise
// instead of a tool error dump.
func (c *Controller) Connect(ctx context.Context, p *profile.Profile) error {
	if missing := c.CheckDependencies(p.Protocol); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependencies, strings.Join(missing, ", "))
	}
	if c.geteuid() != 0 {
		return fmt.Errorf("connect %s: %w (re-run with sudo)", p.Name, ErrRootRequired)
	}

	switch p.Protocol {
	case profile.ProtocolWireGuard:
		return c.connectWireGuard(ctx, p)
	case profile.ProtocolOpenVPN:
		return c.connectOpenVPN(ctx, p)
	default:
		return fmt.Errorf("connect %s: unsupported protocol %q", p.Name, p.Protocol)
	}
}

// Disconnect tears down the tunnel for the profile.
func (c *Controller) Disconnect(ctx context.Context, p *profile.Profile) error {
	if c.geteuid() != 0 {
		return fmt.Errorf("disconnect %s: %w (re-run with sudo)", p.Name, ErrRootRequired)
	}

	switch p.Protocol {
	case profile.ProtocolWireGuard:
		if out, err := c.runner.Run(ctx, "wg-quick", "down", p.ConfigPath); err != nil {
			return fmt.Errorf("wg-quick down: %w: %s", err, firstLine(out))
		}
		return nil
	case profile.ProtocolOpenVPN:
		defer c.removeAuthFile(p)
		out, err := c.runner.Run(ctx, "pkill", "-f", "openvpn.*"+p.ConfigPath)
		if err != nil {
			if exitCode(err) == 1 {
				return nil // no process matched, already down
			}
			return fmt.Errorf("pkill openvpn: %w: %s", err, firstLine(out))
		}
		return nil
	default:
		return fmt.Errorf("disconnect %s: unsupported protocol %q", p.Name, p.Protocol)
	}
}

func (c *Controller) connectWireGuard(ctx context.Context, p *profile.Profile) error {
	c.log.Info("bringing tunnel up", "profile", p.Name, "config", p.ConfigPath)
	if out, err := c.runner.Run(ctx, "wg-quick", "up", p.ConfigPath); err != nil {
		return fmt.Errorf("wg-quick up: %w: %s", err, firstLine(out))
	}
	return nil
}

func (c *Controller) connectOpenVPN(ctx context.Context, p *profile.Profile) error {
	args := []string{"--config", p.ConfigPath, "--daemon"}

	if p.RequiresAuth {
		authFile, err := c.writeAuthFile(p)
		if err != nil {
			return err
		}
		args = append(args, "--auth-user-pass", authFile)
	}

	c.log.Info("starting openvpn daemon", "profile", p.Name, "config", p.ConfigPath)
	if out, err := c.runner.Run(ctx, "openvpn", args...); err != nil {
		c.removeAuthFile(p)
		return fmt.Errorf("openvpn: %w: %s", err, firstLine(out))
	}
	return nil
}

// writeAuthFile materializes stored credentials as the two-line file
// openvpn expects. The file stays until Disconnect because the daemon
// re-reads it on its own reconnects.
func (c *Controller) writeAuthFile(p *profile.Profile) (string, error) {
	if c.creds == nil {
		return "", fmt.Errorf("profile %s requires authentication but no credential store is configured", p.Name)
	}
	creds, err := c.creds.Get(p.ID)
	if err != nil {
		return "", fmt.Errorf("credentials for %s: %w", p.Name, err)
	}

	path := c.authFilePath(p)
	content := creds.Username + "\n" + creds.Password + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("writing auth file: %w", err)
	}
	return path, nil
}

func (c *Controller) removeAuthFile(p *profile.Profile) {
	path := c.authFilePath(p)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.log.Warn("removing auth file failed", "path", path, "error", err)
	}
}

func (c *Controller) authFilePath(p *profile.Profile) string {
	return filepath.Join(c.authDir, p.ID+".auth")
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
