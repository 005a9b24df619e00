// Package scan detects active VPN sessions by probing OS-level artifacts:
// WireGuard tunnel interfaces and their reported peer data, and OpenVPN
// daemon processes. Scanning is the authoritative signal for connection
// state transitions; telemetry and leak checks only decorate it.
package scan

import (
	"context"
	"errors"
	"os/exec"
)

// ErrProbeUnavailable is returned when an underlying probe command could
// not be executed at all (binary missing, permission denied).
var ErrProbeUnavailable = errors.New("scan probe unavailable")

// Runner executes an external probe command and returns its stdout.
// The context bounds the probe; implementations must kill the process
// when it expires.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner implements Runner using os/exec.
type ExecRunner struct{}

// Output runs the command and returns its standard output.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// exitCode extracts the process exit code from a Runner error, or -1 if
// the command never ran.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
