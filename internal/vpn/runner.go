// Package vpn issues connect and disconnect commands to the external
// VPN tools (wg-quick, openvpn). It never tracks connection state; the
// session scanner observes the actual effect of every command.
package vpn

import (
	"context"
	"os/exec"
)

// ProcessRunner executes an external command and returns its combined
// output. Implementations must kill the process when ctx expires.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner implements ProcessRunner using os/exec.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and returns stdout and stderr combined,
// which is what wg-quick and openvpn write their diagnostics to.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
