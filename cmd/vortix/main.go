// Package main is the vortix entry point. Without arguments it launches
// the terminal dashboard; subcommands provide one-shot access to the
// same data.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Harry-kp/vortix/internal/cli"
	"github.com/Harry-kp/vortix/internal/config"
	"github.com/Harry-kp/vortix/internal/engine"
	"github.com/Harry-kp/vortix/internal/history"
	"github.com/Harry-kp/vortix/internal/keyring"
	"github.com/Harry-kp/vortix/internal/leak"
	"github.com/Harry-kp/vortix/internal/logging"
	"github.com/Harry-kp/vortix/internal/profile"
	"github.com/Harry-kp/vortix/internal/scan"
	"github.com/Harry-kp/vortix/internal/stats"
	"github.com/Harry-kp/vortix/internal/telemetry"
	"github.com/Harry-kp/vortix/internal/ui"
	"github.com/Harry-kp/vortix/internal/vpn"
)

// version is overridden at build time via -ldflags.
var version = "dev"

const historyFileName = "history.db"

func usage() {
	fmt.Fprintf(os.Stderr, `vortix - VPN tunnel monitor

Usage:
  vortix                 launch the dashboard
  vortix status          show the current connection
  vortix profiles        list stored profiles
  vortix import <file>   import a WireGuard .conf or OpenVPN .ovpn
  vortix history [n]     list the n most recent sessions (default 20)
  vortix version         print the version

Environment:
  VORTIX_DEBUG=1         enable debug logging
`)
}

// app bundles the collaborators both the dashboard and the subcommands
// need.
type app struct {
	manager  *config.Manager
	store    *profile.Store
	scanner  *scan.Scanner
	detector *leak.Detector
}

func newApp() (*app, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, err
	}
	cfg := manager.GetConfig()

	store, err := profile.NewStore(manager.Paths().ProfilesDir)
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}

	return &app{
		manager:  manager,
		store:    store,
		scanner:  scan.New(scan.ExecRunner{}, cfg.WireguardRunDir),
		detector: leak.New(nil, cfg.IPv6ProbeAddress, cfg.ResolvConfPath),
	}, nil
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 && args[0] == "version" {
		fmt.Println("vortix " + version)
		return
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vortix: %v\n", err)
		os.Exit(1)
	}

	if len(args) == 0 {
		if err := runDashboard(a); err != nil {
			fmt.Fprintf(os.Stderr, "vortix: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runCommand(a, args); err != nil {
		fmt.Fprintf(os.Stderr, "vortix: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(a *app, args []string) error {
	logging.SetupStderr(logging.LevelFromEnv())

	hist, err := history.Open(filepath.Join(a.manager.Paths().StateDir, historyFileName))
	if err != nil {
		slog.Warn("session history unavailable", "error", err)
		hist = nil
	} else {
		defer hist.Close()
	}

	c := cli.New(a.store, a.scanner, a.detector, hist, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch args[0] {
	case "status":
		return c.Status(ctx)
	case "profiles":
		return c.Profiles()
	case "import":
		if len(args) < 2 {
			return fmt.Errorf("usage: vortix import <file>")
		}
		return c.Import(args[1])
	case "history":
		limit := 20
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("history limit must be a positive number, got %q", args[1])
			}
			limit = n
		}
		return c.History(limit)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runDashboard(a *app) error {
	paths := a.manager.Paths()

	closeLog, err := logging.Setup(paths.StateDir, logging.LevelFromEnv())
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	var recorder *history.Recorder
	hist, err := history.Open(filepath.Join(paths.StateDir, historyFileName))
	if err != nil {
		slog.Warn("session history unavailable", "error", err)
	} else {
		defer hist.Close()
		recorder = history.NewRecorder(hist, slog.Default())
	}

	cfg := a.manager.GetConfig()
	sampler := stats.NewSampler(stats.SysfsReader{}, stats.DefaultStaleAfter)
	controller := vpn.NewController(vpn.NewExecRunner(), keyring.NewSystemKeyring(), paths.StateDir, slog.Default())
	prober := telemetry.New(nil, scan.ExecRunner{}, cfg.IPInfoURL, cfg.PingTarget)

	pub := engine.NewPublisher()
	eng := engine.New(engine.OptionsFromConfig(cfg), a.scanner, sampler, a.detector,
		prober, a.store, controller, pub, slog.Default())
	if recorder != nil {
		eng.SetOnTransition(recorder.OnTransition)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()

	importFn := func(path string) (*profile.Profile, error) {
		p, err := profile.Import(path, a.store.Dir())
		if err != nil {
			return nil, err
		}
		if err := a.store.Save(p); err != nil {
			return nil, err
		}
		return p, nil
	}

	model := ui.New(eng, pub, a.store, importFn)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		cancel()
		<-engineDone
		return fmt.Errorf("running dashboard: %w", err)
	}

	cancel()
	<-engineDone
	return nil
}
