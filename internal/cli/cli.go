// Package cli implements the one-shot subcommands: inspecting current
// status, listing profiles and session history, and importing configs
// without launching the dashboard.
package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Harry-kp/vortix/internal/history"
	"github.com/Harry-kp/vortix/internal/leak"
	"github.com/Harry-kp/vortix/internal/profile"
	"github.com/Harry-kp/vortix/internal/scan"
	"github.com/Harry-kp/vortix/internal/stats"
)

// CLI bundles the collaborators the subcommands read from.
type CLI struct {
	store    *profile.Store
	scanner  *scan.Scanner
	detector *leak.Detector
	history  *history.Store
	out      io.Writer
}

// New creates a CLI writing to out. history may be nil when the
// database could not be opened; the history command then reports that.
func New(store *profile.Store, scanner *scan.Scanner, detector *leak.Detector, hist *history.Store, out io.Writer) *CLI {
	return &CLI{
		store:    store,
		scanner:  scanner,
		detector: detector,
		history:  hist,
		out:      out,
	}
}

// Status runs a single scan plus leak checks and prints the result.
func (c *CLI) Status(ctx context.Context) error {
	result, err := c.store.List()
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}

	res, err := c.scanner.Scan(ctx, result.Profiles, "")
	if err != nil {
		return fmt.Errorf("scanning sessions: %w", err)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(c.out, "warning: %s\n", w)
	}

	if res.Session == nil {
		fmt.Fprintln(c.out, "disconnected")
		return nil
	}

	sess := res.Session
	name := sess.ProfileName
	if name == "" {
		name = "(unknown profile)"
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "state:\tconnected\n")
	fmt.Fprintf(w, "profile:\t%s\n", name)
	fmt.Fprintf(w, "protocol:\t%s\n", sess.Protocol.String())
	if sess.Interface != "" {
		fmt.Fprintf(w, "interface:\t%s\n", sess.Interface)
	}
	if sess.Endpoint != "" {
		fmt.Fprintf(w, "endpoint:\t%s\n", sess.Endpoint)
	}
	if sess.InternalIP != "" {
		fmt.Fprintf(w, "local ip:\t%s\n", sess.InternalIP)
	}
	if !sess.StartedAt.IsZero() {
		fmt.Fprintf(w, "uptime:\t%s\n", stats.FormatDuration(time.Since(sess.StartedAt)))
	}
	if sess.HasHandshake {
		fmt.Fprintf(w, "handshake:\t%s ago\n", stats.FormatDuration(sess.HandshakeAge))
	}
	if sess.TransferRx > 0 || sess.TransferTx > 0 {
		fmt.Fprintf(w, "transfer:\t%s received, %s sent\n",
			stats.FormatBytes(sess.TransferRx), stats.FormatBytes(sess.TransferTx))
	}

	expectedDNS := ""
	if sess.ProfileName != "" {
		if p, err := c.store.FindByName(sess.ProfileName); err == nil {
			expectedDNS = p.ExpectedDNS
		}
	}
	report := c.detector.Check(ctx, expectedDNS)
	fmt.Fprintf(w, "ipv6 leak:\t%s\n", report.IPv6)
	dns := string(report.DNS)
	if report.ResolverAddr != "" {
		dns += " (resolver " + report.ResolverAddr + ")"
	}
	fmt.Fprintf(w, "dns leak:\t%s\n", dns)

	return w.Flush()
}

// Profiles lists the stored profiles.
func (c *CLI) Profiles() error {
	result, err := c.store.List()
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}
	for _, le := range result.Errors {
		fmt.Fprintf(c.out, "warning: %v\n", le)
	}

	if len(result.Profiles) == 0 {
		fmt.Fprintln(c.out, "No profiles configured. Import one with: vortix import <file>")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROTOCOL\tENDPOINT\tLOCATION\tCONFIG")
	for _, p := range result.Profiles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.Name, p.Protocol.String(), orDash(p.Endpoint), orDash(p.Location), p.ConfigPath)
	}
	return w.Flush()
}

// Import parses the config file and persists it as a profile.
func (c *CLI) Import(path string) error {
	p, err := profile.Import(path, c.store.Dir())
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}
	if err := c.store.Save(p); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	fmt.Fprintf(c.out, "imported %s (%s)\n", p.Name, p.Protocol.String())
	return nil
}

// History lists the most recent completed sessions.
func (c *CLI) History(limit int) error {
	if c.history == nil {
		return fmt.Errorf("session history is unavailable")
	}

	entries, err := c.history.Recent(limit)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No completed sessions recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tPROTOCOL\tSTARTED\tDURATION\tRECEIVED\tSENT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Profile, e.Protocol,
			e.StartedAt.Local().Format("2006-01-02 15:04"),
			stats.FormatDuration(e.Duration()),
			stats.FormatBytes(e.RxBytes), stats.FormatBytes(e.TxBytes))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
