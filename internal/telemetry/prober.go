// Package telemetry fetches host-level network facts for the dashboard:
// the public IP and ISP seen from outside, and the latency to a
// reference host. These describe the machine, not a session, so they
// are collected regardless of connection state.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultInfoURL answers with the caller's public IP and organization.
const DefaultInfoURL = "https://ipinfo.io/json"

// DefaultPingTarget is a well-known anycast resolver.
const DefaultPingTarget = "1.1.1.1"

// Info is one telemetry reading. Zero-valued fields mean the
// corresponding probe produced nothing this pass; consumers keep the
// previous value.
type Info struct {
	PublicIP string
	ISP      string

	Latency    time.Duration
	HasLatency bool

	FetchedAt time.Time
}

// Doer abstracts the HTTP client so tests can script responses.
// *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Runner abstracts command execution for the ping probe.
// scan.ExecRunner satisfies it.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Prober collects telemetry. Construct with New.
type Prober struct {
	client     Doer
	runner     Runner
	infoURL    string
	pingTarget string

	now func() time.Time
}

// New creates a prober. Empty infoURL and pingTarget select the
// defaults; a nil client selects a plain http.Client.
func New(client Doer, runner Runner, infoURL, pingTarget string) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if infoURL == "" {
		infoURL = DefaultInfoURL
	}
	if pingTarget == "" {
		pingTarget = DefaultPingTarget
	}
	return &Prober{
		client:     client,
		runner:     runner,
		infoURL:    infoURL,
		pingTarget: pingTarget,
		now:        time.Now,
	}
}

// Probe runs both collectors. Failures are independent; whatever could
// be fetched is returned.
func (p *Prober) Probe(ctx context.Context) Info {
	info := Info{FetchedAt: p.now()}
	if ip, isp, err := p.fetchIPAndISP(ctx); err == nil {
		info.PublicIP = ip
		info.ISP = isp
	}
	if latency, err := p.fetchLatency(ctx); err == nil {
		info.Latency = latency
		info.HasLatency = true
	}
	return info
}

// fetchIPAndISP queries the info endpoint, which answers with a JSON
// object carrying "ip" and "org" fields.
func (p *Prober) fetchIPAndISP(ctx context.Context) (ip, isp string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.infoURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build info request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("query %s: %w", p.infoURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("query %s: status %d", p.infoURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", "", fmt.Errorf("read info response: %w", err)
	}

	var parsed struct {
		IP  string `json:"ip"`
		Org string `json:"org"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("decode info response: %w", err)
	}
	return parsed.IP, parsed.Org, nil
}

// fetchLatency pings the target once and parses the reported round trip.
func (p *Prober) fetchLatency(ctx context.Context) (time.Duration, error) {
	if p.runner == nil {
		return 0, fmt.Errorf("no runner configured")
	}
	out, err := p.runner.Output(ctx, "ping", "-c", "1", "-W", "2", p.pingTarget)
	if err != nil {
		return 0, fmt.Errorf("ping %s: %w", p.pingTarget, err)
	}
	ms, ok := parsePingTime(string(out))
	if !ok {
		return 0, fmt.Errorf("ping %s: no time in output", p.pingTarget)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

// parsePingTime extracts the milliseconds from ping's "time=12.3 ms".
func parsePingTime(out string) (float64, bool) {
	idx := strings.Index(out, "time=")
	if idx < 0 {
		return 0, false
	}
	rest := out[idx+len("time="):]
	end := strings.Index(rest, " ms")
	if end < 0 {
		return 0, false
	}
	ms, err := strconv.ParseFloat(strings.TrimSpace(rest[:end]), 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
