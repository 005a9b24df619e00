package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Harry-kp/vortix/internal/config"
	"github.com/Harry-kp/vortix/internal/leak"
	"github.com/Harry-kp/vortix/internal/profile"
	"github.com/Harry-kp/vortix/internal/scan"
	"github.com/Harry-kp/vortix/internal/stats"
	"github.com/Harry-kp/vortix/internal/telemetry"
)

// Scanner detects the active VPN session, if any.
type Scanner interface {
	Scan(ctx context.Context, profiles []*profile.Profile, preferred string) (scan.Result, error)
}

// Sampler reads interface counters and derives throughput rates.
type Sampler interface {
	Sample(iface string) (stats.InterfaceSample, stats.Rate, error)
	Reset()
}

// LeakChecker runs the privacy probes.
type LeakChecker interface {
	Check(ctx context.Context, expectedDNS string) leak.Report
}

// TelemetryProber fetches public IP, ISP, and latency readings.
type TelemetryProber interface {
	Probe(ctx context.Context) telemetry.Info
}

// ProfileSource provides read access to stored profiles.
type ProfileSource interface {
	List() (*profile.ListResult, error)
	FindByName(name string) (*profile.Profile, error)
}

// Commander issues connect and disconnect commands to external VPN
// tools. The engine never trusts a command result; the scanner confirms
// the actual outcome.
type Commander interface {
	Connect(ctx context.Context, p *profile.Profile) error
	Disconnect(ctx context.Context, p *profile.Profile) error
}

// Options tunes the engine cadences and thresholds.
type Options struct {
	ScanInterval      time.Duration
	SampleInterval    time.Duration
	LeakInterval      time.Duration
	TelemetryInterval time.Duration
	ScanTimeout       time.Duration
	ProbeTimeout      time.Duration

	// FailureThreshold is the number of consecutive scan failures after
	// which the engine forces Disconnected.
	FailureThreshold int
	// DisconnectDebounce is the number of consecutive empty scans
	// required before a Connected session is declared lost.
	DisconnectDebounce int
	// ConnectingGrace is how many scans a pending connect may go
	// unconfirmed before it is abandoned.
	ConnectingGrace int
	// DisconnectingGrace is how many scans a pending disconnect may
	// still see the session before it is declared failed.
	DisconnectingGrace int
}

// DefaultOptions returns the standard cadences.
func DefaultOptions() Options {
	return Options{
		ScanInterval:       time.Second,
		SampleInterval:     time.Second,
		LeakInterval:       15 * time.Second,
		TelemetryInterval:  10 * time.Second,
		ScanTimeout:        2 * time.Second,
		ProbeTimeout:       3 * time.Second,
		FailureThreshold:   5,
		DisconnectDebounce: 2,
		ConnectingGrace:    30,
		DisconnectingGrace: 5,
	}
}

// OptionsFromConfig maps the user configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.ScanInterval = cfg.ScanInterval()
	opts.SampleInterval = cfg.SampleInterval()
	opts.LeakInterval = cfg.LeakCheckInterval()
	opts.TelemetryInterval = cfg.TelemetryInterval()
	opts.ScanTimeout = cfg.ScanTimeout()
	opts.ProbeTimeout = cfg.IPv6ProbeTimeout()
	opts.FailureThreshold = cfg.ScannerFailureThreshold
	return opts
}

// Internal loop messages. Everything that mutates state machine fields
// arrives through the message channel, so the loop goroutine is the
// single writer.
type (
	scanMsg struct {
		res scan.Result
		err error
	}
	sampleTickMsg struct{}
	leakMsg       struct{ report leak.Report }
	connectMsg    struct{ profile *profile.Profile }
	disconnectMsg struct{}
	cmdFailedMsg  struct {
		op  string
		err error
	}
	leakCheckNowMsg struct{}
	telemetryMsg    struct{ info telemetry.Info }
)

// Engine owns the monitoring loop. Construct with New, start with Run,
// read through Publisher.
type Engine struct {
	opts      Options
	scanner   Scanner
	sampler   Sampler
	leaks     LeakChecker
	telem     TelemetryProber
	profiles  ProfileSource
	commander Commander
	pub       *Publisher
	log       *slog.Logger

	// onTransition is invoked from the loop goroutine after every state
	// change; it must not block for long.
	onTransition func(Transition)

	msgs   chan any
	runCtx context.Context

	// selected is the user-chosen profile name, used for scan
	// tie-breaking. Guarded by selMu because the scan goroutine reads it.
	selMu    sync.Mutex
	selected string

	// Loop-owned state. Only the Run goroutine touches these.
	state        ConnectionState
	session      *scan.Session
	active       *profile.Profile
	rate         stats.Rate
	rx, tx       uint64
	leakReport   leak.Report
	emptyScans   int
	scanFailures int
	pendingScans int
	tick         uint64
	lastScanWarn string
	prevIPv6     leak.Verdict
	prevDNS      leak.Verdict
	netInfo      telemetry.Info
}

// New assembles an engine. Commander may be nil for a read-only monitor;
// Connect and Disconnect then report an error. A nil telem disables the
// telemetry loop.
func New(opts Options, scanner Scanner, sampler Sampler, leaks LeakChecker, telem TelemetryProber, profiles ProfileSource, commander Commander, pub *Publisher, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		opts:       opts,
		scanner:    scanner,
		sampler:    sampler,
		leaks:      leaks,
		telem:      telem,
		profiles:   profiles,
		commander:  commander,
		pub:        pub,
		log:        log,
		msgs:       make(chan any, 16),
		state:      StateDisconnected,
		leakReport: unknownLeakReport(),
		prevIPv6:   leak.VerdictUnknown,
		prevDNS:    leak.VerdictUnknown,
	}
}

// Publisher returns the snapshot and event outlet.
func (e *Engine) Publisher() *Publisher {
	return e.pub
}

// SetOnTransition installs the transition hook. Must be called before Run.
func (e *Engine) SetOnTransition(fn func(Transition)) {
	e.onTransition = fn
}

// SetSelected records the user-selected profile for scan tie-breaking.
func (e *Engine) SetSelected(name string) {
	e.selMu.Lock()
	e.selected = name
	e.selMu.Unlock()
}

func (e *Engine) selectedName() string {
	e.selMu.Lock()
	defer e.selMu.Unlock()
	return e.selected
}

// Run starts the probe goroutines and the state machine loop. It blocks
// until ctx is cancelled and all probes have stopped.
func (e *Engine) Run(ctx context.Context) {
	e.runCtx = ctx
	e.pub.Event(EventInfo, "monitoring started")
	e.publish()

	var wg sync.WaitGroup
	wg.Add(3)
	go e.scanLoop(ctx, &wg)
	go e.sampleLoop(ctx, &wg)
	go e.leakLoop(ctx, &wg)
	if e.telem != nil {
		wg.Add(1)
		go e.telemetryLoop(ctx, &wg)
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			e.pub.Event(EventInfo, "monitoring stopped")
			return
		case msg := <-e.msgs:
			e.handle(msg)
			e.publish()
		}
	}
}

// Connect resolves the named profile and issues a connect command. The
// state machine moves to Connecting; the scanner confirms the result.
func (e *Engine) Connect(name string) error {
	if e.commander == nil {
		return fmt.Errorf("connect %s: no VPN commander configured", name)
	}
	p, err := e.profiles.FindByName(name)
	if err != nil {
		return fmt.Errorf("connect %s: %w", name, err)
	}
	e.SetSelected(name)
	e.post(connectMsg{profile: p})
	return nil
}

// RequestLeakCheck runs the leak probes immediately instead of waiting
// for the next cadence tick. Ignored unless connected.
func (e *Engine) RequestLeakCheck() {
	e.post(leakCheckNowMsg{})
}

// Disconnect issues a disconnect command for the active session.
func (e *Engine) Disconnect() error {
	if e.commander == nil {
		return fmt.Errorf("disconnect: no VPN commander configured")
	}
	e.post(disconnectMsg{})
	return nil
}

func (e *Engine) post(msg any) {
	if e.runCtx == nil {
		e.msgs <- msg
		return
	}
	select {
	case e.msgs <- msg:
	case <-e.runCtx.Done():
	}
}

// scanLoop runs the session scanner on its cadence, posting every result
// to the state machine. The first scan fires immediately.
func (e *Engine) scanLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(e.opts.ScanInterval)
	defer ticker.Stop()

	for {
		e.runScan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) runScan(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, e.opts.ScanTimeout)
	defer cancel()

	var profiles []*profile.Profile
	if result, err := e.profiles.List(); err == nil {
		profiles = result.Profiles
	} else {
		e.log.Warn("listing profiles for scan failed", "error", err)
	}

	res, err := e.scanner.Scan(scanCtx, profiles, e.selectedName())
	select {
	case e.msgs <- scanMsg{res: res, err: err}:
	case <-ctx.Done():
	}
}

// sampleLoop only posts ticks; the loop goroutine reads the counters
// itself because sysfs reads are local and cheap, and the interface name
// is loop-owned state.
func (e *Engine) sampleLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(e.opts.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case e.msgs <- sampleTickMsg{}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// leakLoop runs the leak probes on their cadence, but only while the
// published state is Connected. Verdict lifecycle on disconnect is
// handled by the state machine, not here.
func (e *Engine) leakLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(e.opts.LeakInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := e.pub.Latest()
		if !snap.State.IsConnected() || snap.Session == nil {
			continue
		}

		expectedDNS := ""
		if snap.Session.ProfileName != "" {
			if p, err := e.profiles.FindByName(snap.Session.ProfileName); err == nil {
				expectedDNS = p.ExpectedDNS
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, e.opts.ProbeTimeout)
		report := e.leaks.Check(probeCtx, expectedDNS)
		cancel()

		select {
		case e.msgs <- leakMsg{report: report}:
		case <-ctx.Done():
			return
		}
	}
}

// telemetryLoop fetches public IP, ISP, and latency on its cadence.
// These are host-level facts, so it runs in every connection state. The
// first probe fires immediately.
func (e *Engine) telemetryLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(e.opts.TelemetryInterval)
	defer ticker.Stop()

	for {
		info := e.telem.Probe(ctx)
		select {
		case e.msgs <- telemetryMsg{info: info}:
		case <-ctx.Done():
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) handle(msg any) {
	switch m := msg.(type) {
	case scanMsg:
		e.handleScan(m)
	case sampleTickMsg:
		e.handleSampleTick()
	case leakMsg:
		e.handleLeak(m.report)
	case connectMsg:
		e.handleConnect(m.profile)
	case disconnectMsg:
		e.handleDisconnect()
	case cmdFailedMsg:
		e.handleCmdFailed(m)
	case leakCheckNowMsg:
		e.handleLeakCheckNow()
	case telemetryMsg:
		e.handleTelemetry(m.info)
	}
}

// handleTelemetry merges a reading into the current values; a probe
// that produced nothing this pass keeps the previous reading visible.
func (e *Engine) handleTelemetry(info telemetry.Info) {
	if info.PublicIP != "" {
		e.netInfo.PublicIP = info.PublicIP
	}
	if info.ISP != "" {
		e.netInfo.ISP = info.ISP
	}
	if info.HasLatency {
		e.netInfo.Latency = info.Latency
		e.netInfo.HasLatency = true
	}
	e.netInfo.FetchedAt = info.FetchedAt
}

// handleLeakCheckNow runs the probes off the loop goroutine and feeds
// the report back through the normal message path.
func (e *Engine) handleLeakCheckNow() {
	if e.state != StateConnected {
		return
	}
	expectedDNS := ""
	if e.active != nil {
		expectedDNS = e.active.ExpectedDNS
	}
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		probeCtx, cancel := context.WithTimeout(ctx, e.opts.ProbeTimeout)
		report := e.leaks.Check(probeCtx, expectedDNS)
		cancel()
		e.post(leakMsg{report: report})
	}()
}

func (e *Engine) handleScan(m scanMsg) {
	if m.err != nil {
		e.scanFailures++
		e.log.Warn("session scan failed", "error", m.err, "consecutive", e.scanFailures)
		if e.scanFailures >= e.opts.FailureThreshold && e.state != StateDisconnected {
			e.pub.Event(EventError, fmt.Sprintf("session scanner failing (%d consecutive errors), connection state unknown", e.scanFailures))
			e.transitionTo(StateDisconnected, "scanner unavailable")
		}
		return
	}

	e.scanFailures = 0
	if warn := strings.Join(m.res.Warnings, "; "); warn != e.lastScanWarn {
		e.lastScanWarn = warn
		for _, w := range m.res.Warnings {
			e.pub.Event(EventWarn, w)
		}
	}

	if m.res.Session != nil {
		e.handleSessionSeen(m.res.Session)
		return
	}
	e.handleSessionGone()
}

func (e *Engine) handleSessionSeen(sess *scan.Session) {
	e.emptyScans = 0
	e.session = sess

	switch e.state {
	case StateConnected:
		// steady state
	case StateDisconnecting:
		e.pendingScans++
		if e.pendingScans >= e.opts.DisconnectingGrace {
			e.pub.Event(EventWarn, "disconnect did not take effect, session still active")
			e.transitionTo(StateConnected, "disconnect failed")
		}
	default:
		name := sess.ProfileName
		if name == "" {
			name = sess.Interface
		}
		e.pub.Event(EventInfo, fmt.Sprintf("connected to %s", name))
		e.transitionTo(StateConnected, "session confirmed")
		if sess.ProfileName != "" {
			if p, err := e.profiles.FindByName(sess.ProfileName); err == nil {
				e.active = p
			}
		}
	}
}

func (e *Engine) handleSessionGone() {
	e.emptyScans++

	switch e.state {
	case StateConnected:
		if e.emptyScans >= e.opts.DisconnectDebounce {
			e.pub.Event(EventWarn, "connection lost")
			e.transitionTo(StateDisconnected, "session gone")
		}
	case StateDisconnecting:
		e.pub.Event(EventInfo, "disconnected")
		e.transitionTo(StateDisconnected, "disconnect confirmed")
	case StateConnecting:
		e.pendingScans++
		if e.pendingScans >= e.opts.ConnectingGrace {
			e.pub.Event(EventError, "connect timed out, no session established")
			e.transitionTo(StateDisconnected, "connect timeout")
		}
	}
}

func (e *Engine) handleSampleTick() {
	if e.state != StateConnected || e.session == nil || e.session.Interface == "" {
		return
	}

	sample, rate, err := e.sampler.Sample(e.session.Interface)
	if err != nil {
		e.rate = stats.Rate{}
		e.log.Debug("counter sample failed", "interface", e.session.Interface, "error", err)
		return
	}
	e.rate = rate
	e.rx = sample.RxBytes
	e.tx = sample.TxBytes
}

func (e *Engine) handleLeak(report leak.Report) {
	if e.state != StateConnected {
		return
	}
	e.leakReport = report

	if report.IPv6 == leak.VerdictLeaking && e.prevIPv6 != leak.VerdictLeaking {
		e.pub.Event(EventError, "IPv6 traffic is bypassing the tunnel")
	}
	if report.DNS == leak.VerdictLeaking && e.prevDNS != leak.VerdictLeaking {
		e.pub.Event(EventError, fmt.Sprintf("DNS queries use an unexpected resolver (%s)", report.ResolverAddr))
	}
	e.prevIPv6 = report.IPv6
	e.prevDNS = report.DNS
}

func (e *Engine) handleConnect(p *profile.Profile) {
	if !e.state.CanConnect() {
		e.pub.Event(EventWarn, fmt.Sprintf("cannot connect while %s", e.state))
		return
	}
	e.active = p
	e.pub.Event(EventInfo, fmt.Sprintf("connecting to %s", p.Name))
	e.transitionTo(StateConnecting, "connect requested")

	go func() {
		if err := e.commander.Connect(e.runCtx, p); err != nil {
			e.post(cmdFailedMsg{op: "connect", err: err})
		}
	}()
}

func (e *Engine) handleDisconnect() {
	if !e.state.CanDisconnect() {
		e.pub.Event(EventWarn, fmt.Sprintf("cannot disconnect while %s", e.state))
		return
	}

	p := e.active
	if p == nil && e.session != nil && e.session.ProfileName != "" {
		if found, err := e.profiles.FindByName(e.session.ProfileName); err == nil {
			p = found
		}
	}
	if p == nil {
		e.pub.Event(EventWarn, "active session has no known profile, cannot disconnect it")
		return
	}

	e.pub.Event(EventInfo, fmt.Sprintf("disconnecting from %s", p.Name))
	e.transitionTo(StateDisconnecting, "disconnect requested")

	go func() {
		if err := e.commander.Disconnect(e.runCtx, p); err != nil {
			e.post(cmdFailedMsg{op: "disconnect", err: err})
		}
	}()
}

func (e *Engine) handleCmdFailed(m cmdFailedMsg) {
	e.pub.Event(EventError, fmt.Sprintf("%s command failed: %v", m.op, m.err))
	e.log.Error("vpn command failed", "op", m.op, "error", m.err)

	switch {
	case m.op == "connect" && e.state == StateConnecting:
		e.transitionTo(StateDisconnected, "connect command failed")
	case m.op == "disconnect" && e.state == StateDisconnecting:
		// The scanner decides whether the session actually survived;
		// revert immediately only if it is still visible.
		if e.session != nil {
			e.transitionTo(StateConnected, "disconnect command failed")
		}
	}
}

// transitionTo applies a validated state change and resets per-state
// bookkeeping. Invalid transitions are logged and dropped.
func (e *Engine) transitionTo(to ConnectionState, reason string) {
	if to == e.state {
		return
	}
	if !IsValidTransition(e.state, to) {
		e.log.Error("invalid state transition", "from", e.state, "to", to, "reason", reason)
		return
	}

	from := e.state
	e.state = to
	e.pendingScans = 0
	e.emptyScans = 0
	e.log.Info("state transition", "from", from, "to", to, "reason", reason)

	tr := Transition{
		From:    from,
		To:      to,
		At:      time.Now(),
		Session: e.session,
		RxBytes: e.rx,
		TxBytes: e.tx,
	}

	if from == StateConnected {
		// Telemetry and verdicts describe a session that no longer
		// exists; reset everything derived from it.
		e.sampler.Reset()
		e.rate = stats.Rate{}
		e.rx, e.tx = 0, 0
		e.leakReport = unknownLeakReport()
		e.prevIPv6, e.prevDNS = leak.VerdictUnknown, leak.VerdictUnknown
	}
	if to == StateDisconnected {
		e.session = nil
		e.active = nil
	}

	if e.onTransition != nil {
		e.onTransition(tr)
	}
}

// publish assembles the next snapshot from loop state and swaps it in.
func (e *Engine) publish() {
	e.tick++
	snap := &Snapshot{
		Tick:            e.tick,
		Taken:           time.Now(),
		State:           e.state,
		Rate:            e.rate,
		RxBytes:         e.rx,
		TxBytes:         e.tx,
		Leak:            e.leakReport,
		Network:         e.netInfo,
		ScannerDegraded: e.scanFailures > 0,
	}
	if e.session != nil {
		sess := *e.session
		snap.Session = &sess
	}
	e.pub.publish(snap)
}

func unknownLeakReport() leak.Report {
	return leak.Report{IPv6: leak.VerdictUnknown, DNS: leak.VerdictUnknown}
}
