// Package config manages application-level configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Harry-kp/vortix/internal/fileutil"
)

const (
	// AppName is the application identifier used for XDG paths.
	AppName = "vortix"
	// ConfigFileName is the name of the main configuration file.
	ConfigFileName = "config.yaml"
	// ProfilesDirName is the name of the directory containing profiles.
	ProfilesDirName = "profiles"
)

// Config represents the application configuration. All durations are
// stored in seconds for readability of the YAML file.
type Config struct {
	// ScanIntervalSeconds is the session scanner cadence.
	ScanIntervalSeconds int `yaml:"scan_interval_seconds"`
	// SampleIntervalSeconds is the interface counter sampling cadence.
	SampleIntervalSeconds int `yaml:"sample_interval_seconds"`
	// LeakCheckIntervalSeconds is the leak detector cadence.
	LeakCheckIntervalSeconds int `yaml:"leak_check_interval_seconds"`

	// ScanTimeoutSeconds bounds each scanner probe.
	ScanTimeoutSeconds int `yaml:"scan_timeout_seconds"`
	// IPv6ProbeAddress is the IPv6-only endpoint dialed by the leak check.
	IPv6ProbeAddress string `yaml:"ipv6_probe_address"`
	// IPv6ProbeTimeoutSeconds bounds the IPv6 reachability probe.
	IPv6ProbeTimeoutSeconds int `yaml:"ipv6_probe_timeout_seconds"`

	// ScannerFailureThreshold is how many consecutive scanner failures
	// force a transition to disconnected.
	ScannerFailureThreshold int `yaml:"scanner_failure_threshold"`

	// TelemetryIntervalSeconds is the public IP / ISP / latency cadence.
	TelemetryIntervalSeconds int `yaml:"telemetry_interval_seconds"`
	// IPInfoURL is the endpoint queried for public IP and ISP.
	IPInfoURL string `yaml:"ip_info_url"`
	// PingTarget is the host pinged for the latency reading.
	PingTarget string `yaml:"ping_target"`

	// WireguardRunDir holds the wg-quick name-mapping files.
	WireguardRunDir string `yaml:"wireguard_run_dir"`
	// ResolvConfPath is the resolver configuration read by the DNS check.
	ResolvConfPath string `yaml:"resolv_conf_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ScanIntervalSeconds:      1,
		SampleIntervalSeconds:    1,
		LeakCheckIntervalSeconds: 15,
		ScanTimeoutSeconds:       2,
		IPv6ProbeAddress:         "ipv6.google.com:443",
		IPv6ProbeTimeoutSeconds:  3,
		ScannerFailureThreshold:  5,
		TelemetryIntervalSeconds: 10,
		IPInfoURL:                "https://ipinfo.io/json",
		PingTarget:               "1.1.1.1",
		WireguardRunDir:          "/var/run/wireguard",
		ResolvConfPath:           "/etc/resolv.conf",
	}
}

// ScanInterval returns the scanner cadence as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// SampleInterval returns the sampler cadence as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalSeconds) * time.Second
}

// LeakCheckInterval returns the leak detector cadence as a duration.
func (c *Config) LeakCheckInterval() time.Duration {
	return time.Duration(c.LeakCheckIntervalSeconds) * time.Second
}

// ScanTimeout returns the per-probe scanner timeout as a duration.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutSeconds) * time.Second
}

// TelemetryInterval returns the telemetry cadence as a duration.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.TelemetryIntervalSeconds) * time.Second
}

// IPv6ProbeTimeout returns the IPv6 probe timeout as a duration.
func (c *Config) IPv6ProbeTimeout() time.Duration {
	return time.Duration(c.IPv6ProbeTimeoutSeconds) * time.Second
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("scan interval must be positive")
	}
	if c.SampleIntervalSeconds <= 0 {
		return fmt.Errorf("sample interval must be positive")
	}
	if c.LeakCheckIntervalSeconds <= 0 {
		return fmt.Errorf("leak check interval must be positive")
	}
	if c.ScanTimeoutSeconds <= 0 {
		return fmt.Errorf("scan timeout must be positive")
	}
	if c.IPv6ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("ipv6 probe timeout must be positive")
	}
	if c.ScannerFailureThreshold <= 0 {
		return fmt.Errorf("scanner failure threshold must be positive")
	}
	if c.TelemetryIntervalSeconds <= 0 {
		return fmt.Errorf("telemetry interval must be positive")
	}
	if c.IPv6ProbeAddress == "" {
		return fmt.Errorf("ipv6 probe address must not be empty")
	}
	if c.ResolvConfPath == "" {
		return fmt.Errorf("resolv.conf path must not be empty")
	}
	return nil
}

// Paths holds the resolved configuration and state directories.
type Paths struct {
	ConfigDir   string
	ProfilesDir string
	ConfigFile  string
	StateDir    string
}

// GetPaths returns the application paths following the XDG spec.
func GetPaths() (*Paths, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}

	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		stateHome = filepath.Join(homeDir, ".local", "state")
	}

	configDir := filepath.Join(configHome, AppName)
	return &Paths{
		ConfigDir:   configDir,
		ProfilesDir: filepath.Join(configDir, ProfilesDirName),
		ConfigFile:  filepath.Join(configDir, ConfigFileName),
		StateDir:    filepath.Join(stateHome, AppName),
	}, nil
}

// EnsurePaths creates all necessary directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.ConfigDir, p.ProfilesDir, p.StateDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Load reads the configuration from disk, returning defaults when the
// file does not exist yet.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from GetPaths
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to disk atomically.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := fileutil.AtomicWrite(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Manager provides high-level configuration management.
// It is safe for concurrent use from multiple goroutines.
type Manager struct {
	paths  *Paths       // Immutable after construction
	config *Config      // Protected by mu
	mu     sync.RWMutex // Protects config only
}

// NewManager ensures directories exist and loads the configuration.
func NewManager() (*Manager, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, fmt.Errorf("resolve config paths: %w", err)
	}
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}

	cfg, err := Load(paths.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{paths: paths, config: cfg}, nil
}

// GetConfig returns a copy of the current configuration, safe to read
// without holding locks.
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Paths returns the resolved application paths.
func (m *Manager) Paths() *Paths {
	return m.paths
}

// UpdateField atomically updates the config via a mutator function and
// persists the result. If validation fails the original is preserved.
func (m *Manager) UpdateField(mutator func(cfg *Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := *m.config
	mutator(&updated)
	if err := updated.Validate(); err != nil {
		return err
	}

	*m.config = updated
	return Save(m.paths.ConfigFile, m.config)
}
