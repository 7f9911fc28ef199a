// Package config provides configuration management for the posematch server.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort           = 8787
	DefaultLogLevel       = "info"
	DefaultDataDir        = ".posematch"
	DefaultTimingBlend    = 0.2
	DefaultMaxPairs       = 100000
	DefaultCompareTimeout = 30 // seconds
	DefaultRunnerPoll     = 2  // seconds

	// Environment variable names
	EnvPort           = "POSEMATCH_PORT"
	EnvLogLevel       = "POSEMATCH_LOG_LEVEL"
	EnvDataDir        = "POSEMATCH_DATA_DIR"
	EnvHeadless       = "POSEMATCH_HEADLESS"
	EnvTimingBlend    = "POSEMATCH_TIMING_BLEND"
	EnvMaxPairs       = "POSEMATCH_MAX_PAIRS"
	EnvCompareTimeout = "POSEMATCH_COMPARE_TIMEOUT"
	EnvRunnerPoll     = "POSEMATCH_RUNNER_POLL"
	EnvWebhookURL     = "POSEMATCH_WEBHOOK_URL"
	EnvWebhookToken   = "POSEMATCH_WEBHOOK_TOKEN"
	EnvInboxDir       = "POSEMATCH_INBOX_DIR"

	// Database filename
	DBFilename = "posematch.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportDir() string
	Headless() bool
	TimingBlend() float64
	MaxPairs() int
	CompareTimeout() time.Duration
	RunnerPollInterval() time.Duration
	WebhookURL() string
	WebhookToken() string
	InboxDir() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	headless       bool
	timingBlend    float64
	maxPairs       int
	compareTimeout time.Duration
	runnerPoll     time.Duration
	webhookURL     string
	webhookToken   string
	inboxDir       string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		headless:       true,
		timingBlend:    DefaultTimingBlend,
		maxPairs:       DefaultMaxPairs,
		compareTimeout: DefaultCompareTimeout * time.Second,
		runnerPoll:     DefaultRunnerPoll * time.Second,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	// Export paths are validated as absolute, so the data dir must be too.
	abs, err := filepath.Abs(cfg.dataDir)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvDataDir, err)
	}
	cfg.dataDir = abs

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	if b := os.Getenv(EnvTimingBlend); b != "" {
		blend, err := strconv.ParseFloat(b, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTimingBlend, err)
		}
		if blend < 0 || blend > 1 {
			return nil, fmt.Errorf("invalid %s: must be between 0 and 1", EnvTimingBlend)
		}
		cfg.timingBlend = blend
	}

	if mp := os.Getenv(EnvMaxPairs); mp != "" {
		pairs, err := strconv.Atoi(mp)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxPairs, err)
		}
		if pairs < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", EnvMaxPairs)
		}
		cfg.maxPairs = pairs
	}

	if cfg.compareTimeout, err = secondsFromEnv(EnvCompareTimeout, cfg.compareTimeout); err != nil {
		return nil, err
	}
	if cfg.runnerPoll, err = secondsFromEnv(EnvRunnerPoll, cfg.runnerPoll); err != nil {
		return nil, err
	}
	if cfg.runnerPoll == 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", EnvRunnerPoll)
	}

	cfg.webhookURL = os.Getenv(EnvWebhookURL)
	cfg.webhookToken = os.Getenv(EnvWebhookToken)
	cfg.inboxDir = os.Getenv(EnvInboxDir)

	return cfg, nil
}

// secondsFromEnv parses a whole number of seconds. Zero is allowed.
func secondsFromEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", name)
	}
	return time.Duration(secs) * time.Second, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportDir is where comparison exports land when the request names no directory.
func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// Headless reports whether the system tray is disabled.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// TimingBlend is the share of the overall score taken by the timing score.
func (c *EnvConfig) TimingBlend() float64 {
	return c.timingBlend
}

// MaxPairs caps aligned pairs per comparison; 0 means unlimited.
func (c *EnvConfig) MaxPairs() int {
	return c.maxPairs
}

// CompareTimeout bounds one comparison's wall time; 0 means unlimited.
func (c *EnvConfig) CompareTimeout() time.Duration {
	return c.compareTimeout
}

func (c *EnvConfig) RunnerPollInterval() time.Duration {
	return c.runnerPoll
}

func (c *EnvConfig) WebhookURL() string {
	return c.webhookURL
}

func (c *EnvConfig) WebhookToken() string {
	return c.webhookToken
}

// InboxDir is watched for recording files to import; empty disables it.
func (c *EnvConfig) InboxDir() string {
	return c.inboxDir
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
