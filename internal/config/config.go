package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	UploadDir string `toml:"upload_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Job contains pacing and control defaults for batch runs.
type Job struct {
	DefaultDelaySeconds float64 `toml:"default_delay_seconds"`
	DefaultMode         string  `toml:"default_mode"`
	PollIntervalMillis  int     `toml:"poll_interval_ms"`
	StubDurationSeconds int     `toml:"stub_duration_seconds"`
	MaxUploadMiB        int     `toml:"max_upload_mib"`
}

// Processor contains configuration for the external automation command that
// performs the per-item side effect.
type Processor struct {
	Command              string   `toml:"command"`
	Args                 []string `toml:"args"`
	ItemTimeoutSeconds   int      `toml:"item_timeout_seconds"`
	ShutdownGraceSeconds int      `toml:"shutdown_grace_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunStarted     bool   `toml:"run_started"`
	RunCompleted   bool   `toml:"run_completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for merchbatch.
//
// Configuration sections by subsystem:
//   - Paths: state, log and upload directories plus the API bind address
//   - Job: inter-item delay, default mode, pause poll interval
//   - Processor: automation command driving the per-item upload
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Job           Job           `toml:"job"`
	Processor     Processor     `toml:"processor"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("merchbatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.UploadDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the JSON-RPC control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "merchbatch.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "merchbatchd.lock")
}

// SpreadsheetDir returns where uploaded item lists are stored.
func (c *Config) SpreadsheetDir() string {
	return filepath.Join(c.Paths.UploadDir, "spreadsheets")
}

// ImagesDir returns where uploaded replacement images are stored.
func (c *Config) ImagesDir() string {
	return filepath.Join(c.Paths.UploadDir, "images")
}

// DefaultDelay returns the configured inter-item delay.
func (c *Config) DefaultDelay() time.Duration {
	return secondsToDuration(c.Job.DefaultDelaySeconds)
}

// PollInterval returns how often a paused run re-checks its signals.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Job.PollIntervalMillis) * time.Millisecond
}

// StubDuration returns how long a stub-mode run idles before completing.
func (c *Config) StubDuration() time.Duration {
	return time.Duration(c.Job.StubDurationSeconds) * time.Second
}

// MaxUploadBytes returns the request body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Job.MaxUploadMiB) << 20
}

// ItemTimeout returns the per-item processor deadline. Zero disables it.
func (c *Config) ItemTimeout() time.Duration {
	return time.Duration(c.Processor.ItemTimeoutSeconds) * time.Second
}

// ShutdownGrace returns how long Close waits for the automation process to exit.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Processor.ShutdownGraceSeconds) * time.Second
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
