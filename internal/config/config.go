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

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Rhubarb contains configuration for the external lip-sync analyzer.
type Rhubarb struct {
	ExecutablePath string   `toml:"executable_path"`
	Recognizer     string   `toml:"recognizer"`
	ExtendedShapes string   `toml:"extended_shapes"`
	PollIntervalMS int      `toml:"poll_interval_ms"`
	PollTimeoutMS  int      `toml:"poll_timeout_ms"`
	ExtraArgs      []string `toml:"extra_args"`
}

// Animation contains defaults for cue application.
type Animation struct {
	// Mode selects the host target: "bone" keys pose-library bones, "layer"
	// toggles 2D layer visibility.
	Mode string `toml:"mode"`
	// HoldFrameThreshold is the frame gap above which the previous shape is
	// re-keyed just before the next transition. Bone mode only.
	HoldFrameThreshold int `toml:"hold_frame_threshold"`
	// DefaultFPS applies when the rig document does not declare a frame rate.
	DefaultFPS float64 `toml:"default_fps"`
}

// Notifications contains configuration for run outcome notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	Desktop        bool   `toml:"desktop"`
	RequestTimeout int    `toml:"request_timeout"`
	OnFinish       bool   `toml:"on_finish"`
	OnCancel       bool   `toml:"on_cancel"`
}

// History contains configuration for the run journal.
type History struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mouthsync.
//
// Configuration sections by subsystem:
//   - Paths: state (run journal) and log directories
//   - Rhubarb: analyzer executable, recognizer, and polling cadence
//   - Animation: default mode, hold threshold, and frame rate
//   - Notifications: ntfy and desktop notifications on run outcome
//   - History: run journal toggle and retention
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Rhubarb       Rhubarb       `toml:"rhubarb"`
	Animation     Animation     `toml:"animation"`
	Notifications Notifications `toml:"notifications"`
	History       History       `toml:"history"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mouthsync/config.toml")
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mouthsync.toml")
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

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the run journal database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// PollInterval returns the timer interval between analyzer polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Rhubarb.PollIntervalMS) * time.Millisecond
}

// PollTimeout returns the bounded wait applied on each poll.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Rhubarb.PollTimeoutMS) * time.Millisecond
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
