package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mouthsync/internal/config"
	"mouthsync/internal/history"
	"mouthsync/internal/lipsync"
	"mouthsync/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	// lipsyncOptions are appended to every run; tests use them to swap the
	// analyzer launcher.
	lipsyncOptions []lipsync.RunOption
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// openHistory opens the run journal, or returns nil when history is disabled.
func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return store, nil
}

// runLogger builds the logger for a mutating command: stderr plus a per-run
// log file. Old run logs past retention are pruned.
func (c *commandContext) runLogger(started time.Time) (*slog.Logger, string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	logPath := logging.RunLogPath(cfg.Paths.LogDir, started)
	logger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return nil, "", fmt.Errorf("init logger: %w", err)
	}
	if removed := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, runLogPattern, logPath); removed > 0 {
		logger.Debug("pruned old run logs", logging.Int("removed", removed))
	}
	return logger, logPath, nil
}

// consoleLogger builds a stderr-only logger for read-only commands.
func (c *commandContext) consoleLogger() *slog.Logger {
	logger, err := logging.NewFromConfig(c.configValue(), "")
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
