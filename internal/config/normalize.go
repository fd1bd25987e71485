package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRhubarb(); err != nil {
		return err
	}
	c.normalizeAnimation()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRhubarb() error {
	c.Rhubarb.ExecutablePath = strings.TrimSpace(c.Rhubarb.ExecutablePath)
	if c.Rhubarb.ExecutablePath == "" {
		if value, ok := os.LookupEnv("RHUBARB_PATH"); ok {
			c.Rhubarb.ExecutablePath = strings.TrimSpace(value)
		}
	}
	if c.Rhubarb.ExecutablePath != "" {
		expanded, err := expandPath(c.Rhubarb.ExecutablePath)
		if err != nil {
			return fmt.Errorf("rhubarb.executable_path: %w", err)
		}
		c.Rhubarb.ExecutablePath = expanded
	}

	switch strings.ToLower(strings.TrimSpace(c.Rhubarb.Recognizer)) {
	case "":
		c.Rhubarb.Recognizer = defaultRecognizer
	case strings.ToLower(RecognizerPocketSphinx):
		c.Rhubarb.Recognizer = RecognizerPocketSphinx
	case RecognizerPhonetic:
		c.Rhubarb.Recognizer = RecognizerPhonetic
	default:
		c.Rhubarb.Recognizer = strings.TrimSpace(c.Rhubarb.Recognizer)
	}

	c.Rhubarb.ExtendedShapes = strings.ToUpper(strings.TrimSpace(c.Rhubarb.ExtendedShapes))

	args := c.Rhubarb.ExtraArgs[:0]
	for _, arg := range c.Rhubarb.ExtraArgs {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	c.Rhubarb.ExtraArgs = args
	return nil
}

func (c *Config) normalizeAnimation() {
	c.Animation.Mode = strings.ToLower(strings.TrimSpace(c.Animation.Mode))
	if c.Animation.Mode == "" {
		c.Animation.Mode = defaultMode
	}
	if c.Animation.DefaultFPS == 0 {
		c.Animation.DefaultFPS = defaultFPS
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
