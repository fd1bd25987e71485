package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRhubarb(); err != nil {
		return err
	}
	if err := c.validateAnimation(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRhubarb() error {
	switch c.Rhubarb.Recognizer {
	case RecognizerPocketSphinx, RecognizerPhonetic:
	default:
		return fmt.Errorf("rhubarb.recognizer must be %q or %q, got %q", RecognizerPocketSphinx, RecognizerPhonetic, c.Rhubarb.Recognizer)
	}
	for _, r := range c.Rhubarb.ExtendedShapes {
		if !strings.ContainsRune("GHX", r) {
			return fmt.Errorf("rhubarb.extended_shapes may only contain G, H, and X, got %q", c.Rhubarb.ExtendedShapes)
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"rhubarb.poll_interval_ms": c.Rhubarb.PollIntervalMS,
		"rhubarb.poll_timeout_ms":  c.Rhubarb.PollTimeoutMS,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAnimation() error {
	switch c.Animation.Mode {
	case ModeBone, ModeLayer:
	default:
		return fmt.Errorf("animation.mode must be %q or %q, got %q", ModeBone, ModeLayer, c.Animation.Mode)
	}
	if c.Animation.HoldFrameThreshold < 0 {
		return errors.New("animation.hold_frame_threshold must be >= 0")
	}
	if c.Animation.DefaultFPS <= 0 {
		return errors.New("animation.default_fps must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
