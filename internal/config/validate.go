package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateJob(); err != nil {
		return err
	}
	if err := c.validateProcessor(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be non-negative")
	}
	return nil
}

func (c *Config) validateJob() error {
	if c.Job.DefaultDelaySeconds < 0 {
		return errors.New("job.default_delay_seconds must be non-negative")
	}
	switch c.Job.DefaultMode {
	case "live", "stub":
	default:
		return fmt.Errorf("job.default_mode: unsupported value %q (want live or stub)", c.Job.DefaultMode)
	}
	if c.Job.StubDurationSeconds < 0 {
		return errors.New("job.stub_duration_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateProcessor() error {
	if c.Processor.ItemTimeoutSeconds < 0 {
		return errors.New("processor.item_timeout_seconds must be non-negative")
	}
	if c.Processor.Command == "" && len(c.Processor.Args) > 0 {
		return errors.New("processor.args set without processor.command")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be non-negative")
	}
	return nil
}
