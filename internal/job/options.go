package job

import (
	"fmt"
	"strings"
	"time"

	"merchbatch/internal/config"
)

// Mode selects between real per-item processing and the stub outcome.
type Mode string

const (
	ModeLive Mode = "live"
	ModeStub Mode = "stub"
)

// ParseMode normalizes raw into a Mode. Blank input yields ModeLive.
func ParseMode(raw string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ModeLive, nil
	case ModeLive, ModeStub:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidOptions, raw)
	}
}

// Options configures a single run.
type Options struct {
	Delay time.Duration
	Mode  Mode
}

// DefaultOptions returns the run options configured in the [job] section.
func DefaultOptions(cfg *config.Config) Options {
	if cfg == nil {
		return Options{Mode: ModeLive}
	}
	mode, err := ParseMode(cfg.Job.DefaultMode)
	if err != nil {
		mode = ModeLive
	}
	return Options{Delay: cfg.DefaultDelay(), Mode: mode}
}

func (o Options) normalized() (Options, error) {
	if o.Delay < 0 {
		return o, fmt.Errorf("%w: delay must be non-negative", ErrInvalidOptions)
	}
	mode, err := ParseMode(string(o.Mode))
	if err != nil {
		return o, err
	}
	o.Mode = mode
	return o, nil
}

// Option customizes a Controller.
type Option func(*Controller)

// WithPollInterval sets how long a paused run waits between signal checks
// when no change is broadcast.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithStubDuration sets how long a stub-mode run idles before completing.
func WithStubDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.stubDuration = d
		}
	}
}
