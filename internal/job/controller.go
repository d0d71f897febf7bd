package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"merchbatch/internal/config"
	"merchbatch/internal/imagemap"
	"merchbatch/internal/items"
	"merchbatch/internal/jobstatus"
	"merchbatch/internal/logging"
	"merchbatch/internal/notifications"
	"merchbatch/internal/processor"
	"merchbatch/internal/services"
)

const (
	defaultPollInterval = time.Second
	defaultStubDuration = 5 * time.Second
	processorHealthName = "processor"
)

// Controller coordinates a single background batch run.
type Controller struct {
	processor processor.Processor
	resolver  *imagemap.Resolver
	store     *jobstatus.Store
	logger    *slog.Logger
	notifier  notifications.Service

	pollInterval time.Duration
	stubDuration time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active *runState
	last   *runState
}

type runState struct {
	id      string
	items   []items.Item
	opts    Options
	signals *signals
	done    chan struct{}
}

// NewController constructs a controller using the [job] configuration for
// pacing defaults. resolver may be shared with transports that accept image
// uploads; a nil resolver gets a private one.
func NewController(cfg *config.Config, proc processor.Processor, resolver *imagemap.Resolver, logger *slog.Logger, opts ...Option) *Controller {
	return NewControllerWithNotifier(cfg, proc, resolver, logger, notifications.NewService(cfg), opts...)
}

// NewControllerWithNotifier constructs a controller with a custom notifier (used in tests).
func NewControllerWithNotifier(cfg *config.Config, proc processor.Processor, resolver *imagemap.Resolver, logger *slog.Logger, notifier notifications.Service, opts ...Option) *Controller {
	if resolver == nil {
		resolver = imagemap.New()
	}
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		processor:    proc,
		resolver:     resolver,
		store:        jobstatus.NewStore(),
		logger:       logging.NewComponentLogger(logger, "job-controller"),
		notifier:     notifier,
		pollInterval: defaultPollInterval,
		stubDuration: defaultStubDuration,
		baseCtx:      baseCtx,
		cancel:       cancel,
	}
	if cfg != nil {
		if d := cfg.PollInterval(); d > 0 {
			c.pollInterval = d
		}
		c.stubDuration = cfg.StubDuration()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches a run over a copy of list and returns its identifier. It
// rejects the request while another run is still active.
func (c *Controller) Start(ctx context.Context, list []items.Item, opts Options) (string, error) {
	opts, err := opts.normalized()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	if err := c.baseCtx.Err(); err != nil {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrValidation, "job", "start", "controller is shut down", nil)
	}

	run := &runState{
		id:      uuid.NewString(),
		items:   items.CloneAll(list),
		opts:    opts,
		signals: newSignals(),
		done:    make(chan struct{}),
	}
	c.store.Reset(jobstatus.Snapshot{
		RunID:     run.id,
		Mode:      string(opts.Mode),
		Total:     len(run.items),
		State:     jobstatus.StateRunning,
		StartedAt: time.Now(),
	})
	c.active = run
	c.last = run
	c.wg.Add(1)
	c.mu.Unlock()

	runCtx := services.WithRunID(c.baseCtx, run.id)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		runCtx = services.WithRequestID(runCtx, rid)
	}
	go c.run(runCtx, run)
	return run.id, nil
}

// RequestPause asks the running loop to pause at its next checkpoint.
func (c *Controller) RequestPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.store.State() != jobstatus.StateRunning {
		return ErrNotRunning
	}
	c.active.signals.requestPause()
	c.logger.Info("pause requested",
		logging.String(logging.FieldEventType, "pause_requested"),
		logging.RunID(c.active.id),
	)
	return nil
}

// RequestResume clears a pause observed by the loop.
func (c *Controller) RequestResume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.store.State() != jobstatus.StatePaused {
		return ErrNotPaused
	}
	c.active.signals.requestResume()
	c.logger.Info("resume requested",
		logging.String(logging.FieldEventType, "resume_requested"),
		logging.RunID(c.active.id),
	)
	return nil
}

// RequestStop asks the loop to halt before the next item.
func (c *Controller) RequestStop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || !c.store.State().Active() {
		return ErrNoActiveJob
	}
	c.active.signals.requestStop()
	c.logger.Info("stop requested",
		logging.String(logging.FieldEventType, "stop_requested"),
		logging.RunID(c.active.id),
	)
	return nil
}

// Status returns a copy of the current run status.
func (c *Controller) Status() jobstatus.Snapshot {
	return c.store.Snapshot()
}

// SubmitImageMapping records where the file for original was uploaded.
func (c *Controller) SubmitImageMapping(original, resolved string) error {
	if err := c.resolver.Submit(original, resolved); err != nil {
		return err
	}
	c.logger.Debug("image mapping submitted",
		logging.String(logging.FieldEventType, "image_mapping_submitted"),
		logging.String("original_path", original),
		logging.String("resolved_path", resolved),
	)
	return nil
}

// Resolver exposes the image mapping table.
func (c *Controller) Resolver() *imagemap.Resolver {
	return c.resolver
}

// ProcessorHealth reports the readiness of the configured processor.
func (c *Controller) ProcessorHealth(ctx context.Context) processor.Health {
	return processor.Check(ctx, processorHealthName, c.processor)
}

// Wait blocks until the most recent run has finished or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	run := c.last
	c.mu.Unlock()
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops any active run and waits for it to release the processor.
// The controller rejects further Start calls afterwards.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.active != nil {
		c.active.signals.requestStop()
	}
	// Cancel under the lock so a concurrent Start sees the shut-down context.
	c.cancel()
	c.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
