package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"merchbatch/internal/jobstatus"
	"merchbatch/internal/logging"
	"merchbatch/internal/processor"
	"merchbatch/internal/services"
)

const (
	globalErrorTitle   = "Global Error"
	stubNoteTitle      = "Local Execution Required"
	stubNoteMessage    = "Live processing is disabled for this run; no items were sent to the automation processor. Start the run in live mode on a machine with the processor installed."
	notifyFinalTimeout = 15 * time.Second
)

func (c *Controller) run(ctx context.Context, run *runState) {
	defer c.wg.Done()
	defer close(run.done)

	logger := logging.WithContext(ctx, c.logger)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Int("total", len(run.items)),
		logging.String("mode", string(run.opts.Mode)),
		logging.Duration("delay", run.opts.Delay),
	)
	if err := c.notifier.NotifyRunStarted(ctx, len(run.items), string(run.opts.Mode)); err != nil {
		logger.Debug("run start notification failed", logging.Error(err))
	}

	state, fatal := c.execute(ctx, logger, run)
	c.finish(run, state, fatal)
	c.report(logger, run, fatal)
}

// execute drives the run to a terminal state. fatal is non-nil only for the
// error state.
func (c *Controller) execute(ctx context.Context, logger *slog.Logger, run *runState) (state jobstatus.State, fatal error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("run panicked",
				logging.String(logging.FieldEventType, "run_panic"),
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
			)
			state = jobstatus.StateError
			fatal = services.Wrap(services.ErrInternal, "job", "run", fmt.Sprintf("unexpected failure: %v", rec), nil)
		}
	}()

	if run.opts.Mode == ModeStub {
		return c.executeStub(ctx, logger, run), nil
	}

	if c.processor == nil {
		return jobstatus.StateError, services.Wrap(services.ErrResource, "job", "open processor", "no processor configured", nil)
	}
	session, err := c.processor.Open(ctx)
	if err != nil {
		return jobstatus.StateError, asResourceError("open processor", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn("processor release failed",
				logging.String(logging.FieldEventType, "processor_close_failed"),
				logging.Error(closeErr),
			)
			if fatal == nil {
				state = jobstatus.StateError
				fatal = asResourceError("close processor", closeErr)
			}
		}
	}()

	return c.loop(ctx, logger, run, session), nil
}

func (c *Controller) loop(ctx context.Context, logger *slog.Logger, run *runState, session processor.Session) jobstatus.State {
	for i := range run.items {
		if run.signals.stopRequested() || ctx.Err() != nil {
			return jobstatus.StateStopped
		}
		stopped := run.signals.waitWhilePaused(c.pollInterval, func() {
			c.setState(jobstatus.StatePaused)
		})
		if stopped {
			return jobstatus.StateStopped
		}

		item := run.items[i]
		item.ResolvedPath = c.resolver.Resolve(item.ResourcePath)
		c.store.Update(func(s *jobstatus.Snapshot) {
			s.State = jobstatus.StateRunning
			s.Current = i + 1
			s.CurrentItem = item.Label()
		})

		itemCtx := services.WithItemIndex(ctx, item.Index)
		itemLogger := logging.WithContext(itemCtx, c.logger)
		if item.ResolvedPath != item.ResourcePath {
			itemLogger.Info("using uploaded image",
				logging.String("original_path", item.ResourcePath),
				logging.String("resolved_path", item.ResolvedPath),
			)
		}

		started := time.Now()
		err := session.Process(itemCtx, item)
		if err != nil && ctx.Err() != nil {
			itemLogger.Info("item interrupted by shutdown", logging.String(logging.FieldEventType, "item_interrupted"))
			return jobstatus.StateStopped
		}
		c.recordOutcome(i, item.Label(), err)
		if err != nil {
			details := services.Details(err)
			logging.WarnWithContext(itemLogger, "item failed", "item_failed",
				logging.String("title", item.Label()),
				logging.String(logging.FieldErrorKind, string(details.Kind)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the item and resubmit it in a later run"),
				logging.String(logging.FieldImpact, "item skipped; run continues"),
			)
		} else {
			itemLogger.Info("item processed",
				logging.String(logging.FieldEventType, "item_processed"),
				logging.String("title", item.Label()),
				logging.Duration("duration", time.Since(started)),
			)
		}

		if i < len(run.items)-1 {
			run.signals.sleep(ctx, run.opts.Delay)
		}
	}
	// A stop accepted while the last item was in flight still ends the run as Stopped.
	if run.signals.stopRequested() {
		return jobstatus.StateStopped
	}
	return jobstatus.StateCompleted
}

func (c *Controller) executeStub(ctx context.Context, logger *slog.Logger, run *runState) jobstatus.State {
	c.store.Update(func(s *jobstatus.Snapshot) {
		s.Errors = append(s.Errors, jobstatus.ErrorRecord{
			Scope:   jobstatus.ScopeNote,
			Title:   stubNoteTitle,
			Message: stubNoteMessage,
		})
	})
	logger.Info("stub run; items will not be processed",
		logging.String(logging.FieldEventType, "run_stubbed"),
		logging.Duration("stub_duration", c.stubDuration),
	)
	if run.signals.sleep(ctx, c.stubDuration) {
		return jobstatus.StateStopped
	}
	return jobstatus.StateCompleted
}

func (c *Controller) recordOutcome(i int, title string, err error) {
	c.store.Update(func(s *jobstatus.Snapshot) {
		if err == nil {
			s.Success++
			return
		}
		s.Failed++
		s.Errors = append(s.Errors, jobstatus.ErrorRecord{
			Scope:   jobstatus.ScopeItem,
			Index:   i + 1,
			Title:   title,
			Message: errorMessage(err),
		})
	})
}

func (c *Controller) setState(state jobstatus.State) {
	c.store.Update(func(s *jobstatus.Snapshot) {
		s.State = state
	})
}

// finish publishes the terminal state and releases the controller for the
// next Start in one step.
func (c *Controller) finish(run *runState, state jobstatus.State, fatal error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Update(func(s *jobstatus.Snapshot) {
		s.State = state
		s.FinishedAt = time.Now()
		if fatal != nil {
			s.Errors = append(s.Errors, jobstatus.ErrorRecord{
				Scope:   jobstatus.ScopeGlobal,
				Title:   globalErrorTitle,
				Message: errorMessage(fatal),
			})
		}
	})
	if c.active == run {
		c.active = nil
	}
}

func (c *Controller) report(logger *slog.Logger, run *runState, fatal error) {
	snap := c.store.Snapshot()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.baseCtx), notifyFinalTimeout)
	defer cancel()

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_finished"),
		logging.String("state", string(snap.State)),
		logging.Int("total", snap.Total),
		logging.Int("current", snap.Current),
		logging.Int("success", snap.Success),
		logging.Int("failed", snap.Failed),
		logging.Duration("elapsed", snap.Elapsed(time.Now())),
	}

	var notifyErr error
	switch snap.State {
	case jobstatus.StateError:
		details := services.Details(fatal)
		logging.ErrorWithContext(logger, "run failed", "run_failed", append(attrs,
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.Error(fatal),
			logging.String(logging.FieldErrorHint, "check processor configuration and logs"),
		)...)
		notifyErr = c.notifier.NotifyError(ctx, fatal, fmt.Sprintf("run %s", shortID(run.id)))
	case jobstatus.StateStopped:
		logger.Info("run stopped", logging.Args(attrs...)...)
		notifyErr = c.notifier.NotifyRunStopped(ctx, snap.Current, snap.Total)
	default:
		logger.Info("run completed", logging.Args(attrs...)...)
		notifyErr = c.notifier.NotifyRunCompleted(ctx, snap.Success, snap.Failed, snap.Elapsed(time.Now()))
	}
	if notifyErr != nil {
		logger.Debug("run finish notification failed", logging.Error(notifyErr))
	}
}

func asResourceError(operation string, err error) error {
	if errors.Is(err, services.ErrResource) {
		return err
	}
	return services.Wrap(services.ErrResource, "job", operation, "processor unavailable", err)
}

func errorMessage(err error) string {
	details := services.Details(err)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(err.Error())
	}
	return message
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
