package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"merchbatch/internal/config"
	"merchbatch/internal/deps"
	"merchbatch/internal/items"
	"merchbatch/internal/job"
	"merchbatch/internal/jobstatus"
	"merchbatch/internal/logging"
	"merchbatch/internal/notifications"
	"merchbatch/internal/processor"
	"merchbatch/internal/services"
)

const shutdownTimeout = 30 * time.Second

// Daemon owns the controller and the item list staged for the next run.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	controller *job.Controller
	notifier   notifications.Service
	logPath    string

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	mu           sync.RWMutex
	staged       []items.Item
	stagedSource string
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockFilePath  string
	LogPath       string
	Job           jobstatus.Snapshot
	ImageMappings int
	StagedItems   int
	StagedSource  string
	Processor     processor.Health
	Dependencies  []deps.Status
}

// StagedList summarizes an item list accepted for the next run.
type StagedList struct {
	Source     string
	Count      int
	ImagePaths []string
}

// RunRequest carries transport-supplied run options. Nil or blank fields fall
// back to the [job] configuration.
type RunRequest struct {
	Delay *time.Duration
	Mode  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, controller *job.Controller, logger *slog.Logger, logPath string, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || controller == nil || logger == nil {
		return nil, errors.New("daemon requires config, controller, and logger")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		controller: controller,
		notifier:   notifier,
		logPath:    logPath,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and starts the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another merchbatch daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("merchbatch daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop halts any active run, stops the API and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("merchbatch daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and waits for the active run to release its processor.
func (d *Daemon) Close() error {
	d.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.controller.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown controller: %w", err)
	}
	return nil
}

// StageFile parses an item list from path and keeps it for the next run.
func (d *Daemon) StageFile(path string) (StagedList, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return StagedList{}, services.Wrap(services.ErrInput, "daemon", "stage", "item list path is required", nil)
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return StagedList{}, services.Wrap(services.ErrInput, "daemon", "stage", "resolve item list path", err)
	}
	list, err := items.Load(absPath)
	if err != nil {
		d.logger.Warn("item list rejected",
			logging.String(logging.FieldEventType, "items_rejected"),
			logging.String("source", absPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "export the sheet as CSV with title and image_path columns"),
			logging.String(logging.FieldImpact, "previously staged items are kept"),
		)
		return StagedList{}, err
	}
	return d.StageItems(absPath, list), nil
}

// StageItems replaces the staged list.
func (d *Daemon) StageItems(source string, list []items.Item) StagedList {
	d.mu.Lock()
	d.staged = items.CloneAll(list)
	d.stagedSource = source
	d.mu.Unlock()

	d.logger.Info("item list staged",
		logging.String(logging.FieldEventType, "items_staged"),
		logging.String("source", source),
		logging.Int("count", len(list)),
	)
	return StagedList{Source: source, Count: len(list), ImagePaths: items.ResourcePaths(list)}
}

// Staged returns a copy of the staged list and its source.
func (d *Daemon) Staged() ([]items.Item, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return items.CloneAll(d.staged), d.stagedSource
}

// StartRun launches a run over the staged list.
func (d *Daemon) StartRun(ctx context.Context, req RunRequest) (string, error) {
	list, source := d.Staged()
	if len(list) == 0 {
		return "", services.Wrap(services.ErrInput, "daemon", "start", "no item list has been staged", nil)
	}
	opts := job.DefaultOptions(d.cfg)
	if req.Delay != nil {
		opts.Delay = *req.Delay
	}
	if mode := strings.TrimSpace(req.Mode); mode != "" {
		opts.Mode = job.Mode(mode)
	}
	runID, err := d.controller.Start(ctx, list, opts)
	if err != nil {
		return "", err
	}
	logging.WithContext(services.WithRunID(ctx, runID), d.logger).Info("run accepted",
		logging.String(logging.FieldEventType, "run_accepted"),
		logging.String("source", source),
		logging.Int("count", len(list)),
	)
	return runID, nil
}

// PauseRun forwards a pause request to the controller.
func (d *Daemon) PauseRun() error { return d.controller.RequestPause() }

// ResumeRun forwards a resume request to the controller.
func (d *Daemon) ResumeRun() error { return d.controller.RequestResume() }

// StopRun forwards a stop request to the controller.
func (d *Daemon) StopRun() error { return d.controller.RequestStop() }

// SubmitImageMapping records an uploaded replacement for original.
func (d *Daemon) SubmitImageMapping(original, uploaded string) error {
	return d.controller.SubmitImageMapping(original, uploaded)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.RLock()
	stagedCount := len(d.staged)
	source := d.stagedSource
	d.mu.RUnlock()

	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockFilePath:  d.lockPath,
		LogPath:       d.logPath,
		Job:           d.controller.Status(),
		ImageMappings: d.controller.Resolver().Len(),
		StagedItems:   stagedCount,
		StagedSource:  source,
		Processor:     d.controller.ProcessorHealth(ctx),
		Dependencies:  deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}
