package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"merchbatch/internal/config"
	"merchbatch/internal/daemon"
	"merchbatch/internal/deps"
	"merchbatch/internal/imagemap"
	"merchbatch/internal/ipc"
	"merchbatch/internal/job"
	"merchbatch/internal/logging"
	"merchbatch/internal/notifications"
	"merchbatch/internal/processor"
)

const (
	logFilePattern = "merchbatchd-*.log"
	currentLogName = "merchbatchd.log"
	pidFileName    = "merchbatchd.pid"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the merchbatch daemon and blocks until ctx is canceled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("merchbatchd-%s.log", stamp))

	logger, err := logging.NewFromConfig(cfg, logPath, logging.Options{
		Level:       opts.LogLevel,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", currentLogName, err)
	}
	if removed := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logFilePattern, Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.SpreadsheetDir()},
		logging.RetentionTarget{Dir: cfg.ImagesDir()},
	); removed > 0 {
		logger.Info("expired logs and uploads pruned",
			logging.Int("removed", removed),
			logging.Int("retention_days", cfg.Logging.RetentionDays),
			logging.String(logging.FieldEventType, "retention_complete"))
	}
	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	notifier := notifications.NewService(cfg)
	controller := job.NewControllerWithNotifier(cfg, processor.NewCommand(cfg, logger), imagemap.New(), logger, notifier)

	d, err := daemon.New(cfg, controller, logger, logPath, notifier)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other merchbatchd holds the lock"),
			logging.String(logging.FieldImpact, "daemon cannot accept runs"),
		)
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("merchbatch daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// PIDPath returns the pid file written while the daemon runs.
func PIDPath(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.Paths.StateDir, pidFileName)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("default_mode", cfg.Job.DefaultMode),
		logging.Bool("api_enabled", cfg.Paths.APIBind != ""),
		logging.Bool("api_token_present", cfg.Paths.APIToken != ""),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.String("processor_command", status.Command),
			logging.Bool("processor_available", status.Available),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
