package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory whose files expire. An empty Pattern
// matches every regular file; Exclude lists paths that are never removed.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes files under the targets whose modification time is
// older than retentionDays and returns how many were removed. Daemon logs
// and stored uploads share this pruning. retentionDays <= 0 disables it.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		removed += target.prune(logger, cutoff)
	}
	return removed
}

func (t RetentionTarget) prune(logger *slog.Logger, cutoff time.Time) int {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	excluded := t.excluded()
	pattern := strings.TrimSpace(t.Pattern)

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, entry.Name()); err != nil || !ok {
				continue
			}
		}
		path := absPath(filepath.Join(dir, entry.Name()))
		if _, skip := excluded[path]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "retention cleanup could not remove file", "retention_remove_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on the log and upload directories"),
				String(FieldImpact, "expired file stays on disk"),
			)
			continue
		}
		removed++
		logger.Debug("expired file removed",
			String("path", path),
			String(FieldEventType, "retention_pruned"),
		)
	}
	return removed
}

func (t RetentionTarget) excluded() map[string]struct{} {
	out := make(map[string]struct{}, len(t.Exclude))
	for _, path := range t.Exclude {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			out[absPath(trimmed)] = struct{}{}
		}
	}
	return out
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
