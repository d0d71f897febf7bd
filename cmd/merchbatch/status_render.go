package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"merchbatch/internal/api"
	"merchbatch/internal/ipc"
	"merchbatch/internal/jobstatus"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
	errorColumnWidth = 72
)

var titleCaser = cases.Title(language.English)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// stateTitle renders a run state for humans ("paused" -> "Paused").
func stateTitle(state string) string {
	if strings.TrimSpace(state) == "" {
		return "Unknown"
	}
	return titleCaser.String(state)
}

func stateKind(state string) statusKind {
	parsed, ok := jobstatus.ParseState(state)
	if !ok {
		return statusWarn
	}
	switch parsed {
	case jobstatus.StateRunning, jobstatus.StateCompleted:
		return statusOK
	case jobstatus.StatePaused, jobstatus.StateStopped:
		return statusWarn
	case jobstatus.StateError:
		return statusError
	default:
		return statusInfo
	}
}

func daemonLines(status *ipc.StatusResponse, colorize bool) []string {
	if !status.Running {
		return []string{renderStatusLine("Daemon", statusWarn, "Not running", colorize)}
	}
	lines := []string{renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize)}
	if status.StagedItems > 0 {
		lines = append(lines, renderStatusLine("Staged", statusInfo,
			fmt.Sprintf("%s from %s", pluralize(status.StagedItems, "item"), status.StagedSource), colorize))
	} else {
		lines = append(lines, renderStatusLine("Staged", statusInfo, "No item list staged", colorize))
	}
	return lines
}

func runLines(job api.StatusResponse, now time.Time, colorize bool) []string {
	lines := []string{renderStatusLine("State", stateKind(job.Status), stateTitle(job.Status), colorize)}
	if job.RunID == "" {
		return lines
	}
	lines = append(lines,
		renderStatusLine("Run", statusInfo, fmt.Sprintf("%s (%s mode)", shortRunID(job.RunID), job.Mode), colorize),
		renderStatusLine("Progress", statusInfo, fmt.Sprintf("%d/%d (%.0f%%)", job.Current, job.Total, job.Progress*100), colorize),
		renderStatusLine("Results", resultKind(job), fmt.Sprintf("%d succeeded, %d failed", job.Success, job.Failed), colorize),
	)
	if job.CurrentProduct != "" {
		lines = append(lines, renderStatusLine("Current", statusInfo, job.CurrentProduct, colorize))
	}
	if elapsed := api.ToSnapshot(job).Elapsed(now); elapsed > 0 {
		lines = append(lines, renderStatusLine("Elapsed", statusInfo, elapsed.Round(time.Second).String(), colorize))
	}
	if job.ImageMappings > 0 {
		lines = append(lines, renderStatusLine("Image mappings", statusInfo, fmt.Sprintf("%d", job.ImageMappings), colorize))
	}
	return lines
}

func resultKind(job api.StatusResponse) statusKind {
	if job.Failed > 0 {
		return statusWarn
	}
	return statusOK
}

func processorLine(health *api.ProcessorHealth, colorize bool) string {
	if health == nil {
		return renderStatusLine("Processor", statusInfo, "Unknown", colorize)
	}
	if health.Ready {
		return renderStatusLine("Processor", statusOK, health.Name, colorize)
	}
	detail := strings.TrimSpace(health.Detail)
	if detail == "" {
		detail = "not ready"
	}
	return renderStatusLine("Processor", statusWarn, detail, colorize)
}

func dependencyLines(deps []ipc.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}

func errorRows(entries []api.ErrorEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		product := entry.Product.Label
		if product == "" {
			product = fmt.Sprintf("%d", entry.Product.Index)
		}
		rows = append(rows, []string{product, entry.Title, truncate(entry.Error, errorColumnWidth)})
	}
	return rows
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if width <= 3 || len(runes) <= width {
		return value
	}
	return string(runes[:width-3]) + "..."
}
