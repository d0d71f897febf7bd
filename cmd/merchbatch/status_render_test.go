package main

import (
	"strings"
	"testing"
	"time"

	"merchbatch/internal/api"
	"merchbatch/internal/ipc"
)

func TestStateTitleAndKind(t *testing.T) {
	tests := []struct {
		state string
		title string
		kind  statusKind
	}{
		{"idle", "Idle", statusInfo},
		{"running", "Running", statusOK},
		{"paused", "Paused", statusWarn},
		{"completed", "Completed", statusOK},
		{"stopped", "Stopped", statusWarn},
		{"error", "Error", statusError},
		{"", "Unknown", statusWarn},
	}
	for _, tt := range tests {
		if got := stateTitle(tt.state); got != tt.title {
			t.Errorf("stateTitle(%q) = %q, want %q", tt.state, got, tt.title)
		}
		if got := stateKind(tt.state); got != tt.kind {
			t.Errorf("stateKind(%q) = %v, want %v", tt.state, got, tt.kind)
		}
	}
}

func TestRenderStatusLineColor(t *testing.T) {
	plain := renderStatusLine("State", statusOK, "Completed", false)
	if plain != "  State:           [OK] Completed" {
		t.Fatalf("unexpected plain line %q", plain)
	}
	colored := renderStatusLine("State", statusError, "Error", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red line, got %q", colored)
	}
}

func TestRunLines(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := api.StatusResponse{
		RunID:          "0123456789abcdef",
		Mode:           "live",
		Total:          4,
		Current:        2,
		Success:        1,
		Failed:         1,
		Status:         "paused",
		CurrentProduct: "Mug",
		Progress:       0.5,
		StartedAt:      now.Add(-90 * time.Second).Format("2006-01-02T15:04:05.000Z07:00"),
	}
	joined := strings.Join(runLines(job, now, false), "\n")
	for _, want := range []string{"[WARN] Paused", "01234567 (live mode)", "2/4 (50%)", "1 succeeded, 1 failed", "Mug", "1m30s"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected run lines to contain %q:\n%s", want, joined)
		}
	}

	idle := runLines(api.StatusResponse{Status: "idle"}, now, false)
	if len(idle) != 1 {
		t.Fatalf("expected only the state line for an idle daemon, got %v", idle)
	}
}

func TestErrorRowsAndTruncate(t *testing.T) {
	rows := errorRows([]api.ErrorEntry{
		{Product: api.ProductRef{Index: 3}, Title: "Hat", Error: "rejected"},
		{Product: api.ProductRef{Label: "global"}, Title: "Upload Process", Error: strings.Repeat("x", 100)},
	})
	if rows[0][0] != "3" || rows[1][0] != "global" {
		t.Fatalf("unexpected product column: %v", rows)
	}
	if len([]rune(rows[1][2])) != errorColumnWidth || !strings.HasSuffix(rows[1][2], "...") {
		t.Fatalf("expected truncated error, got %q", rows[1][2])
	}
	if got := truncate("a\n  b", 10); got != "a b" {
		t.Fatalf("truncate collapsed whitespace to %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	lines := dependencyLines([]ipc.DependencyStatus{
		{Name: "Automation processor", Command: "/opt/upload.sh", Available: true},
		{Name: "Optional tool", Optional: true, Detail: "binary \"x\" not found"},
		{Name: "Required tool"},
	}, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] Ready (command: /opt/upload.sh)") {
		t.Fatalf("unexpected ready line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN]") || !strings.Contains(lines[2], "[ERROR] not available") {
		t.Fatalf("unexpected missing lines %q / %q", lines[1], lines[2])
	}
}
