package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"ingestor/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Engine", statusError, "Stopped", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Engine:", "[ERROR] Stopped")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Engine", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		percentage int
		filled     int
	}{
		{percentage: -5, filled: 0},
		{percentage: 0, filled: 0},
		{percentage: 50, filled: progressBarWidth / 2},
		{percentage: 100, filled: progressBarWidth},
		{percentage: 140, filled: progressBarWidth},
	}
	for _, tt := range tests {
		bar := renderProgressBar(tt.percentage)
		if len(bar) != progressBarWidth+2 {
			t.Fatalf("bar for %d has width %d", tt.percentage, len(bar))
		}
		if got := strings.Count(bar, "#"); got != tt.filled {
			t.Fatalf("bar for %d: expected %d filled cells, got %d", tt.percentage, tt.filled, got)
		}
	}
}

func TestRenderEvent(t *testing.T) {
	line := renderEvent(api.Event{
		JobID:       "0123456789abcdef",
		Type:        "progress",
		Status:      "document_storage",
		Percentage:  42,
		CurrentItem: "guide.md",
		Processed:   1,
		Total:       3,
	}, false)
	for _, want := range []string{" 42%", "document_storage", "01234567", "guide.md", "(1/3)"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "0123456789") {
		t.Fatalf("expected shortened job id in %q", line)
	}

	terminal := renderEvent(api.Event{
		Type:       "completed",
		Status:     "completed",
		Percentage: 100,
		Log:        "Stored 4 chunks",
		Stats:      &api.JobStats{ChunksStored: 4, WordsProcessed: 120},
	}, true)
	if !strings.HasPrefix(terminal, ansiGreen) {
		t.Fatalf("expected completed event in green, got %q", terminal)
	}
	if !strings.Contains(terminal, "chunks=4 words=120") {
		t.Fatalf("expected stats on terminal event, got %q", terminal)
	}

	failed := renderEvent(api.Event{Type: "error", Status: "error", Log: "ignored", Error: "boom"}, false)
	if !strings.Contains(failed, "boom") || strings.Contains(failed, "ignored") {
		t.Fatalf("expected error text to win over log line, got %q", failed)
	}
}

func TestDaemonStatusLines(t *testing.T) {
	status := api.Status{
		PID:          42,
		DatabasePath: "/tmp/knowledge.db",
		Engine: api.EngineStatus{
			Running:  true,
			InFlight: 1,
			Capacity: 3,
			Counts:   []api.StatusCount{{Status: "completed", Count: 2}},
		},
		Knowledge: &api.KnowledgeTotals{Sources: 1, Documents: 2, Chunks: 7},
		Checks: []api.CheckResult{
			{Name: "Disk space", Passed: false, Detail: "only 1 MiB free"},
		},
	}
	out := strings.Join(daemonStatusLines(status, false), "\n")
	for _, want := range []string{
		"[OK] Running",
		"1/3 in flight",
		"completed:",
		"[OK] 2",
		"Chunks:",
		"[ERROR] only 1 MiB free",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in status output\n%s", want, out)
		}
	}
}

func TestDependencyLines(t *testing.T) {
	lines := dependencyLines([]api.Dependency{
		{Name: "pdftotext", Optional: true, Detail: `binary "pdftotext" not found`},
		{Name: "converter", Available: true, Command: "/usr/bin/converter"},
		{Name: "required"},
	}, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `[WARN] binary "pdftotext" not found`) {
		t.Fatalf("expected optional dependency as warning, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: /usr/bin/converter)") {
		t.Fatalf("expected ready detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[ERROR] not available") {
		t.Fatalf("expected required dependency as error, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "pdftotext, required") {
		t.Fatalf("expected missing summary, got %q", lines[3])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
