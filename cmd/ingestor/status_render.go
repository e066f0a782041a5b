package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"ingestor/internal/api"
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
	statusLabelWidth = 20
	statusIndent     = "  "
	progressBarWidth = 24
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	return paint(base, kind, colorize)
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

func paint(text string, kind statusKind, colorize bool) string {
	if !colorize {
		return text
	}
	if color := statusKindColor(kind); color != "" {
		return color + text + ansiReset
	}
	return text
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

// jobStatusKind maps a job status onto a display severity.
func jobStatusKind(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "error":
		return statusError
	case "cancelled", "cancelling":
		return statusWarn
	default:
		return statusInfo
	}
}

func renderProgressBar(percentage int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	filled := percentage * progressBarWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled) + "]"
}

// renderEvent formats one progress event as a single line.
func renderEvent(evt api.Event, colorize bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %3d%% %-12s", renderProgressBar(evt.Percentage), evt.Percentage, evt.Status)
	if evt.JobID != "" {
		fmt.Fprintf(&b, " %s", shortID(evt.JobID))
	}
	switch {
	case evt.Error != "":
		fmt.Fprintf(&b, " %s", evt.Error)
	case evt.Log != "":
		fmt.Fprintf(&b, " %s", evt.Log)
	case evt.CurrentItem != "":
		fmt.Fprintf(&b, " %s", evt.CurrentItem)
	}
	if evt.Total > 0 {
		fmt.Fprintf(&b, " (%d/%d)", evt.Processed, evt.Total)
	}
	if evt.Stats != nil && evt.IsTerminal() {
		fmt.Fprintf(&b, " chunks=%d words=%d", evt.Stats.ChunksStored, evt.Stats.WordsProcessed)
	}
	return paint(b.String(), jobStatusKind(evt.Status), colorize)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
