package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kalambet/jobtrail/internal/jobs"
	"github.com/kalambet/jobtrail/internal/notify"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stderr receives status lines; command results go to the command's
// stdout.
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorCyan, "→ "+msg))
}

// printNotification shows a change outcome the way the dashboard shows a
// toast.
func printNotification(n notify.Notification) {
	switch n.Kind {
	case notify.KindSuccess:
		printSuccess("%s", n.Message)
	case notify.KindError:
		printError("%s", n.Message)
	default:
		printStep("%s", n.Message)
	}
}

func statusColor(s jobs.Status) string {
	switch s {
	case jobs.StatusApplied:
		return colorBlue
	case jobs.StatusInterview:
		return colorYellow
	case jobs.StatusOffer:
		return colorGreen
	case jobs.StatusRejected:
		return colorRed
	}
	return colorCyan
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
