// Package alerts turns a run outcome into the short status lines printed
// after the tables: what went wrong and what to do next.
package alerts

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/agentstation/stocksync/pkg/runlog"
)

// Alert represents a status notification.
type Alert struct {
	Level   Level
	Message string
	Details []string
}

// New creates a new alert with the given level and message.
func New(level Level, message string) *Alert {
	return &Alert{Level: level, Message: message}
}

// WithDetails adds indented detail lines to the alert.
func (a *Alert) WithDetails(details ...string) *Alert {
	a.Details = append(a.Details, details...)
	return a
}

// String returns the alert headline with its icon.
func (a *Alert) String() string {
	return a.Level.Icon() + " " + a.Message
}

// FromLog derives the alerts for a finished run. The first alert is the
// overall outcome; the rest are follow-ups, most severe first.
func FromLog(log *runlog.Log) []*Alert {
	s := log.Summary
	var out []*Alert

	switch log.ExitStatus() {
	case runlog.Failure:
		a := New(LevelError, fmt.Sprintf("Run failed with %d error(s)", s.Errors))
		for _, e := range log.Errors {
			a.WithDetails(e.Type + ": " + e.Message)
		}
		out = append(out, a)
	case runlog.SuccessWithWarnings:
		out = append(out, New(LevelWarning, "Run finished with items to review"))
	default:
		out = append(out, New(LevelSuccess, "Run finished cleanly"))
	}

	if s.Flagged > 0 {
		out = append(out, New(LevelWarning, fmt.Sprintf("%d change(s) held back by the safety checks", s.Flagged)).
			WithDetails("Verify them with the supplier, then re-run with --force to apply"))
	}
	if s.Duplicates > 0 {
		out = append(out, New(LevelWarning, fmt.Sprintf("%d identifier(s) shared by several catalog variants", s.Duplicates)).
			WithDetails("Those variants were not updated; make the barcodes or SKUs unique"))
	}
	if s.NotFound > 0 {
		out = append(out, New(LevelInfo, fmt.Sprintf("%d supplier record(s) not found in the catalog", s.NotFound)))
	}
	if log.DryRun && s.DryRunSkipped > 0 {
		out = append(out, New(LevelInfo, fmt.Sprintf("Dry run: %d change(s) were not written", s.DryRunSkipped)))
	}
	return out
}

// Writer prints alerts, colored when the destination is a terminal.
type Writer struct {
	w     io.Writer
	color bool
}

// NewWriter creates a Writer. Color is used only when noColor is false and
// w is a terminal.
func NewWriter(w io.Writer, noColor bool) *Writer {
	color := false
	if f, ok := w.(*os.File); ok && !noColor {
		color = isatty.IsTerminal(f.Fd())
	}
	return &Writer{w: w, color: color}
}

// Write prints the alerts in order.
func (aw *Writer) Write(alerts ...*Alert) error {
	for _, a := range alerts {
		line := a.String()
		if aw.color {
			line = a.Level.Color() + line + resetColor
		}
		if _, err := fmt.Fprintln(aw.w, line); err != nil {
			return err
		}
		for _, d := range a.Details {
			if _, err := fmt.Fprintf(aw.w, "   %s\n", d); err != nil {
				return err
			}
		}
	}
	return nil
}
