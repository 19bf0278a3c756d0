package monitor

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/projecthub/internal/state"
)

// FormatLatency formats a switch duration as "X.Xms" or "X.Xs"
func FormatLatency(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// FormatPercentage formats a 0-100 value as "X.X%"
func FormatPercentage(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// FormatClock formats a countdown as "MM:SS"
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// FormatTestRun summarizes a test run as "runner: N passed, N failed"
func FormatTestRun(run state.TestRun) string {
	s := fmt.Sprintf("%s: %d passed, %d failed", run.Runner, run.Passed, run.Failed)
	if run.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", run.Skipped)
	}
	return s
}

// FormatShortID trims a project or switch id for display.
func FormatShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
