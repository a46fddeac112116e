package interfaces

import "time"

// EodSummarizer rolls a day's signal log into a CSV report.
type EodSummarizer interface {
	// SummarizeDay aggregates the signal log for the given UTC date and
	// writes a CSV report. Returns the report path, or "" when the day had
	// no signals.
	SummarizeDay(t time.Time) (csvPath string, err error)

	// SummarizeToday summarizes the current UTC date.
	SummarizeToday() (csvPath string, err error)

	// ShouldRunNow reports whether yesterday's summary is still missing
	// after the UTC day rolled over, and where it would be written.
	ShouldRunNow() (shouldRun bool, csvPath string)
}
