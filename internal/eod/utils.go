package eod

import (
	"os"
	"path/filepath"
	"time"
)

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func signalFile(t time.Time) string {
	dateStr := t.UTC().Format("2006-01-02")
	return filepath.Join(logDir(), dateStr+".txt")
}

func summaryCSVPath(t time.Time) string {
	dateStr := t.UTC().Format("2006-01-02")
	return filepath.Join(logDir(), "eod", dateStr+".csv")
}
