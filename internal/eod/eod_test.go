package eod

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSummarizeDayAggregatesSignals(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lines := []string{
		`{"Time":"2026-03-10 00:15:00","SignalID":"a","Symbol":"BTC-USDT","Timeframe":"15m","Action":"hold","Reason":"no_crossover","Confidence":0}`,
		`{"Time":"2026-03-10 04:30:00","SignalID":"b","Symbol":"BTC-USDT","Timeframe":"15m","Action":"long","Reason":"breakout","Confidence":0.8}`,
		`{"Time":"2026-03-10 09:45:00","SignalID":"c","Symbol":"BTC-USDT","Timeframe":"15m","Action":"long","Reason":"breakout","Confidence":0.9}`,
		"not json",
	}
	path := filepath.Join(dir, "2026-03-10.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := SummarizeDay(day)
	if err != nil {
		t.Fatalf("SummarizeDay: %v", err)
	}
	if out == "" {
		t.Fatal("expected a csv path")
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	csv := string(b)
	if !strings.Contains(csv, "BTC-USDT,long,2,0.8500") {
		t.Errorf("missing aggregated long row:\n%s", csv)
	}
	if !strings.Contains(csv, "BTC-USDT,hold,1,") {
		t.Errorf("missing hold row:\n%s", csv)
	}
	if !strings.Contains(csv, "TOTAL,,3,") {
		t.Errorf("missing total row:\n%s", csv)
	}
}

func TestSummarizeDayNoLogIsNoop(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())
	out, err := SummarizeDay(time.Now().UTC())
	if err != nil {
		t.Fatalf("SummarizeDay: %v", err)
	}
	if out != "" {
		t.Errorf("expected no output for a missing log, got %s", out)
	}
}

func TestShouldRunNowOncePerDay(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	logPath := filepath.Join(dir, yesterday.Format("2006-01-02")+".txt")
	if err := os.WriteFile(logPath, []byte(`{"Symbol":"BTC-USDT","Action":"long","Confidence":0.8,"Time":"x"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	run, _ := ShouldRunNow()
	if !run {
		t.Fatal("should run when yesterday's summary is missing")
	}
	if _, err := SummarizeDay(yesterday); err != nil {
		t.Fatalf("SummarizeDay: %v", err)
	}
	run, _ = ShouldRunNow()
	if run {
		t.Error("should not run again once the summary exists")
	}
}
