package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"llm-crypto-trader/internal/types"
)

var mu sync.Mutex

// SignalEntry is one JSONL row per signal the dispatcher emitted.
type SignalEntry struct {
	Time, SignalID, Symbol, Timeframe, Action, Reason string
	Confidence                                        float64
	CandleTs                                          int64
	Extra                                             map[string]any `json:"Extra,omitempty"`
}

// ActionEntry is one JSONL row per decider verdict, written under actions/.
type ActionEntry struct {
	Time, SignalID, Symbol, Proposed, Action string
	Err                                      string         `json:"Err,omitempty"`
	Indicators                               map[string]float64 `json:"Indicators,omitempty"`
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}
func dailyFilepath(t time.Time) string {
	d := t.UTC().Format("2006-01-02")
	return filepath.Join(logDir(), d+".txt")
}
func actionsFilepath(t time.Time) string {
	d := t.UTC().Format("2006-01-02")
	return filepath.Join(logDir(), "actions", d+".txt")
}

func appendJSONL(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, _ := json.Marshal(v)
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// AppendSignal records an emitted signal in the daily file.
func AppendSignal(sig types.Signal) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	return appendJSONL(dailyFilepath(now), SignalEntry{
		Time:       now.Format("2006-01-02 15:04:05"),
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Timeframe:  sig.Timeframe,
		Action:     string(sig.Action),
		Reason:     sig.Reason,
		Confidence: sig.Confidence,
		CandleTs:   sig.Ts,
	})
}

// AppendAction records the decider's verdict for a dispatched signal.
func AppendAction(sig types.Signal, final types.Action, decideErr error, indicators map[string]float64) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	e := ActionEntry{
		Time:       now.Format("2006-01-02 15:04:05"),
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Proposed:   string(sig.Action),
		Action:     string(final),
		Indicators: indicators,
	}
	if decideErr != nil {
		e.Err = decideErr.Error()
	}
	return appendJSONL(actionsFilepath(now), e)
}

// CompressOlder gzips daily files older than retentionDays and removes the
// originals. Zero or negative retention disables compression.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	root := logDir()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := os.Stat(p)
		if er != nil {
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// if already gz exists, remove original .txt
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}

		in, e3 := os.Open(p)
		if e3 != nil {
			return nil
		}
		defer in.Close()

		out, e4 := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if e4 != nil {
			return nil
		}
		gw := gzip.NewWriter(out)
		if _, e5 := io.Copy(gw, in); e5 == nil {
			_ = gw.Close()
			_ = out.Close()
			_ = os.Remove(p)
		} else {
			_ = gw.Close()
			_ = out.Close()
		}
		return nil
	})
}
