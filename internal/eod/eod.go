package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

type signalLine struct {
	Time, SignalID, Symbol, Timeframe, Action, Reason string
	Confidence                                        float64
	CandleTs                                          int64
}

type aggRow struct {
	Symbol        string
	Action        string
	Count         int
	ConfidenceSum float64
	FirstTime     string
	LastTime      string
}

type eodSummarizer struct{}

func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	inPath := signalFile(t)
	if _, err := os.Stat(inPath); err != nil {
		return "", nil
	}
	f, err := os.Open(inPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var sl signalLine
		if err := json.Unmarshal(sc.Bytes(), &sl); err != nil {
			continue
		}
		key := sl.Symbol + "|" + sl.Action
		row := aggs[key]
		if row == nil {
			row = &aggRow{Symbol: sl.Symbol, Action: sl.Action, FirstTime: sl.Time}
			aggs[key] = row
		}
		row.Count++
		row.ConfidenceSum += sl.Confidence
		row.LastTime = sl.Time
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := summaryCSVPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()
	headers := []string{"symbol", "action", "count", "avg_confidence", "first_time", "last_time"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	total := 0
	for _, k := range keys {
		r := aggs[k]
		avg := r.ConfidenceSum / float64(r.Count)
		rec := []string{r.Symbol, r.Action, strconv.Itoa(r.Count), fmt.Sprintf("%.4f", avg), r.FirstTime, r.LastTime}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		total += r.Count
	}
	_ = w.Write([]string{"TOTAL", "", strconv.Itoa(total), "", "", ""})
	return outPath, nil
}

func (s *eodSummarizer) SummarizeToday() (string, error) {
	return s.SummarizeDay(time.Now().UTC())
}

// ShouldRunNow fires once per UTC day for the previous day's log: crypto has
// no market close, so the day boundary is the cutoff.
func (s *eodSummarizer) ShouldRunNow() (bool, string) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	outPath := summaryCSVPath(yesterday)
	if _, err := os.Stat(signalFile(yesterday)); err != nil {
		return false, outPath
	}
	if _, err := os.Stat(outPath); err == nil {
		return false, outPath
	}
	return true, outPath
}
