package eodobs

import (
	"context"
	"time"

	"llm-crypto-trader/internal/interfaces"
	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/trace"
)

// observableSummarizer wraps an EodSummarizer with observability (logging & tracing)
type observableSummarizer struct {
	summarizer interfaces.EodSummarizer
}

// Compile-time interface check
var _ interfaces.EodSummarizer = (*observableSummarizer)(nil)

// Wrap wraps a summarizer with observability middleware
func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableSummarizer{
		summarizer: summarizer,
	}
}

func (o *observableSummarizer) SummarizeDay(t time.Time) (string, error) {
	ctx, span := trace.StartSpan(context.Background(), "eod.SummarizeDay")
	defer span.End()

	path, err := o.summarizer.SummarizeDay(t)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to summarize day", err, "date", t.UTC().Format("2006-01-02"))
		return path, err
	}
	if path != "" {
		logger.Info(ctx, "Daily signal summary written", "path", path)
	}
	return path, nil
}

func (o *observableSummarizer) SummarizeToday() (string, error) {
	return o.SummarizeDay(time.Now().UTC())
}

func (o *observableSummarizer) ShouldRunNow() (bool, string) {
	return o.summarizer.ShouldRunNow()
}
