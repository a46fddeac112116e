package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"llm-crypto-trader/internal/store"
	"llm-crypto-trader/internal/trace"
	"llm-crypto-trader/internal/types"
)

// schema is the response contract sent with every prompt. The model must
// answer with exactly this JSON shape.
const schema = `{"action":"long|short|close|hold|stop","confidence":0.0,"reason":"string"}`

const defaultSystem = "You are a disciplined crypto trading reviewer. You receive a proposed signal with indicator state and either confirm it, override it, or halt trading."

// OpenAIDecider reviews signals through an OpenAI-compatible chat-completions
// endpoint. Any transport or parse failure degrades to hold.
type OpenAIDecider struct {
	cfg    *store.Config
	client *http.Client
}

func NewOpenAIDecider(cfg *store.Config) *OpenAIDecider {
	return &OpenAIDecider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (d *OpenAIDecider) Decide(ctx context.Context, sig types.Signal, sctx *types.StrategyContext) (types.Action, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return types.ActionHold, errors.New("OPENAI_API_KEY missing")
	}

	state := map[string]any{"signal": sig}
	if sctx != nil {
		state["trigger"] = string(sctx.Trigger)
		snaps := make(map[string]any, len(sctx.Snapshots))
		for tf, snap := range sctx.Snapshots {
			snaps[string(tf)] = snapshotState(snap)
		}
		state["snapshots"] = snaps
	}
	sb, _ := json.Marshal(state)
	prompt := fmt.Sprintf("You will receive state as JSON. Respond ONLY with compact JSON matching the schema.\nSchema:%s\nState:%s", schema, string(sb))

	system := d.cfg.LLM.System
	if system == "" {
		system = defaultSystem
	}
	body := map[string]any{
		"model":       d.cfg.LLM.Model,
		"messages":    []map[string]string{{"role": "system", "content": system}, {"role": "user", "content": prompt}},
		"temperature": d.cfg.LLM.Temperature,
		"max_tokens":  d.cfg.LLM.MaxTokens,
	}
	bb, _ := json.Marshal(body)

	url := strings.TrimRight(d.cfg.LLM.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bb))
	if err != nil {
		return types.ActionHold, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return types.ActionHold, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return types.ActionHold, fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return types.ActionHold, err
	}
	if len(r.Choices) == 0 {
		return types.ActionHold, errors.New("no choices")
	}

	out := strings.TrimSpace(r.Choices[0].Message.Content)

	var verdict struct {
		Action     string  `json:"action"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(out), &verdict); err != nil {
		// Malformed model output is not an error worth crashing a cycle over.
		return types.ActionHold, nil
	}

	action := types.Action(strings.ToLower(strings.TrimSpace(verdict.Action)))
	if !action.Valid() {
		return types.ActionHold, nil
	}
	return action, nil
}

// snapshotState flattens a snapshot for the prompt, dropping NaN warm-up
// values that JSON cannot carry.
func snapshotState(snap *types.IndicatorSnapshot) map[string]any {
	out := map[string]any{
		"as_of":  snap.AsOf,
		"open":   snap.Open,
		"high":   snap.High,
		"low":    snap.Low,
		"close":  snap.Close,
		"volume": snap.Volume,
	}
	for name := range snap.Values {
		if snap.Defined(name) {
			out[name] = snap.Values[name]
		}
	}
	return out
}
