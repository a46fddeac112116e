package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"llm-crypto-trader/internal/indicator"
)

type Config struct {
	Feed struct {
		URL                 string   `yaml:"url"`
		Symbol              string   `yaml:"symbol"`
		Channels            []string `yaml:"channels"`
		PingIntervalSeconds int      `yaml:"ping_interval_seconds"`
		MaxRetries          int      `yaml:"max_retries"`
	} `yaml:"feed"`
	Strategy struct {
		StrategyType string             `yaml:"strategy_type"`
		Params       map[string]float64 `yaml:"params"`
		HistorySize  int                `yaml:"history_size"`
	} `yaml:"strategy"`
	Indicators indicator.Config `yaml:"indicators"`
	LLM        struct {
		Provider    string  `yaml:"provider"`
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
		System      string  `yaml:"system"`
	} `yaml:"llm"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return errors.New("feed.url cannot be empty")
	}
	if !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
		return fmt.Errorf("feed.url must be a ws:// or wss:// endpoint, got '%s'", c.Feed.URL)
	}
	if c.Feed.Symbol == "" {
		return errors.New("feed.symbol cannot be empty")
	}
	if len(c.Feed.Channels) == 0 {
		return errors.New("feed.channels cannot be empty")
	}
	for _, ch := range c.Feed.Channels {
		if ch != "tickers" && !strings.HasPrefix(ch, "candle") {
			return fmt.Errorf("unknown feed channel '%s': must be tickers or candle{N}", ch)
		}
	}
	switch c.Strategy.StrategyType {
	case "", "hold", "reversal_kdj", "reversal_rsi", "breakout", "trend_macd":
	default:
		return fmt.Errorf("unknown strategy.strategy_type '%s'", c.Strategy.StrategyType)
	}
	if c.LLM.Provider != "" && c.LLM.Provider != "OPENAI" {
		return fmt.Errorf("llm.provider must be 'OPENAI' or empty, got '%s'", c.LLM.Provider)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Feed.URL == "" {
		c.Feed.URL = "wss://ws.okx.com:8443/ws/v5/public"
	}
	if c.Feed.PingIntervalSeconds == 0 {
		c.Feed.PingIntervalSeconds = 25
	}
	if c.Strategy.StrategyType == "" {
		c.Strategy.StrategyType = "hold"
	}
	if c.Strategy.HistorySize == 0 {
		c.Strategy.HistorySize = 100
	}
	c.Indicators.Defaults()
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 512
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
