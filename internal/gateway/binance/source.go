package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fupan/internal/market"

	gobinance "github.com/adshao/go-binance/v2"
)

const maxDailyLimit = 1000

// Config 描述币安现货日线源。
type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}

// Source 基于 go-binance SDK 拉取加密标的（如 BTCUSDT）的日线。
type Source struct {
	client *gobinance.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := gobinance.NewClient("", "")
	if base := strings.TrimSpace(final.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{client: client}
}

func (s *Source) Name() string { return "binance" }

func (s *Source) FetchDaily(ctx context.Context, code, from string, limit int) ([]market.Bar, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("binance: symbol 不能为空")
	}
	if limit <= 0 || limit > maxDailyLimit {
		limit = maxDailyLimit
	}
	svc := s.client.NewKlinesService().Symbol(code).Interval("1d").Limit(limit)
	if from != "" {
		t, err := time.ParseInLocation(market.DateLayout, from, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("binance: from 日期非法: %w", err)
		}
		svc = svc.StartTime(t.UnixMilli())
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance 拉取失败: %w", err)
	}
	bars := make([]market.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, market.Bar{
			Code:  code,
			Date:  time.UnixMilli(k.OpenTime).UTC().Format(market.DateLayout),
			Open:  parseFloat(k.Open),
			High:  parseFloat(k.High),
			Low:   parseFloat(k.Low),
			Close: parseFloat(k.Close),
		})
	}
	return bars, nil
}

func parseFloat(raw string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	return &v
}
