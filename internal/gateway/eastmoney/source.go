package eastmoney

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fupan/internal/market"
	"fupan/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://push2his.eastmoney.com"

// Config 描述东方财富日线源。
type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}

// Source 通过东方财富公开行情接口拉取 A 股前复权日线。
type Source struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{
		cfg:    final,
		client: &http.Client{Timeout: final.HTTPTimeout},
	}
}

func (s *Source) Name() string { return "eastmoney" }

// FetchDaily 拉取 from 起的日线。接口单次最多返回数千根，limit 只做软约束。
func (s *Source) FetchDaily(ctx context.Context, code, from string, limit int) ([]market.Bar, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("eastmoney: code 不能为空")
	}
	if limit <= 0 {
		limit = 500
	}
	beg := strings.ReplaceAll(from, "-", "")
	if beg == "" {
		beg = "0"
	}
	q := url.Values{}
	q.Set("secid", symbol.EastmoneySecID(code))
	q.Set("klt", "101") // 日线
	q.Set("fqt", "1")   // 前复权
	q.Set("beg", beg)
	q.Set("end", "20500101")
	q.Set("lmt", strconv.Itoa(limit))
	q.Set("fields1", "f1,f2,f3")
	q.Set("fields2", "f51,f52,f53,f54,f55")
	endpoint := s.cfg.BaseURL + "/api/qt/stock/kline/get?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eastmoney 请求失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	return parseKlines(code, string(body))
}

// parseKlines 解析 data.klines，每项形如 "2024-03-04,10.00,10.20,10.30,9.90"
// （日期,开,收,高,低）。脏行跳过不报错。
func parseKlines(code, body string) ([]market.Bar, error) {
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("eastmoney 响应不是合法 JSON")
	}
	klines := gjson.Get(body, "data.klines")
	if !klines.Exists() {
		return nil, nil
	}
	var bars []market.Bar
	klines.ForEach(func(_, line gjson.Result) bool {
		fields := strings.Split(line.String(), ",")
		if len(fields) < 5 {
			return true
		}
		bar := market.Bar{
			Code:  code,
			Date:  strings.TrimSpace(fields[0]),
			Open:  parsePrice(fields[1]),
			Close: parsePrice(fields[2]),
			High:  parsePrice(fields[3]),
			Low:   parsePrice(fields[4]),
		}
		if bar.Date != "" {
			bars = append(bars, bar)
		}
		return true
	})
	return bars, nil
}

func parsePrice(raw string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}
