package config

import "strings"

// Config 是复盘服务的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Database DatabaseConfig `toml:"database"`
	Backtest BacktestConfig `toml:"backtest"`
	Market   MarketConfig   `toml:"market"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DatabaseConfig 的两个库各司其职：Path 存分析记录/评估结果/汇总，
// BarsPath 单独存日线，避免批量补数时争抢业务库的写锁。
type DatabaseConfig struct {
	Path     string `toml:"path"`
	BarsPath string `toml:"bars_path"`
}

type BacktestConfig struct {
	WindowDays             int     `toml:"window_days"`
	NeutralBandPct         float64 `toml:"neutral_band_pct"`
	EngineVersion          string  `toml:"engine_version"`
	MinAgeDays             int     `toml:"min_age_days"`
	DefaultLimit           int     `toml:"default_limit"`
	MaxConcurrent          int     `toml:"max_concurrent"`
	BackfillTimeoutSeconds int     `toml:"backfill_timeout_seconds"`
	Schedule               string  `toml:"schedule"` // 如 "6h"、"1d"；空则不启动周期任务
}

type MarketConfig struct {
	Eastmoney EastmoneyConfig `toml:"eastmoney"`
	Binance   BinanceConfig   `toml:"binance"`
}

type EastmoneyConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type BinanceConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
