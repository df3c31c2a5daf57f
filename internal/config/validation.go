package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if b.WindowDays <= 0 {
		return fmt.Errorf("backtest.window_days must be > 0")
	}
	if b.NeutralBandPct < 0 {
		return fmt.Errorf("backtest.neutral_band_pct must be >= 0")
	}
	if strings.TrimSpace(b.EngineVersion) == "" {
		return fmt.Errorf("backtest.engine_version cannot be empty")
	}
	if b.MinAgeDays < 0 {
		return fmt.Errorf("backtest.min_age_days must be >= 0")
	}
	if b.MaxConcurrent <= 0 {
		return fmt.Errorf("backtest.max_concurrent must be > 0")
	}
	if _, err := b.ScheduleInterval(); err != nil {
		return err
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if strings.TrimSpace(d.Path) == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if strings.TrimSpace(d.BarsPath) == "" {
		return fmt.Errorf("database.bars_path cannot be empty")
	}
	if d.Path == d.BarsPath {
		return fmt.Errorf("database.path and database.bars_path must differ")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if !n.Telegram.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Telegram.BotToken) == "" {
		return fmt.Errorf("notify.telegram.bot_token required when enabled")
	}
	if strings.TrimSpace(n.Telegram.ChatID) == "" {
		return fmt.Errorf("notify.telegram.chat_id required when enabled")
	}
	return nil
}
