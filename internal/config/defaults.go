package config

import "strings"

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9982"
	defaultAppLogPath      = "/data/logs/fupan.log"
	defaultDatabasePath    = "/data/db/fupan.db"
	defaultBarsPath        = "/data/db/fupan_bars.db"
	defaultWindowDays      = 5
	defaultNeutralBandPct  = 0.5
	defaultEngineVersion   = "v1"
	defaultMinAgeDays      = 5
	defaultLimit           = 200
	defaultMaxConcurrent   = 4
	defaultBackfillTimeout = 15
	defaultMarketTimeout   = 10
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Database.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Market.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DatabaseConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("database.path", &d.Path, defaultDatabasePath),
		stringFieldDefault("database.bars_path", &d.BarsPath, defaultBarsPath),
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("backtest.window_days", &b.WindowDays, defaultWindowDays),
		floatFieldDefault("backtest.neutral_band_pct", &b.NeutralBandPct, defaultNeutralBandPct),
		stringFieldDefault("backtest.engine_version", &b.EngineVersion, defaultEngineVersion),
		intFieldDefault("backtest.min_age_days", &b.MinAgeDays, defaultMinAgeDays),
		intFieldDefault("backtest.default_limit", &b.DefaultLimit, defaultLimit),
		intFieldDefault("backtest.max_concurrent", &b.MaxConcurrent, defaultMaxConcurrent),
		intFieldDefault("backtest.backfill_timeout_seconds", &b.BackfillTimeoutSeconds, defaultBackfillTimeout),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("market.eastmoney.timeout_seconds", &m.Eastmoney.TimeoutSeconds, defaultMarketTimeout),
		intFieldDefault("market.binance.timeout_seconds", &m.Binance.TimeoutSeconds, defaultMarketTimeout),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target == 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
