package app

import (
	"context"
	"fmt"
	"time"

	"fupan/internal/backtest"
	fpcfg "fupan/internal/config"
	"fupan/internal/eval"
	"fupan/internal/gateway/binance"
	"fupan/internal/gateway/eastmoney"
	"fupan/internal/gateway/notifier"
	"fupan/internal/logger"
	"fupan/internal/market"
	"fupan/internal/store"
	"fupan/internal/store/gormstore"
	httpapi "fupan/internal/transport/http"
)

type AppBuilder struct {
	cfg *fpcfg.Config

	sourcesFn  func(fpcfg.MarketConfig) map[string]market.Source
	notifierFn func(fpcfg.NotifyConfig) notifier.Notifier

	storeOverride *gormstore.GormStore
	barsOverride  *store.BarStore
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *fpcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		sourcesFn:  buildMarketSources,
		notifierFn: buildNotifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildMarketSources(cfg fpcfg.MarketConfig) map[string]market.Source {
	em := eastmoney.New(eastmoney.Config{
		BaseURL:     cfg.Eastmoney.BaseURL,
		HTTPTimeout: time.Duration(cfg.Eastmoney.TimeoutSeconds) * time.Second,
	})
	bn := binance.New(binance.Config{
		RESTBaseURL: cfg.Binance.RESTBaseURL,
		HTTPTimeout: time.Duration(cfg.Binance.TimeoutSeconds) * time.Second,
	})
	return map[string]market.Source{
		em.Name(): em,
		bn.Name(): bn,
	}
}

func buildNotifier(cfg fpcfg.NotifyConfig) notifier.Notifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	db := b.storeOverride
	if db == nil {
		var err error
		db, err = gormstore.NewGormStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("初始化业务库失败: %w", err)
		}
	}
	bars := b.barsOverride
	if bars == nil {
		var err error
		bars, err = store.NewBarStore(cfg.Database.BarsPath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("初始化日线库失败: %w", err)
		}
	}

	svc, err := backtest.NewService(backtest.ServiceConfig{
		Store:   db,
		Bars:    bars,
		Sources: b.sourcesFn(cfg.Market),
		Eval: eval.Config{
			WindowDays:     cfg.Backtest.WindowDays,
			NeutralBandPct: cfg.Backtest.NeutralBandPct,
			EngineVersion:  cfg.Backtest.EngineVersion,
		},
		MinAgeDays:      cfg.Backtest.MinAgeDays,
		DefaultLimit:    cfg.Backtest.DefaultLimit,
		MaxConcurrent:   cfg.Backtest.MaxConcurrent,
		BackfillTimeout: time.Duration(cfg.Backtest.BackfillTimeoutSeconds) * time.Second,
		Notifier:        b.notifierFn(cfg.Notify),
	})
	if err != nil {
		bars.Close()
		db.Close()
		return nil, fmt.Errorf("初始化回测服务失败: %w", err)
	}

	server, err := httpapi.NewServer(httpapi.Config{
		Addr:    cfg.App.HTTPAddr,
		Service: svc,
		Store:   db,
		Bars:    bars,
	})
	if err != nil {
		bars.Close()
		db.Close()
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}

	logger.Infof("✓ 依赖初始化完成 db=%s bars=%s addr=%s", cfg.Database.Path, cfg.Database.BarsPath, cfg.App.HTTPAddr)
	return &App{
		cfg:    cfg,
		db:     db,
		bars:   bars,
		svc:    svc,
		server: server,
	}, nil
}
