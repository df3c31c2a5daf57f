package app

import (
	"context"
	"fmt"

	"fupan/internal/backtest"
	fpcfg "fupan/internal/config"
	"fupan/internal/logger"
	"fupan/internal/scheduler"
	"fupan/internal/store"
	"fupan/internal/store/gormstore"
	httpapi "fupan/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务与周期回测。
type App struct {
	cfg    *fpcfg.Config
	db     *gormstore.GormStore
	bars   *store.BarStore
	svc    *backtest.Service
	server *httpapi.Server
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *fpcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与可选的周期回测，阻塞直到 ctx 取消或出错。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	interval, err := a.cfg.Backtest.ScheduleInterval()
	if err != nil {
		return err
	}
	if interval > 0 {
		sched := scheduler.NewAlignedScheduler(ctx, interval, 0)
		group.Go(func() error {
			sched.Start(func() {
				report, err := a.svc.Run(ctx, backtest.RunParams{})
				if err != nil {
					logger.Errorf("周期回测失败: %v", err)
					return
				}
				logger.Infof("周期回测完成 run_id=%s processed=%d saved=%d", report.RunID, report.Processed, report.Saved)
			})
			return nil
		})
	}

	return group.Wait()
}

// Service 暴露回测服务实例，供测试与回放使用。
func (a *App) Service() *backtest.Service {
	if a == nil {
		return nil
	}
	return a.svc
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.bars != nil {
		a.bars.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
