package backtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"fupan/internal/eval"
	"fupan/internal/gateway/notifier"
	"fupan/internal/logger"
	"fupan/internal/market"
	"fupan/internal/pkg/symbol"
	"fupan/internal/store"
	"fupan/internal/store/gormstore"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ServiceConfig 配置回测编排服务。
type ServiceConfig struct {
	Store           *gormstore.GormStore
	Bars            *store.BarStore
	Sources         map[string]market.Source
	Eval            eval.Config
	MinAgeDays      int
	DefaultLimit    int
	MaxConcurrent   int
	BackfillTimeout time.Duration
	Notifier        notifier.Notifier
}

// Service 是回测编排器：选候选、定锚点、补数、逐条评估、批量落库、重算汇总。
type Service struct {
	store           *gormstore.GormStore
	bars            *store.BarStore
	sources         map[string]market.Source
	evalCfg         eval.Config
	minAgeDays      int
	defaultLimit    int
	maxConcurrent   int
	backfillTimeout time.Duration
	notify          notifier.Notifier

	sf singleflight.Group
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("backtest: store 不能为空")
	}
	if cfg.Bars == nil {
		return nil, fmt.Errorf("backtest: bar store 不能为空")
	}
	if cfg.Eval.WindowDays <= 0 {
		return nil, fmt.Errorf("backtest: 默认评估窗口必须为正，收到 %d", cfg.Eval.WindowDays)
	}
	if strings.TrimSpace(cfg.Eval.EngineVersion) == "" {
		return nil, fmt.Errorf("backtest: engine version 不能为空")
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 200
	}
	backfillTimeout := cfg.BackfillTimeout
	if backfillTimeout <= 0 {
		backfillTimeout = 15 * time.Second
	}
	sources := make(map[string]market.Source, len(cfg.Sources))
	for k, v := range cfg.Sources {
		if v != nil {
			sources[strings.ToLower(k)] = v
		}
	}
	return &Service{
		store:           cfg.Store,
		bars:            cfg.Bars,
		sources:         sources,
		evalCfg:         cfg.Eval,
		minAgeDays:      cfg.MinAgeDays,
		defaultLimit:    defaultLimit,
		maxConcurrent:   maxConcurrent,
		backfillTimeout: backfillTimeout,
		notify:          cfg.Notifier,
	}, nil
}

// RunParams 是一次回测运行的入参；零值字段回落到服务默认值。
type RunParams struct {
	Code       string `json:"code"`
	Force      bool   `json:"force"`
	WindowDays int    `json:"eval_window_days"`
	MinAgeDays int    `json:"min_age_days"`
	Limit      int    `json:"limit"`
}

// RunReport 是一次回测运行的统计结论。
type RunReport struct {
	RunID        string    `json:"run_id"`
	Code         string    `json:"code,omitempty"`
	WindowDays   int       `json:"eval_window_days"`
	Force        bool      `json:"force"`
	Processed    int       `json:"processed"`
	Saved        int       `json:"saved"`
	Completed    int       `json:"completed"`
	Insufficient int       `json:"insufficient"`
	Errors       int       `json:"errors"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Run 执行一次回测。配置性错误（非法窗口等）在处理任何候选之前拒绝；
// 单条候选的任何异常只产生 error 行，绝不中断整批。
func (s *Service) Run(ctx context.Context, p RunParams) (RunReport, error) {
	cfg := s.evalCfg
	if p.WindowDays < 0 {
		return RunReport{}, fmt.Errorf("backtest: eval window days 必须为正，收到 %d", p.WindowDays)
	}
	if p.WindowDays > 0 {
		cfg.WindowDays = p.WindowDays
	}
	minAge := p.MinAgeDays
	if minAge <= 0 {
		minAge = s.minAgeDays
	}
	limit := p.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	report := RunReport{
		RunID:      uuid.NewString(),
		Code:       strings.TrimSpace(p.Code),
		WindowDays: cfg.WindowDays,
		Force:      p.Force,
		StartedAt:  time.Now(),
	}

	candidates, err := s.store.ListCandidates(ctx, gormstore.CandidateQuery{
		Code:          report.Code,
		MinAgeDays:    minAge,
		Limit:         limit,
		WindowDays:    cfg.WindowDays,
		EngineVersion: cfg.EngineVersion,
		Force:         p.Force,
	})
	if err != nil {
		return report, err
	}
	report.Processed = len(candidates)
	logger.Infof("[backtest] 运行 %s 启动：候选=%d window=%d force=%v", report.RunID, len(candidates), cfg.WindowDays, p.Force)

	var (
		mu        sync.Mutex
		results   []eval.Result
		attempted sync.Map // 每个 code 每次运行只补数一次
	)
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(s.maxConcurrent)
	for _, cand := range candidates {
		cand := cand
		g.Go(func() error {
			res, ok := s.evaluateCandidate(gctx, cand, cfg, &attempted)
			if !ok {
				return nil
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // worker 从不返回错误，失败都转成了 error 行

	for _, r := range results {
		switch r.Status {
		case eval.StatusCompleted:
			report.Completed++
		case eval.StatusInsufficient:
			report.Insufficient++
		case eval.StatusError:
			report.Errors++
		}
	}

	if len(results) > 0 {
		saved, err := s.store.SaveResultsBatch(ctx, results, p.Force)
		if err != nil {
			return report, fmt.Errorf("backtest: 结果落库失败: %w", err)
		}
		report.Saved = saved
		if err := s.recomputeSummaries(ctx, results, cfg); err != nil {
			return report, err
		}
	}

	report.FinishedAt = time.Now()
	logger.Infof("[backtest] 运行 %s 完成：processed=%d saved=%d completed=%d insufficient=%d errors=%d",
		report.RunID, report.Processed, report.Saved, report.Completed, report.Insufficient, report.Errors)
	s.sendReport(report)
	return report, nil
}

// evaluateCandidate 处理单条候选。返回 false 表示锚点日无法解析、整条跳过。
func (s *Service) evaluateCandidate(ctx context.Context, cand gormstore.AnalysisRecord, cfg eval.Config, attempted *sync.Map) (res eval.Result, ok bool) {
	in := eval.Input{
		RecordID:   cand.ID,
		Code:       cand.Code,
		Advice:     cand.OperationAdvice,
		StopLoss:   cand.StopLoss,
		TakeProfit: cand.TakeProfit,
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[backtest] 记录 %d (%s) 评估异常: %v", cand.ID, cand.Code, r)
			res = eval.ErrorResult(in, cfg, fmt.Sprintf("panic: %v", r))
			ok = true
		}
	}()

	anchor := resolveAnchorDate(cand)
	if anchor == "" {
		logger.Warnf("[backtest] 记录 %d (%s) 无法解析锚点日，跳过", cand.ID, cand.Code)
		return eval.Result{}, false
	}
	in.AnchorDate = anchor

	anchorBar, err := s.bars.BarAt(ctx, cand.Code, anchor)
	if err != nil {
		logger.Errorf("[backtest] 记录 %d (%s) 读取锚点日线失败: %v", cand.ID, cand.Code, err)
		return eval.ErrorResult(in, cfg, err.Error()), true
	}
	if anchorBar == nil || anchorBar.Close == nil {
		s.backfillOnce(ctx, cand.Code, anchor, cfg.WindowDays, attempted)
		anchorBar, err = s.bars.BarAt(ctx, cand.Code, anchor)
		if err != nil {
			return eval.ErrorResult(in, cfg, err.Error()), true
		}
		if anchorBar == nil || anchorBar.Close == nil {
			return eval.InsufficientResult(in, cfg), true
		}
	}
	in.StartPrice = anchorBar.Close

	forward, err := s.bars.ForwardBars(ctx, cand.Code, anchor, cfg.WindowDays)
	if err != nil {
		return eval.ErrorResult(in, cfg, err.Error()), true
	}
	if len(forward) < cfg.WindowDays {
		s.backfillOnce(ctx, cand.Code, anchor, cfg.WindowDays, attempted)
		forward, err = s.bars.ForwardBars(ctx, cand.Code, anchor, cfg.WindowDays)
		if err != nil {
			return eval.ErrorResult(in, cfg, err.Error()), true
		}
	}
	in.Bars = toDailyBars(forward)

	return eval.EvaluateSingle(in, cfg), true
}

// backfillOnce 对同一 code 每次运行至多发起一次补数；并发 worker 间
// 用 singleflight 合并在途请求。失败只降级为数据不足，不上抛。
func (s *Service) backfillOnce(ctx context.Context, code, anchor string, windowDays int, attempted *sync.Map) {
	if _, loaded := attempted.LoadOrStore(code, struct{}{}); loaded {
		return
	}
	_, _, _ = s.sf.Do(code, func() (any, error) {
		src := s.sourceFor(code)
		if src == nil {
			logger.Debugf("[backtest] %s 没有匹配的行情源，放弃补数", code)
			return nil, nil
		}
		bctx, cancel := context.WithTimeout(ctx, s.backfillTimeout)
		defer cancel()
		// 多拉一段余量，窗口后段的节假日缺口一次补齐。
		limit := windowDays*2 + 30
		bars, err := src.FetchDaily(bctx, code, anchor, limit)
		if err != nil {
			logger.Warnf("[backtest] %s 经 %s 补数失败（按数据不足处理）: %v", code, src.Name(), err)
			return nil, nil
		}
		inserted, err := s.bars.InsertBars(bctx, bars)
		if err != nil {
			logger.Warnf("[backtest] %s 补数写入失败: %v", code, err)
			return nil, nil
		}
		logger.Infof("[backtest] %s 经 %s 补入 %d 根日线", code, src.Name(), inserted)
		return nil, nil
	})
}

// sourceFor 按代码形态挑选行情源：A 股走东财，其余走币安。
func (s *Service) sourceFor(code string) market.Source {
	if symbol.Classify(code) == symbol.KindAShare {
		return s.sources["eastmoney"]
	}
	return s.sources["binance"]
}

// recomputeSummaries 在所有结果写入之后，对 overall 与本次触达的每个
// code 整体重算汇总。未触达的 code 不动，避免无谓的全表扫描。
func (s *Service) recomputeSummaries(ctx context.Context, results []eval.Result, cfg eval.Config) error {
	codes := make(map[string]struct{})
	for _, r := range results {
		if r.Code != "" {
			codes[r.Code] = struct{}{}
		}
	}

	rows, err := s.store.ResultsForSummary(ctx, "", cfg.WindowDays, cfg.EngineVersion)
	if err != nil {
		return err
	}
	overall := eval.ComputeSummary(rows, eval.ScopeOverall, eval.OverallCode, cfg)
	if err := s.store.UpsertSummary(ctx, overall); err != nil {
		return err
	}

	for code := range codes {
		rows, err := s.store.ResultsForSummary(ctx, code, cfg.WindowDays, cfg.EngineVersion)
		if err != nil {
			return err
		}
		summary := eval.ComputeSummary(rows, eval.ScopeStock, code, cfg)
		if err := s.store.UpsertSummary(ctx, summary); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) sendReport(report RunReport) {
	if s.notify == nil {
		return
	}
	msg := notifier.RunReportMessage{
		Title: "回测完成",
		RunID: report.RunID,
		Stats: []notifier.ReportStat{
			{Label: "窗口", Value: fmt.Sprintf("%d 日", report.WindowDays)},
			{Label: "标的", Value: report.Code},
			{Label: "处理", Value: strconv.Itoa(report.Processed)},
			{Label: "入库", Value: strconv.Itoa(report.Saved)},
			{Label: "完成", Value: strconv.Itoa(report.Completed)},
			{Label: "数据不足", Value: strconv.Itoa(report.Insufficient)},
			{Label: "错误", Value: strconv.Itoa(report.Errors)},
		},
		FinishedAt: report.FinishedAt,
	}
	if report.Force {
		msg.Footer = "force: 已覆盖既有结果"
	}
	if err := s.notify.SendText(msg.RenderMarkdown()); err != nil {
		logger.Warnf("[backtest] 运行报告推送失败: %v", err)
	}
}

func toDailyBars(bars []market.Bar) []eval.DailyBar {
	out := make([]eval.DailyBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, eval.Bar{
			Date:  b.Date,
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		})
	}
	return out
}

// EvalConfig 暴露服务当前的引擎配置（HTTP 层查询汇总时需要默认窗口与版本）。
func (s *Service) EvalConfig() eval.Config { return s.evalCfg }
