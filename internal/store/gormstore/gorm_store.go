package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fupan/internal/eval"
	"fupan/internal/pkg/symbol"
	storemodel "fupan/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // 注册纯 Go 的 "sqlite" database/sql 驱动，见 SPEC_FULL.md §8
)

type analysisRecordModel = storemodel.AnalysisRecordModel
type evaluationResultModel = storemodel.EvaluationResultModel
type summaryModel = storemodel.SummaryModel

// AnalysisRecord 是候选查询返回的领域视图。
type AnalysisRecord struct {
	ID              int64
	Code            string
	OperationAdvice string
	StopLoss        *float64
	TakeProfit      *float64
	ContextSnapshot string
	CreatedAt       time.Time
}

// CandidateQuery 描述一次候选筛选。
type CandidateQuery struct {
	Code          string
	MinAgeDays    int
	Limit         int
	WindowDays    int
	EngineVersion string
	Force         bool
	Now           time.Time // 零值时取当前时间，测试用
}

// ResultQuery 描述结果列表的分页查询。
type ResultQuery struct {
	Code          string
	WindowDays    int
	EngineVersion string
	Limit         int
	Offset        int
}

// GormStore 用 Gorm + SQLite 承载建议记录、评估结果与汇总三张表。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&analysisRecordModel{},
		&evaluationResultModel{},
		&summaryModel{},
	); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：并发 HTTP 读保留少量并行度，写冲突靠 busy_timeout 吸收。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --------------------- AnalysisRecord -------------------------

func (s *GormStore) InsertAnalysisRecords(ctx context.Context, recs []AnalysisRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	if len(recs) == 0 {
		return nil
	}
	models := make([]analysisRecordModel, 0, len(recs))
	for _, rec := range recs {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		models = append(models, analysisRecordModel{
			ID:              rec.ID,
			Code:            symbol.Normalize(rec.Code),
			OperationAdvice: rec.OperationAdvice,
			StopLoss:        rec.StopLoss,
			TakeProfit:      rec.TakeProfit,
			ContextSnapshot: rec.ContextSnapshot,
			CreatedAtUnix:   rec.CreatedAt.Unix(),
		})
	}
	return s.db.WithContext(ctx).Create(&models).Error
}

// ListCandidates 返回满足年龄门槛的待评估建议，新记录优先。
// 非 force 时用 NOT EXISTS 排除已有同 (window, version) 结果的记录，
// 这正是非 force 重跑幂等的来源。
func (s *GormStore) ListCandidates(ctx context.Context, q CandidateQuery) ([]AnalysisRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.AddDate(0, 0, -q.MinAgeDays).Unix()
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	query := s.db.WithContext(ctx).Model(&analysisRecordModel{}).
		Where("created_at <= ?", cutoff)
	if code := strings.TrimSpace(q.Code); code != "" {
		query = query.Where("code = ?", code)
	}
	if !q.Force {
		query = query.Where(
			"NOT EXISTS (SELECT 1 FROM evaluation_results er WHERE er.analysis_record_id = analysis_records.id AND er.eval_window_days = ? AND er.engine_version = ?)",
			q.WindowDays, q.EngineVersion,
		)
	}
	var models []analysisRecordModel
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]AnalysisRecord, 0, len(models))
	for _, m := range models {
		out = append(out, analysisRecordModelToRecord(m))
	}
	return out, nil
}

func analysisRecordModelToRecord(m analysisRecordModel) AnalysisRecord {
	return AnalysisRecord{
		ID:              m.ID,
		Code:            m.Code,
		OperationAdvice: m.OperationAdvice,
		StopLoss:        m.StopLoss,
		TakeProfit:      m.TakeProfit,
		ContextSnapshot: m.ContextSnapshot,
		CreatedAt:       time.Unix(m.CreatedAtUnix, 0),
	}
}

// --------------------- EvaluationResult -------------------------

// SaveResultsBatch 将一次回测的全部结果行一次性落库。
// replaceExisting 时在同一事务里先删同键旧行再插入，部分失败不会留下新旧混杂。
// 非 replace 场景撞唯一键说明调用方不幂等，错误原样上抛。
func (s *GormStore) SaveResultsBatch(ctx context.Context, results []eval.Result, replaceExisting bool) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store 未初始化")
	}
	if len(results) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	models := make([]evaluationResultModel, 0, len(results))
	for _, r := range results {
		m := resultToModel(r)
		m.CreatedAtUnix = now
		models = append(models, m)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replaceExisting {
			for _, m := range models {
				if err := tx.
					Where("analysis_record_id = ? AND eval_window_days = ? AND engine_version = ?",
						m.AnalysisRecordID, m.WindowDays, m.EngineVersion).
					Delete(&evaluationResultModel{}).Error; err != nil {
					return err
				}
			}
		}
		return tx.Create(&models).Error
	})
	if err != nil {
		return 0, err
	}
	return len(models), nil
}

// ListResults 按代码/窗口分页列出结果行，新锚点在前。
func (s *GormStore) ListResults(ctx context.Context, q ResultQuery) ([]eval.Result, int64, error) {
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("gorm store 未初始化")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	query := s.db.WithContext(ctx).Model(&evaluationResultModel{})
	if code := strings.TrimSpace(q.Code); code != "" {
		query = query.Where("code = ?", code)
	}
	if q.WindowDays > 0 {
		query = query.Where("eval_window_days = ?", q.WindowDays)
	}
	if v := strings.TrimSpace(q.EngineVersion); v != "" {
		query = query.Where("engine_version = ?", v)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []evaluationResultModel
	if err := query.Order("anchor_date DESC, id DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	out := make([]eval.Result, 0, len(models))
	for _, m := range models {
		out = append(out, modelToResult(m))
	}
	return out, total, nil
}

// GetResultByRecord 取某条建议的评估结果；windowDays<=0 或 engineVersion
// 为空时不限定该维度，取最新写入的一条。
func (s *GormStore) GetResultByRecord(ctx context.Context, recordID int64, windowDays int, engineVersion string) (eval.Result, bool, error) {
	if s == nil || s.db == nil {
		return eval.Result{}, false, fmt.Errorf("gorm store 未初始化")
	}
	query := s.db.WithContext(ctx).Model(&evaluationResultModel{}).
		Where("analysis_record_id = ?", recordID)
	if windowDays > 0 {
		query = query.Where("eval_window_days = ?", windowDays)
	}
	if v := strings.TrimSpace(engineVersion); v != "" {
		query = query.Where("engine_version = ?", v)
	}
	var m evaluationResultModel
	if err := query.Order("id DESC").First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return eval.Result{}, false, nil
		}
		return eval.Result{}, false, err
	}
	return modelToResult(m), true, nil
}

// ResultsForSummary 取某键下参与汇总的全部行；code 为空表示全市场。
func (s *GormStore) ResultsForSummary(ctx context.Context, code string, windowDays int, engineVersion string) ([]eval.Result, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	query := s.db.WithContext(ctx).Model(&evaluationResultModel{}).
		Where("eval_window_days = ? AND engine_version = ?", windowDays, engineVersion)
	if code = strings.TrimSpace(code); code != "" {
		query = query.Where("code = ?", code)
	}
	var models []evaluationResultModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]eval.Result, 0, len(models))
	for _, m := range models {
		out = append(out, modelToResult(m))
	}
	return out, nil
}

func resultToModel(r eval.Result) evaluationResultModel {
	return evaluationResultModel{
		AnalysisRecordID:    r.RecordID,
		WindowDays:          r.WindowDays,
		EngineVersion:       r.EngineVersion,
		Code:                r.Code,
		Advice:              r.Advice,
		AnchorDate:          r.AnchorDate,
		Status:              string(r.Status),
		Position:            string(r.Position),
		Direction:           string(r.Direction),
		StartPrice:          r.StartPrice,
		EndClose:            r.EndClose,
		MaxHigh:             r.MaxHigh,
		MinLow:              r.MinLow,
		StockReturnPct:      r.StockReturnPct,
		Outcome:             string(r.Outcome),
		DirectionCorrect:    r.DirectionCorrect,
		StopLoss:            r.StopLoss,
		TakeProfit:          r.TakeProfit,
		HitStopLoss:         r.HitStopLoss,
		HitTakeProfit:       r.HitTakeProfit,
		FirstHit:            string(r.FirstHit),
		FirstHitDate:        r.FirstHitDate,
		FirstHitTradingDays: r.FirstHitTradingDays,
		SimEntryPrice:       r.SimEntryPrice,
		SimExitPrice:        r.SimExitPrice,
		SimExitReason:       r.SimExitReason,
		SimReturnPct:        r.SimReturnPct,
		ErrorMessage:        r.ErrorMessage,
	}
}

func modelToResult(m evaluationResultModel) eval.Result {
	return eval.Result{
		RecordID:            m.AnalysisRecordID,
		Code:                m.Code,
		Advice:              m.Advice,
		AnchorDate:          m.AnchorDate,
		WindowDays:          m.WindowDays,
		EngineVersion:       m.EngineVersion,
		Status:              eval.Status(m.Status),
		Position:            eval.Position(m.Position),
		Direction:           eval.Direction(m.Direction),
		StartPrice:          m.StartPrice,
		EndClose:            m.EndClose,
		MaxHigh:             m.MaxHigh,
		MinLow:              m.MinLow,
		StockReturnPct:      m.StockReturnPct,
		Outcome:             eval.Outcome(m.Outcome),
		DirectionCorrect:    m.DirectionCorrect,
		StopLoss:            m.StopLoss,
		TakeProfit:          m.TakeProfit,
		HitStopLoss:         m.HitStopLoss,
		HitTakeProfit:       m.HitTakeProfit,
		FirstHit:            eval.FirstHit(m.FirstHit),
		FirstHitDate:        m.FirstHitDate,
		FirstHitTradingDays: m.FirstHitTradingDays,
		SimEntryPrice:       m.SimEntryPrice,
		SimExitPrice:        m.SimExitPrice,
		SimExitReason:       m.SimExitReason,
		SimReturnPct:        m.SimReturnPct,
		ErrorMessage:        m.ErrorMessage,
	}
}

// --------------------- Summary -------------------------

// GetSummary 按键读取汇总；不存在时返回 found=false 而非错误。
func (s *GormStore) GetSummary(ctx context.Context, scope, code string, windowDays int, engineVersion string) (eval.Summary, bool, error) {
	if s == nil || s.db == nil {
		return eval.Summary{}, false, fmt.Errorf("gorm store 未初始化")
	}
	var m summaryModel
	err := s.db.WithContext(ctx).
		Where("scope = ? AND code = ? AND eval_window_days = ? AND engine_version = ?",
			scope, code, windowDays, engineVersion).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return eval.Summary{}, false, nil
		}
		return eval.Summary{}, false, err
	}
	summary, err := summaryModelToSummary(m)
	if err != nil {
		return eval.Summary{}, false, err
	}
	return summary, true, nil
}

// UpsertSummary 以 (scope, code, window, version) 为冲突键整行覆盖。
func (s *GormStore) UpsertSummary(ctx context.Context, summary eval.Summary) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	m, err := summaryToModel(summary)
	if err != nil {
		return err
	}
	m.UpdatedAtUnix = time.Now().Unix()
	cols := []string{
		"total_count", "completed_count", "insufficient_count", "long_count", "cash_count",
		"win_count", "loss_count", "neutral_count",
		"direction_accuracy_pct", "win_rate_pct", "neutral_rate_pct",
		"stop_loss_trigger_rate_pct", "take_profit_trigger_rate_pct", "ambiguous_rate_pct",
		"avg_days_to_first_hit", "advice_breakdown", "diagnostics", "updated_at",
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "scope"}, {Name: "code"}, {Name: "eval_window_days"}, {Name: "engine_version"},
			},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(&m).Error
}

func summaryToModel(s eval.Summary) (summaryModel, error) {
	breakdown, err := json.Marshal(s.AdviceBreakdown)
	if err != nil {
		return summaryModel{}, err
	}
	diagnostics, err := json.Marshal(s.Diagnostics)
	if err != nil {
		return summaryModel{}, err
	}
	return summaryModel{
		Scope:                    s.Scope,
		Code:                     s.Code,
		WindowDays:               s.WindowDays,
		EngineVersion:            s.EngineVersion,
		TotalCount:               s.TotalCount,
		CompletedCount:           s.CompletedCount,
		InsufficientCount:        s.InsufficientCount,
		LongCount:                s.LongCount,
		CashCount:                s.CashCount,
		WinCount:                 s.WinCount,
		LossCount:                s.LossCount,
		NeutralCount:             s.NeutralCount,
		DirectionAccuracyPct:     s.DirectionAccuracyPct,
		WinRatePct:               s.WinRatePct,
		NeutralRatePct:           s.NeutralRatePct,
		StopLossTriggerRatePct:   s.StopLossTriggerRatePct,
		TakeProfitTriggerRatePct: s.TakeProfitTriggerRatePct,
		AmbiguousRatePct:         s.AmbiguousRatePct,
		AvgDaysToFirstHit:        s.AvgDaysToFirstHit,
		AdviceBreakdown:          datatypes.JSON(breakdown),
		Diagnostics:              datatypes.JSON(diagnostics),
	}, nil
}

func summaryModelToSummary(m summaryModel) (eval.Summary, error) {
	s := eval.Summary{
		Scope:                    m.Scope,
		Code:                     m.Code,
		WindowDays:               m.WindowDays,
		EngineVersion:            m.EngineVersion,
		TotalCount:               m.TotalCount,
		CompletedCount:           m.CompletedCount,
		InsufficientCount:        m.InsufficientCount,
		LongCount:                m.LongCount,
		CashCount:                m.CashCount,
		WinCount:                 m.WinCount,
		LossCount:                m.LossCount,
		NeutralCount:             m.NeutralCount,
		DirectionAccuracyPct:     m.DirectionAccuracyPct,
		WinRatePct:               m.WinRatePct,
		NeutralRatePct:           m.NeutralRatePct,
		StopLossTriggerRatePct:   m.StopLossTriggerRatePct,
		TakeProfitTriggerRatePct: m.TakeProfitTriggerRatePct,
		AmbiguousRatePct:         m.AmbiguousRatePct,
		AvgDaysToFirstHit:        m.AvgDaysToFirstHit,
	}
	if len(m.AdviceBreakdown) > 0 {
		if err := json.Unmarshal(m.AdviceBreakdown, &s.AdviceBreakdown); err != nil {
			return eval.Summary{}, err
		}
	}
	if len(m.Diagnostics) > 0 {
		if err := json.Unmarshal(m.Diagnostics, &s.Diagnostics); err != nil {
			return eval.Summary{}, err
		}
	}
	return s, nil
}
