package model

import (
	"gorm.io/datatypes"
)

// AnalysisRecordModel 是上游分析流水线落库的历史建议，本服务只读。
type AnalysisRecordModel struct {
	ID              int64    `gorm:"column:id;primaryKey"`
	Code            string   `gorm:"column:code;index"`
	OperationAdvice string   `gorm:"column:operation_advice"`
	StopLoss        *float64 `gorm:"column:stop_loss"`
	TakeProfit      *float64 `gorm:"column:take_profit"`
	ContextSnapshot string   `gorm:"column:context_snapshot;type:TEXT"`
	CreatedAtUnix   int64    `gorm:"column:created_at;index"`
}

func (AnalysisRecordModel) TableName() string { return "analysis_records" }

// EvaluationResultModel 按 (analysis_record_id, eval_window_days, engine_version)
// 唯一，force 重跑先删后插，不追加。
type EvaluationResultModel struct {
	ID               int64  `gorm:"column:id;primaryKey"`
	AnalysisRecordID int64  `gorm:"column:analysis_record_id;uniqueIndex:idx_eval_key,priority:1"`
	WindowDays       int    `gorm:"column:eval_window_days;uniqueIndex:idx_eval_key,priority:2"`
	EngineVersion    string `gorm:"column:engine_version;uniqueIndex:idx_eval_key,priority:3"`
	Code             string `gorm:"column:code;index"`
	Advice           string `gorm:"column:operation_advice"`
	AnchorDate       string `gorm:"column:anchor_date"`

	Status    string `gorm:"column:eval_status;index"`
	Position  string `gorm:"column:position_recommendation"`
	Direction string `gorm:"column:direction_expected"`

	StartPrice     *float64 `gorm:"column:start_price"`
	EndClose       *float64 `gorm:"column:end_close"`
	MaxHigh        *float64 `gorm:"column:max_high"`
	MinLow         *float64 `gorm:"column:min_low"`
	StockReturnPct *float64 `gorm:"column:stock_return_pct"`

	Outcome          string `gorm:"column:outcome"`
	DirectionCorrect *bool  `gorm:"column:direction_correct"`

	StopLoss            *float64 `gorm:"column:stop_loss"`
	TakeProfit          *float64 `gorm:"column:take_profit"`
	HitStopLoss         *bool    `gorm:"column:hit_stop_loss"`
	HitTakeProfit       *bool    `gorm:"column:hit_take_profit"`
	FirstHit            string   `gorm:"column:first_hit"`
	FirstHitDate        *string  `gorm:"column:first_hit_date"`
	FirstHitTradingDays *int     `gorm:"column:first_hit_trading_days"`

	SimEntryPrice *float64 `gorm:"column:simulated_entry_price"`
	SimExitPrice  *float64 `gorm:"column:simulated_exit_price"`
	SimExitReason string   `gorm:"column:simulated_exit_reason"`
	SimReturnPct  *float64 `gorm:"column:simulated_return_pct"`

	ErrorMessage  string `gorm:"column:error_message"`
	CreatedAtUnix int64  `gorm:"column:created_at"`
}

func (EvaluationResultModel) TableName() string { return "evaluation_results" }

// SummaryModel 每 (scope, code, window, version) 一行；overall 行的 code
// 使用保留哨兵值，与个股行共用同一张表。
type SummaryModel struct {
	ID            int64  `gorm:"column:id;primaryKey"`
	Scope         string `gorm:"column:scope;uniqueIndex:idx_summary_key,priority:1"`
	Code          string `gorm:"column:code;uniqueIndex:idx_summary_key,priority:2"`
	WindowDays    int    `gorm:"column:eval_window_days;uniqueIndex:idx_summary_key,priority:3"`
	EngineVersion string `gorm:"column:engine_version;uniqueIndex:idx_summary_key,priority:4"`

	TotalCount        int `gorm:"column:total_count"`
	CompletedCount    int `gorm:"column:completed_count"`
	InsufficientCount int `gorm:"column:insufficient_count"`
	LongCount         int `gorm:"column:long_count"`
	CashCount         int `gorm:"column:cash_count"`
	WinCount          int `gorm:"column:win_count"`
	LossCount         int `gorm:"column:loss_count"`
	NeutralCount      int `gorm:"column:neutral_count"`

	DirectionAccuracyPct     *float64 `gorm:"column:direction_accuracy_pct"`
	WinRatePct               *float64 `gorm:"column:win_rate_pct"`
	NeutralRatePct           *float64 `gorm:"column:neutral_rate_pct"`
	StopLossTriggerRatePct   *float64 `gorm:"column:stop_loss_trigger_rate_pct"`
	TakeProfitTriggerRatePct *float64 `gorm:"column:take_profit_trigger_rate_pct"`
	AmbiguousRatePct         *float64 `gorm:"column:ambiguous_rate_pct"`
	AvgDaysToFirstHit        *float64 `gorm:"column:avg_days_to_first_hit"`

	AdviceBreakdown datatypes.JSON `gorm:"column:advice_breakdown;type:TEXT"`
	Diagnostics     datatypes.JSON `gorm:"column:diagnostics;type:TEXT"`

	UpdatedAtUnix int64 `gorm:"column:updated_at"`
}

func (SummaryModel) TableName() string { return "evaluation_summaries" }
