package httpapi

import "fupan/internal/eval"

// ResultView 是评估结果的 API 序列化形态，可空字段保持指针。
type ResultView struct {
	RecordID      int64  `json:"analysis_record_id"`
	Code          string `json:"code"`
	Advice        string `json:"operation_advice"`
	AnchorDate    string `json:"anchor_date"`
	WindowDays    int    `json:"eval_window_days"`
	EngineVersion string `json:"engine_version"`

	Status    string `json:"eval_status"`
	Position  string `json:"position_recommendation"`
	Direction string `json:"direction_expected"`

	StartPrice     *float64 `json:"start_price"`
	EndClose       *float64 `json:"end_close"`
	MaxHigh        *float64 `json:"max_high"`
	MinLow         *float64 `json:"min_low"`
	StockReturnPct *float64 `json:"stock_return_pct"`

	Outcome          *string `json:"outcome"`
	DirectionCorrect *bool   `json:"direction_correct"`

	StopLoss            *float64 `json:"stop_loss"`
	TakeProfit          *float64 `json:"take_profit"`
	HitStopLoss         *bool    `json:"hit_stop_loss"`
	HitTakeProfit       *bool    `json:"hit_take_profit"`
	FirstHit            *string  `json:"first_hit"`
	FirstHitDate        *string  `json:"first_hit_date"`
	FirstHitTradingDays *int     `json:"first_hit_trading_days"`

	SimEntryPrice *float64 `json:"simulated_entry_price"`
	SimExitPrice  *float64 `json:"simulated_exit_price"`
	SimExitReason *string  `json:"simulated_exit_reason"`
	SimReturnPct  *float64 `json:"simulated_return_pct"`

	ErrorMessage string `json:"error_message,omitempty"`
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func resultView(r eval.Result) ResultView {
	return ResultView{
		RecordID:            r.RecordID,
		Code:                r.Code,
		Advice:              r.Advice,
		AnchorDate:          r.AnchorDate,
		WindowDays:          r.WindowDays,
		EngineVersion:       r.EngineVersion,
		Status:              string(r.Status),
		Position:            string(r.Position),
		Direction:           string(r.Direction),
		StartPrice:          r.StartPrice,
		EndClose:            r.EndClose,
		MaxHigh:             r.MaxHigh,
		MinLow:              r.MinLow,
		StockReturnPct:      r.StockReturnPct,
		Outcome:             nullableString(string(r.Outcome)),
		DirectionCorrect:    r.DirectionCorrect,
		StopLoss:            r.StopLoss,
		TakeProfit:          r.TakeProfit,
		HitStopLoss:         r.HitStopLoss,
		HitTakeProfit:       r.HitTakeProfit,
		FirstHit:            nullableString(string(r.FirstHit)),
		FirstHitDate:        r.FirstHitDate,
		FirstHitTradingDays: r.FirstHitTradingDays,
		SimEntryPrice:       r.SimEntryPrice,
		SimExitPrice:        r.SimExitPrice,
		SimExitReason:       nullableString(r.SimExitReason),
		SimReturnPct:        r.SimReturnPct,
		ErrorMessage:        r.ErrorMessage,
	}
}

func resultViews(rows []eval.Result) []ResultView {
	views := make([]ResultView, 0, len(rows))
	for _, r := range rows {
		views = append(views, resultView(r))
	}
	return views
}

// SummaryView 是汇总统计的 API 序列化形态。
type SummaryView struct {
	Scope         string `json:"scope"`
	Code          string `json:"code"`
	WindowDays    int    `json:"eval_window_days"`
	EngineVersion string `json:"engine_version"`

	TotalCount        int `json:"total_count"`
	CompletedCount    int `json:"completed_count"`
	InsufficientCount int `json:"insufficient_count"`
	LongCount         int `json:"long_count"`
	CashCount         int `json:"cash_count"`
	WinCount          int `json:"win_count"`
	LossCount         int `json:"loss_count"`
	NeutralCount      int `json:"neutral_count"`

	DirectionAccuracyPct     *float64 `json:"direction_accuracy_pct"`
	WinRatePct               *float64 `json:"win_rate_pct"`
	NeutralRatePct           *float64 `json:"neutral_rate_pct"`
	StopLossTriggerRatePct   *float64 `json:"stop_loss_trigger_rate_pct"`
	TakeProfitTriggerRatePct *float64 `json:"take_profit_trigger_rate_pct"`
	AmbiguousRatePct         *float64 `json:"ambiguous_rate_pct"`
	AvgDaysToFirstHit        *float64 `json:"avg_days_to_first_hit"`

	AdviceBreakdown map[string]eval.AdviceStats `json:"advice_breakdown"`
	Diagnostics     eval.Diagnostics            `json:"diagnostics"`
}

func summaryView(s eval.Summary) SummaryView {
	return SummaryView{
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
		AdviceBreakdown:          s.AdviceBreakdown,
		Diagnostics:              s.Diagnostics,
	}
}
