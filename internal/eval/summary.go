package eval

import "github.com/shopspring/decimal"

// 诊断直方图中空值的占位键。
const (
	PlaceholderUnknown = "(unknown)"
	PlaceholderNone    = "(none)"
)

// AdviceStats 是按原始建议文本分桶的统计。
type AdviceStats struct {
	Total      int      `json:"total"`
	Win        int      `json:"win"`
	Loss       int      `json:"loss"`
	Neutral    int      `json:"neutral"`
	WinRatePct *float64 `json:"win_rate_pct"`
}

// Diagnostics 保留全部输入行（含未完成行）的状态与触发直方图。
type Diagnostics struct {
	StatusCounts   map[string]int `json:"eval_status"`
	FirstHitCounts map[string]int `json:"first_hit"`
}

// Summary 是某 (scope, code, window, version) 键下的全量汇总。
// 永远从当前结果集整体重算，不做增量修补。
type Summary struct {
	Scope         string
	Code          string
	WindowDays    int
	EngineVersion string

	TotalCount        int
	CompletedCount    int
	InsufficientCount int
	LongCount         int
	CashCount         int
	WinCount          int
	LossCount         int
	NeutralCount      int

	DirectionAccuracyPct     *float64
	WinRatePct               *float64
	NeutralRatePct           *float64
	StopLossTriggerRatePct   *float64
	TakeProfitTriggerRatePct *float64
	AmbiguousRatePct         *float64
	AvgDaysToFirstHit        *float64

	AdviceBreakdown map[string]AdviceStats
	Diagnostics     Diagnostics
}

// ComputeSummary 把一组同键的评估结果归并为汇总统计。纯函数，无 I/O。
func ComputeSummary(rows []Result, scope, code string, cfg Config) Summary {
	s := Summary{
		Scope:           scope,
		Code:            code,
		WindowDays:      cfg.WindowDays,
		EngineVersion:   cfg.EngineVersion,
		TotalCount:      len(rows),
		AdviceBreakdown: make(map[string]AdviceStats),
		Diagnostics: Diagnostics{
			StatusCounts:   make(map[string]int),
			FirstHitCounts: make(map[string]int),
		},
	}

	directionKnown := 0
	directionRight := 0
	stopConfigured := 0
	stopTriggered := 0
	tpConfigured := 0
	tpTriggered := 0
	targetConfigured := 0
	ambiguous := 0
	hitDaysSum := 0
	hitDaysCount := 0

	for _, row := range rows {
		s.Diagnostics.StatusCounts[orPlaceholder(string(row.Status), PlaceholderUnknown)]++
		s.Diagnostics.FirstHitCounts[orPlaceholder(string(row.FirstHit), PlaceholderNone)]++

		switch row.Status {
		case StatusInsufficient:
			s.InsufficientCount++
			continue
		case StatusCompleted:
			s.CompletedCount++
		default:
			continue
		}

		if row.Position == PositionLong {
			s.LongCount++
		} else {
			s.CashCount++
		}
		switch row.Outcome {
		case OutcomeWin:
			s.WinCount++
		case OutcomeLoss:
			s.LossCount++
		case OutcomeNeutral:
			s.NeutralCount++
		}
		if row.DirectionCorrect != nil {
			directionKnown++
			if *row.DirectionCorrect {
				directionRight++
			}
		}

		// 触发率只对真正配置了对应目标的多头行统计，分母收窄。
		if row.Position == PositionLong {
			if row.HitStopLoss != nil {
				stopConfigured++
				if *row.HitStopLoss {
					stopTriggered++
				}
			}
			if row.HitTakeProfit != nil {
				tpConfigured++
				if *row.HitTakeProfit {
					tpTriggered++
				}
			}
			if row.HitStopLoss != nil || row.HitTakeProfit != nil {
				targetConfigured++
				if row.FirstHit == FirstHitAmbiguous {
					ambiguous++
				}
			}
		}
		switch row.FirstHit {
		case FirstHitStopLoss, FirstHitTakeProfit, FirstHitAmbiguous:
			if row.FirstHitTradingDays != nil {
				hitDaysSum += *row.FirstHitTradingDays
				hitDaysCount++
			}
		}

		key := row.Advice
		if key == "" {
			key = PlaceholderUnknown
		}
		bucket := s.AdviceBreakdown[key]
		bucket.Total++
		switch row.Outcome {
		case OutcomeWin:
			bucket.Win++
		case OutcomeLoss:
			bucket.Loss++
		case OutcomeNeutral:
			bucket.Neutral++
		}
		bucket.WinRatePct = ratePct(bucket.Win, bucket.Win+bucket.Loss)
		s.AdviceBreakdown[key] = bucket
	}

	s.DirectionAccuracyPct = ratePct(directionRight, directionKnown)
	// 胜率不把 neutral 计入分母：打平不算输。
	s.WinRatePct = ratePct(s.WinCount, s.WinCount+s.LossCount)
	s.NeutralRatePct = ratePct(s.NeutralCount, s.CompletedCount)
	s.StopLossTriggerRatePct = ratePct(stopTriggered, stopConfigured)
	s.TakeProfitTriggerRatePct = ratePct(tpTriggered, tpConfigured)
	s.AmbiguousRatePct = ratePct(ambiguous, targetConfigured)
	if hitDaysCount > 0 {
		avg := round4(float64(hitDaysSum) / float64(hitDaysCount))
		s.AvgDaysToFirstHit = &avg
	}
	return s
}

func orPlaceholder(v, placeholder string) string {
	if v == "" {
		return placeholder
	}
	return v
}

func ratePct(numerator, denominator int) *float64 {
	if denominator == 0 {
		return nil
	}
	v := round2(float64(numerator) / float64(denominator) * 100)
	return &v
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func round4(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
