package eval

import (
	"fmt"
	"math"
)

// EvaluateSingle 用锚点价与前向日线窗口复盘一条建议。
// cfg.WindowDays <= 0 属于调用方配置错误，直接 panic；
// 数据不足与锚点价缺失是常态，以 Status 表达而非错误返回。
func EvaluateSingle(in Input, cfg Config) Result {
	if cfg.WindowDays <= 0 {
		panic(fmt.Sprintf("eval: window days 必须为正，收到 %d", cfg.WindowDays))
	}

	res := newBaseResult(in, cfg)

	if in.StartPrice == nil || *in.StartPrice <= 0 {
		res.Status = StatusError
		res.ErrorMessage = "锚点价缺失或非正"
		return res
	}
	if len(in.Bars) < cfg.WindowDays {
		res.Status = StatusInsufficient
		return res
	}

	window := in.Bars[:cfg.WindowDays]
	res.EndClose = window[len(window)-1].ClosePrice()
	res.MaxHigh, res.MinLow = windowExtremes(window)

	start := *in.StartPrice
	if res.EndClose != nil {
		pct := (*res.EndClose - start) / start * 100
		res.StockReturnPct = &pct
	}

	res.Outcome, res.DirectionCorrect = scoreOutcome(res.StockReturnPct, res.Direction, cfg.NeutralBandPct)

	if res.Position == PositionLong {
		evaluateTargets(&res, window, start)
	} else {
		// 空仓收益恒为 0，而非缺失：没有仓位就没有波动。
		zero := 0.0
		res.FirstHit = FirstHitNotApplicable
		res.SimReturnPct = &zero
	}

	res.Status = StatusCompleted
	return res
}

// InsufficientResult 构造数据不足的结果行（锚点日线缺失等编排层判定的场景）。
func InsufficientResult(in Input, cfg Config) Result {
	res := newBaseResult(in, cfg)
	res.Status = StatusInsufficient
	return res
}

// ErrorResult 构造评估异常的结果行，单条失败不拖垮整批。
func ErrorResult(in Input, cfg Config, msg string) Result {
	res := newBaseResult(in, cfg)
	res.Status = StatusError
	res.ErrorMessage = msg
	return res
}

func newBaseResult(in Input, cfg Config) Result {
	return Result{
		RecordID:      in.RecordID,
		Code:          in.Code,
		Advice:        in.Advice,
		AnchorDate:    in.AnchorDate,
		WindowDays:    cfg.WindowDays,
		EngineVersion: cfg.EngineVersion,
		Position:      InferPositionRecommendation(in.Advice),
		Direction:     InferDirectionExpected(in.Advice),
		StartPrice:    in.StartPrice,
		StopLoss:      in.StopLoss,
		TakeProfit:    in.TakeProfit,
	}
}

func windowExtremes(window []DailyBar) (maxHigh, minLow *float64) {
	for _, bar := range window {
		if h := bar.HighPrice(); h != nil {
			if maxHigh == nil || *h > *maxHigh {
				v := *h
				maxHigh = &v
			}
		}
		if l := bar.LowPrice(); l != nil {
			if minLow == nil || *l < *minLow {
				v := *l
				minLow = &v
			}
		}
	}
	return maxHigh, minLow
}

// scoreOutcome 按预期方向与中性带判定胜负。
// flat 没有中性区：预期横盘时偏离带宽即为错。
func scoreOutcome(returnPct *float64, direction Direction, bandPct float64) (Outcome, *bool) {
	if returnPct == nil {
		return "", nil
	}
	ret := *returnPct
	band := math.Abs(bandPct)
	switch direction {
	case DirectionUp:
		if ret >= band {
			return OutcomeWin, boolPtr(true)
		}
		if ret <= -band {
			return OutcomeLoss, boolPtr(false)
		}
		return OutcomeNeutral, nil
	case DirectionDown:
		if ret <= -band {
			return OutcomeWin, boolPtr(true)
		}
		if ret >= band {
			return OutcomeLoss, boolPtr(false)
		}
		return OutcomeNeutral, nil
	case DirectionNotDown:
		if ret >= 0 {
			return OutcomeWin, boolPtr(true)
		}
		if ret <= -band {
			return OutcomeLoss, boolPtr(false)
		}
		return OutcomeNeutral, nil
	default: // flat
		if math.Abs(ret) <= band {
			return OutcomeWin, boolPtr(true)
		}
		return OutcomeLoss, boolPtr(false)
	}
}

// evaluateTargets 按时间序扫描窗口内的止损/止盈触发，只对多头仓位有意义。
// 同一根日线内双双触发时无法还原盘中先后，按止损先成交处理，保证结果可复现。
func evaluateTargets(res *Result, window []DailyBar, start float64) {
	res.SimEntryPrice = &start

	if res.StopLoss == nil && res.TakeProfit == nil {
		res.FirstHit = FirstHitNeither
		res.SimExitPrice = res.EndClose
		res.SimExitReason = ExitReasonWindowEnd
		fillSimReturn(res, start)
		return
	}

	if res.StopLoss != nil {
		res.HitStopLoss = boolPtr(false)
	}
	if res.TakeProfit != nil {
		res.HitTakeProfit = boolPtr(false)
	}

	for i, bar := range window {
		stopHit := false
		tpHit := false
		if res.StopLoss != nil {
			if l := bar.LowPrice(); l != nil && *l <= *res.StopLoss {
				stopHit = true
			}
		}
		if res.TakeProfit != nil {
			if h := bar.HighPrice(); h != nil && *h >= *res.TakeProfit {
				tpHit = true
			}
		}
		if !stopHit && !tpHit {
			continue
		}
		if stopHit {
			res.HitStopLoss = boolPtr(true)
		}
		if tpHit {
			res.HitTakeProfit = boolPtr(true)
		}
		date := bar.TradeDate()
		days := i + 1
		res.FirstHitDate = &date
		res.FirstHitTradingDays = &days
		switch {
		case stopHit && tpHit:
			res.FirstHit = FirstHitAmbiguous
			res.SimExitPrice = res.StopLoss
			res.SimExitReason = ExitReasonAmbiguousSL
		case stopHit:
			res.FirstHit = FirstHitStopLoss
			res.SimExitPrice = res.StopLoss
			res.SimExitReason = ExitReasonStopLoss
		default:
			res.FirstHit = FirstHitTakeProfit
			res.SimExitPrice = res.TakeProfit
			res.SimExitReason = ExitReasonTakeProfit
		}
		fillSimReturn(res, start)
		return
	}

	res.FirstHit = FirstHitNeither
	res.SimExitPrice = res.EndClose
	res.SimExitReason = ExitReasonWindowEnd
	fillSimReturn(res, start)
}

func fillSimReturn(res *Result, start float64) {
	if res.SimExitPrice == nil {
		return
	}
	pct := (*res.SimExitPrice - start) / start * 100
	res.SimReturnPct = &pct
}

func boolPtr(v bool) *bool { return &v }
