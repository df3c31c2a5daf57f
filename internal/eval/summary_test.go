package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedRow(advice string, outcome Outcome, correct *bool) Result {
	return Result{
		Status:           StatusCompleted,
		Advice:           advice,
		Position:         InferPositionRecommendation(advice),
		Direction:        InferDirectionExpected(advice),
		Outcome:          outcome,
		DirectionCorrect: correct,
	}
}

func TestComputeSummaryWinRate(t *testing.T) {
	cfg := Config{WindowDays: 5, EngineVersion: "v1"}
	win := completedRow("买入", OutcomeWin, boolPtr(true))
	loss := completedRow("买入", OutcomeLoss, boolPtr(false))

	s := ComputeSummary([]Result{win, loss}, ScopeOverall, OverallCode, cfg)
	require.NotNil(t, s.WinRatePct)
	assert.Equal(t, 50.0, *s.WinRatePct)

	s = ComputeSummary([]Result{win}, ScopeOverall, OverallCode, cfg)
	require.NotNil(t, s.WinRatePct)
	assert.Equal(t, 100.0, *s.WinRatePct)
}

func TestComputeSummaryNeutralExcludedFromWinRate(t *testing.T) {
	cfg := Config{WindowDays: 5, EngineVersion: "v1"}
	rows := []Result{
		completedRow("买入", OutcomeWin, boolPtr(true)),
		completedRow("买入", OutcomeNeutral, nil),
		completedRow("买入", OutcomeNeutral, nil),
	}
	s := ComputeSummary(rows, ScopeOverall, OverallCode, cfg)
	require.NotNil(t, s.WinRatePct)
	assert.Equal(t, 100.0, *s.WinRatePct)
	require.NotNil(t, s.NeutralRatePct)
	assert.InDelta(t, 66.67, *s.NeutralRatePct, 0.001)
}

func TestComputeSummaryEmpty(t *testing.T) {
	s := ComputeSummary(nil, ScopeOverall, OverallCode, Config{WindowDays: 5, EngineVersion: "v1"})
	assert.Equal(t, 0, s.TotalCount)
	assert.Nil(t, s.WinRatePct)
	assert.Nil(t, s.DirectionAccuracyPct)
	assert.Nil(t, s.AvgDaysToFirstHit)
}

func TestComputeSummaryTriggerRateDenominators(t *testing.T) {
	cfg := Config{WindowDays: 5, EngineVersion: "v1"}
	days2 := 2
	configuredHit := completedRow("买入", OutcomeLoss, boolPtr(false))
	configuredHit.HitStopLoss = boolPtr(true)
	configuredHit.HitTakeProfit = boolPtr(false)
	configuredHit.FirstHit = FirstHitStopLoss
	configuredHit.FirstHitTradingDays = &days2

	configuredMiss := completedRow("买入", OutcomeWin, boolPtr(true))
	configuredMiss.HitStopLoss = boolPtr(false)
	configuredMiss.FirstHit = FirstHitNeither

	// 未配置任何目标的多头行不进入触发率分母。
	unconfigured := completedRow("买入", OutcomeWin, boolPtr(true))
	unconfigured.FirstHit = FirstHitNeither

	cash := completedRow("观望", OutcomeNeutral, nil)
	cash.FirstHit = FirstHitNotApplicable

	s := ComputeSummary([]Result{configuredHit, configuredMiss, unconfigured, cash}, ScopeOverall, OverallCode, cfg)
	require.NotNil(t, s.StopLossTriggerRatePct)
	assert.Equal(t, 50.0, *s.StopLossTriggerRatePct)
	require.NotNil(t, s.TakeProfitTriggerRatePct)
	assert.Equal(t, 0.0, *s.TakeProfitTriggerRatePct)
	require.NotNil(t, s.AmbiguousRatePct)
	assert.Equal(t, 0.0, *s.AmbiguousRatePct)
	require.NotNil(t, s.AvgDaysToFirstHit)
	assert.Equal(t, 2.0, *s.AvgDaysToFirstHit)
}

func TestComputeSummaryDiagnosticsCoverAllRows(t *testing.T) {
	cfg := Config{WindowDays: 5, EngineVersion: "v1"}
	insufficient := Result{Status: StatusInsufficient, Advice: "买入"}
	errored := Result{Status: StatusError, Advice: ""}
	win := completedRow("买入", OutcomeWin, boolPtr(true))
	win.FirstHit = FirstHitNeither

	s := ComputeSummary([]Result{insufficient, errored, win}, ScopeOverall, OverallCode, cfg)
	assert.Equal(t, 3, s.TotalCount)
	assert.Equal(t, 1, s.CompletedCount)
	assert.Equal(t, 1, s.InsufficientCount)
	assert.Equal(t, 1, s.Diagnostics.StatusCounts["insufficient_data"])
	assert.Equal(t, 1, s.Diagnostics.StatusCounts["error"])
	assert.Equal(t, 1, s.Diagnostics.StatusCounts["completed"])
	// 未触发扫描的行落入 "(none)" 桶。
	assert.Equal(t, 2, s.Diagnostics.FirstHitCounts[PlaceholderNone])
	assert.Equal(t, 1, s.Diagnostics.FirstHitCounts["neither"])
}

func TestComputeSummaryAdviceBreakdown(t *testing.T) {
	cfg := Config{WindowDays: 5, EngineVersion: "v1"}
	rows := []Result{
		completedRow("买入", OutcomeWin, boolPtr(true)),
		completedRow("买入", OutcomeLoss, boolPtr(false)),
		completedRow("", OutcomeWin, boolPtr(true)),
	}
	s := ComputeSummary(rows, ScopeStock, "600519", cfg)

	buy := s.AdviceBreakdown["买入"]
	assert.Equal(t, 2, buy.Total)
	assert.Equal(t, 1, buy.Win)
	assert.Equal(t, 1, buy.Loss)
	require.NotNil(t, buy.WinRatePct)
	assert.Equal(t, 50.0, *buy.WinRatePct)

	unknown := s.AdviceBreakdown[PlaceholderUnknown]
	assert.Equal(t, 1, unknown.Total)
}

func TestComputeSummaryDirectionAccuracy(t *testing.T) {
	cfg := Config{WindowDays: 5, EngineVersion: "v1"}
	rows := []Result{
		completedRow("买入", OutcomeWin, boolPtr(true)),
		completedRow("买入", OutcomeLoss, boolPtr(false)),
		completedRow("买入", OutcomeNeutral, nil), // 不进入分母
	}
	rows[0].DirectionCorrect = boolPtr(true)
	rows[1].DirectionCorrect = boolPtr(false)
	s := ComputeSummary(rows, ScopeOverall, OverallCode, cfg)
	require.NotNil(t, s.DirectionAccuracyPct)
	assert.Equal(t, 50.0, *s.DirectionAccuracyPct)
}
