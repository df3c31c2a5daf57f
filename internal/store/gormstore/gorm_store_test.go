package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fupan/internal/eval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := NewGormStore(filepath.Join(t.TempDir(), "fupan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fp(v float64) *float64 { return &v }

func seedRecords(t *testing.T, s *GormStore, now time.Time) {
	t.Helper()
	err := s.InsertAnalysisRecords(context.Background(), []AnalysisRecord{
		{ID: 1, Code: "600519", OperationAdvice: "买入", CreatedAt: now.AddDate(0, 0, -10)},
		{ID: 2, Code: "600519", OperationAdvice: "观望", CreatedAt: now.AddDate(0, 0, -7)},
		{ID: 3, Code: "000001", OperationAdvice: "卖出", CreatedAt: now.AddDate(0, 0, -1)},
	})
	require.NoError(t, err)
}

func completedResult(recordID int64, code string) eval.Result {
	return eval.Result{
		RecordID:      recordID,
		Code:          code,
		Advice:        "买入",
		AnchorDate:    "2024-03-01",
		WindowDays:    5,
		EngineVersion: "v1",
		Status:        eval.StatusCompleted,
		Position:      eval.PositionLong,
		Direction:     eval.DirectionUp,
		StartPrice:    fp(100),
		EndClose:      fp(105),
		Outcome:       eval.OutcomeWin,
	}
}

func TestListCandidates_MinAgeAndExclusion(t *testing.T) {
	s := newStore(t)
	now := time.Now()
	seedRecords(t, s, now)

	q := CandidateQuery{MinAgeDays: 5, WindowDays: 5, EngineVersion: "v1", Now: now}
	cands, err := s.ListCandidates(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, cands, 2, "未满最小年龄的记录不应入选")
	assert.EqualValues(t, 2, cands[0].ID, "新记录在前")
	assert.EqualValues(t, 1, cands[1].ID)

	// 写入 ID=1 的结果后，非 force 不再返回它
	_, err = s.SaveResultsBatch(context.Background(), []eval.Result{completedResult(1, "600519")}, false)
	require.NoError(t, err)

	cands, err = s.ListCandidates(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.EqualValues(t, 2, cands[0].ID)

	// force 时全部重新入选
	q.Force = true
	cands, err = s.ListCandidates(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, cands, 2)

	// 不同窗口视为未评估
	q.Force = false
	q.WindowDays = 20
	cands, err = s.ListCandidates(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestListCandidates_CodeFilter(t *testing.T) {
	s := newStore(t)
	now := time.Now()
	seedRecords(t, s, now)

	cands, err := s.ListCandidates(context.Background(), CandidateQuery{
		Code: "000001", WindowDays: 5, EngineVersion: "v1", Now: now,
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "000001", cands[0].Code)
}

func TestSaveResultsBatch_ReplaceKeepsSingleRow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	saved, err := s.SaveResultsBatch(ctx, []eval.Result{completedResult(1, "600519")}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	// 同键再插（非 replace）应撞唯一索引
	_, err = s.SaveResultsBatch(ctx, []eval.Result{completedResult(1, "600519")}, false)
	require.Error(t, err)

	// replace 场景删旧插新，行数不变
	updated := completedResult(1, "600519")
	updated.EndClose = fp(99)
	updated.Outcome = eval.OutcomeLoss
	saved, err = s.SaveResultsBatch(ctx, []eval.Result{updated}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	rows, total, err := s.ListResults(ctx, ResultQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, eval.OutcomeLoss, rows[0].Outcome)
}

func TestGetResultByRecord(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.SaveResultsBatch(ctx, []eval.Result{completedResult(7, "600519")}, false)
	require.NoError(t, err)

	res, found, err := s.GetResultByRecord(ctx, 7, 0, "")
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 7, res.RecordID)
	assert.Equal(t, "600519", res.Code)

	_, found, err = s.GetResultByRecord(ctx, 99, 0, "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResultRoundTripPreservesNullables(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	r := completedResult(1, "600519")
	r.StopLoss = fp(95)
	r.HitStopLoss = boolPtrForTest(false)
	r.FirstHit = eval.FirstHitNeither
	r.SimExitReason = eval.ExitReasonWindowEnd
	r.SimReturnPct = fp(5)

	_, err := s.SaveResultsBatch(ctx, []eval.Result{r}, false)
	require.NoError(t, err)

	got, found, err := s.GetResultByRecord(ctx, 1, 5, "v1")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, got.StopLoss)
	assert.Equal(t, 95.0, *got.StopLoss)
	assert.Nil(t, got.TakeProfit)
	require.NotNil(t, got.HitStopLoss)
	assert.False(t, *got.HitStopLoss)
	assert.Nil(t, got.HitTakeProfit)
	assert.Equal(t, eval.FirstHitNeither, got.FirstHit)
	assert.Equal(t, eval.ExitReasonWindowEnd, got.SimExitReason)
}

func boolPtrForTest(v bool) *bool { return &v }

func TestSummaryUpsertAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, found, err := s.GetSummary(ctx, eval.ScopeOverall, eval.OverallCode, 5, "v1")
	require.NoError(t, err)
	assert.False(t, found, "不存在的汇总应返回 found=false 而非错误")

	summary := eval.Summary{
		Scope:          eval.ScopeOverall,
		Code:           eval.OverallCode,
		WindowDays:     5,
		EngineVersion:  "v1",
		TotalCount:     4,
		CompletedCount: 3,
		WinCount:       2,
		LossCount:      1,
		WinRatePct:     fp(66.67),
		AdviceBreakdown: map[string]eval.AdviceStats{
			"买入": {Total: 3, Win: 2, Loss: 1, WinRatePct: fp(66.67)},
		},
		Diagnostics: eval.Diagnostics{
			StatusCounts:   map[string]int{"completed": 3, "insufficient_data": 1},
			FirstHitCounts: map[string]int{"(none)": 4},
		},
	}
	require.NoError(t, s.UpsertSummary(ctx, summary))

	// 同键覆盖
	summary.TotalCount = 5
	summary.WinRatePct = fp(50)
	require.NoError(t, s.UpsertSummary(ctx, summary))

	got, found, err := s.GetSummary(ctx, eval.ScopeOverall, eval.OverallCode, 5, "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, got.TotalCount)
	require.NotNil(t, got.WinRatePct)
	assert.Equal(t, 50.0, *got.WinRatePct)
	assert.Equal(t, 3, got.AdviceBreakdown["买入"].Total)
	assert.Equal(t, 3, got.Diagnostics.StatusCounts["completed"])
}
