package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fupan/internal/backtest"
	"fupan/internal/eval"
	"fupan/internal/market"
	"fupan/internal/store"
	"fupan/internal/store/gormstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	db, err := gormstore.NewGormStore(filepath.Join(dir, "fupan.db"))
	require.NoError(t, err)
	bars, err := store.NewBarStore(filepath.Join(dir, "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		bars.Close()
		db.Close()
	})
	svc, err := backtest.NewService(backtest.ServiceConfig{
		Store: db,
		Bars:  bars,
		Eval: eval.Config{
			WindowDays:     3,
			NeutralBandPct: 0.5,
			EngineVersion:  "v1",
		},
	})
	require.NoError(t, err)
	srv, err := NewServer(Config{Service: svc, Store: db, Bars: bars})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSummary_NotFoundBeforeAnyRun(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/backtest/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummary_BadScope(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/backtest/summary?scope=galaxy", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/backtest/summary?scope=stock", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "scope=stock 缺 code 应拒绝")
}

func TestSeedRunAndQueryFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/backtest/bars", map[string]any{
		"bars": []market.Bar{
			{Code: "600519", Date: "2024-03-01", Open: fpt(100), High: fpt(100), Low: fpt(100), Close: fpt(100)},
			{Code: "600519", Date: "2024-03-04", Open: fpt(103), High: fpt(103), Low: fpt(103), Close: fpt(103)},
			{Code: "600519", Date: "2024-03-05", Open: fpt(104), High: fpt(105), Low: fpt(103), Close: fpt(104)},
			{Code: "600519", Date: "2024-03-06", Open: fpt(104), High: fpt(106), Low: fpt(104), Close: fpt(106)},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/backtest/records", map[string]any{
		"records": []map[string]any{{
			"id":               1,
			"code":             "600519",
			"operation_advice": "买入",
			"created_at":       mustUnix(t, "2024-03-01"),
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/backtest/run", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var runResp struct {
		Report backtest.RunReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runResp))
	assert.Equal(t, 1, runResp.Report.Completed)

	rec = doJSON(t, srv, http.MethodGet, "/api/backtest/results?code=600519", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Results []ResultView `json:"results"`
		Total   int64        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.EqualValues(t, 1, listResp.Total)
	view := listResp.Results[0]
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, "long", view.Position)
	require.NotNil(t, view.StockReturnPct)
	assert.InDelta(t, 6.0, *view.StockReturnPct, 1e-9)
	assert.Nil(t, view.StopLoss)
	assert.Nil(t, view.FirstHitDate)

	rec = doJSON(t, srv, http.MethodGet, "/api/backtest/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sumResp struct {
		Summary SummaryView `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sumResp))
	assert.Equal(t, "overall", sumResp.Summary.Scope)
	assert.Equal(t, 1, sumResp.Summary.WinCount)

	rec = doJSON(t, srv, http.MethodGet, "/api/backtest/summary?scope=stock&code=600519", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/backtest/results/1/chart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	rec = doJSON(t, srv, http.MethodGet, "/api/backtest/summary/chart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRun_RejectsBadBody(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/backtest/run", bytes.NewBufferString("{bad"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResultChart_NotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/backtest/results/42/chart", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/backtest/results/abc/chart", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func fpt(v float64) *float64 { return &v }

func mustUnix(t *testing.T, date string) int64 {
	t.Helper()
	ts, err := time.Parse(market.DateLayout, date)
	require.NoError(t, err)
	return ts.Unix()
}
