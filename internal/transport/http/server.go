package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fupan/internal/backtest"
	"fupan/internal/eval"
	"fupan/internal/market"
	"fupan/internal/report"
	"fupan/internal/store"
	"fupan/internal/store/gormstore"

	"github.com/gin-gonic/gin"
)

// Server 提供回测相关的 HTTP API。
type Server struct {
	addr   string
	svc    *backtest.Service
	db     *gormstore.GormStore
	bars   *store.BarStore
	router *gin.Engine
}

// Config 描述 HTTP Server 的依赖。
type Config struct {
	Addr    string
	Service *backtest.Service
	Store   *gormstore.GormStore
	Bars    *store.BarStore
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("backtest service 不能为空")
	}
	if cfg.Store == nil {
		return nil, errors.New("store 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9982"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:   cfg.Addr,
		svc:    cfg.Service,
		db:     cfg.Store,
		bars:   cfg.Bars,
		router: router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.router.Group("/api/backtest")
	api.POST("/run", s.handleRun)
	api.GET("/results", s.handleListResults)
	api.GET("/summary", s.handleGetSummary)
	api.GET("/summary/chart", s.handleSummaryChart)
	api.GET("/results/:id/chart", s.handleResultChart)
	api.POST("/records", s.handleInsertRecords)
	api.POST("/bars", s.handleInsertBars)
}

func (s *Server) handleRun(c *gin.Context) {
	var req backtest.RunParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rpt, err := s.svc.Run(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": rpt})
}

func (s *Server) handleListResults(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	window, _ := strconv.Atoi(c.Query("window"))
	results, total, err := s.db.ListResults(c.Request.Context(), gormstore.ResultQuery{
		Code:          c.Query("code"),
		WindowDays:    window,
		EngineVersion: c.Query("engine_version"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": resultViews(results), "total": total})
}

// summaryKey 解析 scope/code/window/version 查询参数；scope=overall 时
// code 固定为保留哨兵。
func (s *Server) summaryKey(c *gin.Context) (scope, code string, window int, version string, ok bool) {
	cfg := s.svc.EvalConfig()
	scope = strings.TrimSpace(c.DefaultQuery("scope", eval.ScopeOverall))
	code = strings.TrimSpace(c.Query("code"))
	switch scope {
	case eval.ScopeOverall:
		code = eval.OverallCode
	case eval.ScopeStock:
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scope=stock 时 code 必填"})
			return "", "", 0, "", false
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope 只支持 overall/stock"})
		return "", "", 0, "", false
	}
	window, _ = strconv.Atoi(c.Query("window"))
	if window <= 0 {
		window = cfg.WindowDays
	}
	version = strings.TrimSpace(c.Query("engine_version"))
	if version == "" {
		version = cfg.EngineVersion
	}
	return scope, code, window, version, true
}

func (s *Server) handleGetSummary(c *gin.Context) {
	scope, code, window, version, ok := s.summaryKey(c)
	if !ok {
		return
	}
	summary, found, err := s.db.GetSummary(c.Request.Context(), scope, code, window, version)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "summary 不存在，请先运行回测"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summaryView(summary)})
}

func (s *Server) handleSummaryChart(c *gin.Context) {
	scope, code, window, version, ok := s.summaryKey(c)
	if !ok {
		return
	}
	summary, found, err := s.db.GetSummary(c.Request.Context(), scope, code, window, version)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "summary 不存在"})
		return
	}
	html, err := report.SummaryChart(summary)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.renderChart(c, html)
}

func (s *Server) handleResultChart(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id 非法"})
		return
	}
	result, found, err := s.db.GetResultByRecord(c.Request.Context(), id, 0, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "评估结果不存在"})
		return
	}
	if s.bars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bar store 未启用"})
		return
	}
	forward, err := s.bars.ForwardBars(c.Request.Context(), result.Code, result.AnchorDate, result.WindowDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	html, err := report.WindowChart(result, forward)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.renderChart(c, html)
}

// renderChart 默认返回 HTML；format=png 时尝试 headless Chrome 截图。
func (s *Server) renderChart(c *gin.Context, html []byte) {
	if c.Query("format") != "png" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
		return
	}
	png, err := report.Snapshot(c.Request.Context(), html)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) handleInsertRecords(c *gin.Context) {
	var req struct {
		Records []struct {
			ID              int64    `json:"id"`
			Code            string   `json:"code" binding:"required"`
			OperationAdvice string   `json:"operation_advice"`
			StopLoss        *float64 `json:"stop_loss"`
			TakeProfit      *float64 `json:"take_profit"`
			ContextSnapshot string   `json:"context_snapshot"`
			CreatedAtUnix   int64    `json:"created_at"`
		} `json:"records" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recs := make([]gormstore.AnalysisRecord, 0, len(req.Records))
	for _, r := range req.Records {
		rec := gormstore.AnalysisRecord{
			ID:              r.ID,
			Code:            r.Code,
			OperationAdvice: r.OperationAdvice,
			StopLoss:        r.StopLoss,
			TakeProfit:      r.TakeProfit,
			ContextSnapshot: r.ContextSnapshot,
		}
		if r.CreatedAtUnix > 0 {
			rec.CreatedAt = time.Unix(r.CreatedAtUnix, 0)
		}
		recs = append(recs, rec)
	}
	if err := s.db.InsertAnalysisRecords(c.Request.Context(), recs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": len(recs)})
}

func (s *Server) handleInsertBars(c *gin.Context) {
	if s.bars == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bar store 未启用"})
		return
	}
	var req struct {
		Bars []market.Bar `json:"bars" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inserted, err := s.bars.InsertBars(c.Request.Context(), req.Bars)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": inserted})
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
