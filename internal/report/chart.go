package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"fupan/internal/eval"
	"fupan/internal/market"
	"fupan/internal/pkg/text"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	talib "github.com/markcheno/go-talib"
)

const (
	chartWidthPx  = 1200
	chartHeightPx = 640
	smaPeriod     = 5
)

// SummaryChart 渲染某个汇总键下按建议文本分桶的胜率柱状图，返回 HTML。
func SummaryChart(summary eval.Summary) ([]byte, error) {
	advices := make([]string, 0, len(summary.AdviceBreakdown))
	for advice := range summary.AdviceBreakdown {
		advices = append(advices, advice)
	}
	sort.Strings(advices)

	labels := make([]string, 0, len(advices))
	rates := make([]opts.BarData, 0, len(advices))
	totals := make([]opts.BarData, 0, len(advices))
	for _, advice := range advices {
		bucket := summary.AdviceBreakdown[advice]
		labels = append(labels, text.Truncate(advice, 12))
		rate := 0.0
		if bucket.WinRatePct != nil {
			rate = *bucket.WinRatePct
		}
		rates = append(rates, opts.BarData{Value: rate})
		totals = append(totals, opts.BarData{Value: bucket.Total})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("建议胜率分布 · %s · %d日窗口", summary.Code, summary.WindowDays),
			Subtitle: fmt.Sprintf("engine %s · completed %d", summary.EngineVersion, summary.CompletedCount),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", chartHeightPx),
		}),
	)
	bar.SetXAxis(labels).
		AddSeries("win_rate_pct", rates).
		AddSeries("total", totals)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WindowChart 渲染一条评估结果的前向窗口 K 线，叠加 SMA 与止损/止盈水位。
func WindowChart(result eval.Result, bars []market.Bar) ([]byte, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("report: 没有可渲染的日线")
	}
	dates := make([]string, 0, len(bars))
	klineData := make([]opts.KlineData, 0, len(bars))
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		dates = append(dates, b.Date)
		klineData = append(klineData, opts.KlineData{Value: [4]float64{
			deref(b.Open), deref(b.Close), deref(b.Low), deref(b.High),
		}})
		closes = append(closes, deref(b.Close))
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s · 锚点 %s · %d日窗口", result.Code, result.AnchorDate, result.WindowDays),
			Subtitle: fmt.Sprintf("建议「%s」 status=%s first_hit=%s", result.Advice, result.Status, result.FirstHit),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", chartHeightPx),
		}),
	)
	kline.SetXAxis(dates).AddSeries("日线", klineData)

	line := charts.NewLine()
	line.SetXAxis(dates)
	if len(closes) >= smaPeriod {
		sma := talib.Sma(closes, smaPeriod)
		smaData := make([]opts.LineData, 0, len(sma))
		for _, v := range sma {
			smaData = append(smaData, opts.LineData{Value: v})
		}
		line.AddSeries(fmt.Sprintf("SMA%d", smaPeriod), smaData)
	}
	if result.StopLoss != nil {
		line.AddSeries("止损", constantLine(*result.StopLoss, len(dates)))
	}
	if result.TakeProfit != nil {
		line.AddSeries("止盈", constantLine(*result.TakeProfit, len(dates)))
	}
	kline.Overlap(line)

	var buf bytes.Buffer
	if err := kline.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func constantLine(v float64, n int) []opts.LineData {
	data := make([]opts.LineData, 0, n)
	for i := 0; i < n; i++ {
		data = append(data, opts.LineData{Value: v})
	}
	return data
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable 探测本机是否可用 headless Chrome，结果缓存。
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

// Snapshot 用 headless Chrome 把图表 HTML 截成 PNG。
func Snapshot(ctx context.Context, html []byte) ([]byte, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return nil, fmt.Errorf("report: headless chrome 不可用: %w", err)
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(chartWidthPx), int64(chartHeightPx)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1200 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
