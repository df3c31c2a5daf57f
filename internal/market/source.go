package market

import (
	"context"
	"time"
)

// DateLayout 是全仓库统一的交易日格式。
const DateLayout = "2006-01-02"

// Bar 是一根日线。价格允许缺失（坏行情源偶尔丢字段）。
type Bar struct {
	Code  string   `json:"code"`
	Date  string   `json:"date"`
	Open  *float64 `json:"open"`
	High  *float64 `json:"high"`
	Low   *float64 `json:"low"`
	Close *float64 `json:"close"`
}

// Source 抽象一个日线行情源，仅用于补数。
type Source interface {
	// FetchDaily 拉取 from（含）之后最多 limit 根日线，按日期升序返回。
	FetchDaily(ctx context.Context, code, from string, limit int) ([]Bar, error)
	Name() string
}

// NextDay 返回 date 的次日（同格式）。非法输入原样返回。
func NextDay(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, 1).Format(DateLayout)
}

// DaysAgo 返回 n 天前的日期。
func DaysAgo(now time.Time, n int) string {
	return now.AddDate(0, 0, -n).Format(DateLayout)
}
