package store

import (
	"context"
	"path/filepath"
	"testing"

	"fupan/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBarStore(t *testing.T) *BarStore {
	t.Helper()
	s, err := NewBarStore(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fp(v float64) *float64 { return &v }

func bar(code, date string, closePx float64) market.Bar {
	return market.Bar{Code: code, Date: date, Open: fp(closePx), High: fp(closePx), Low: fp(closePx), Close: fp(closePx)}
}

func TestBarStore_InsertAndRead(t *testing.T) {
	s := newBarStore(t)
	ctx := context.Background()

	n, err := s.InsertBars(ctx, []market.Bar{
		bar("600519", "2024-03-01", 100),
		bar("600519", "2024-03-04", 102),
		{Code: "", Date: "2024-03-04"}, // 空 code 跳过
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.BarAt(ctx, "600519", "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Close)
	assert.Equal(t, 100.0, *got.Close)

	missing, err := s.BarAt(ctx, "600519", "2024-03-02")
	require.NoError(t, err)
	assert.Nil(t, missing, "缺失交易日返回 nil 而非错误")
}

func TestBarStore_UpsertOverwrites(t *testing.T) {
	s := newBarStore(t)
	ctx := context.Background()

	_, err := s.InsertBars(ctx, []market.Bar{bar("600519", "2024-03-01", 100)})
	require.NoError(t, err)
	_, err = s.InsertBars(ctx, []market.Bar{bar("600519", "2024-03-01", 101)})
	require.NoError(t, err)

	got, err := s.BarAt(ctx, "600519", "2024-03-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 101.0, *got.Close)
}

func TestBarStore_ForwardBars(t *testing.T) {
	s := newBarStore(t)
	ctx := context.Background()

	_, err := s.InsertBars(ctx, []market.Bar{
		bar("600519", "2024-03-01", 100),
		bar("600519", "2024-03-04", 102),
		bar("600519", "2024-03-05", 103),
		bar("600519", "2024-03-06", 104),
		bar("000001", "2024-03-04", 11),
	})
	require.NoError(t, err)

	forward, err := s.ForwardBars(ctx, "600519", "2024-03-01", 2)
	require.NoError(t, err)
	require.Len(t, forward, 2)
	assert.Equal(t, "2024-03-04", forward[0].Date, "锚点日自身不入窗口")
	assert.Equal(t, "2024-03-05", forward[1].Date)

	all, err := s.ForwardBars(ctx, "600519", "2024-03-01", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "可用日线不足时按现有返回")

	none, err := s.ForwardBars(ctx, "600519", "2024-03-06", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBarStore_RangeAndLatest(t *testing.T) {
	s := newBarStore(t)
	ctx := context.Background()

	_, err := s.InsertBars(ctx, []market.Bar{
		bar("600519", "2024-03-01", 100),
		bar("600519", "2024-03-04", 102),
		bar("600519", "2024-03-05", 103),
	})
	require.NoError(t, err)

	rng, err := s.RangeBars(ctx, "600519", "2024-03-01", "2024-03-04")
	require.NoError(t, err)
	assert.Len(t, rng, 2)

	latest, err := s.LatestDate(ctx, "600519")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", latest)

	empty, err := s.LatestDate(ctx, "300999")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
