package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fupan/internal/market"

	_ "modernc.org/sqlite"
)

// BarStore 以单个 SQLite 文件存放全部标的的日线，(code, date) 唯一。
// 日线量级小，换手低，不值得按标的分库。
type BarStore struct {
	db *sql.DB
}

func NewBarStore(path string) (*BarStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("bar store: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureBarSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BarStore{db: db}, nil
}

func ensureBarSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS daily_bars (
		code  TEXT NOT NULL,
		date  TEXT NOT NULL,
		open  REAL,
		high  REAL,
		low   REAL,
		close REAL,
		inserted_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
		PRIMARY KEY (code, date)
	);`)
	return err
}

func (s *BarStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertBars 批量写入日线，重复 (code, date) 以新值覆盖。
func (s *BarStore) InsertBars(ctx context.Context, bars []market.Bar) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("bar store 未初始化")
	}
	if len(bars) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_bars (code, date, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code, date) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, b := range bars {
		code := strings.TrimSpace(b.Code)
		if code == "" || b.Date == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, code, b.Date,
			nullable(b.Open), nullable(b.High), nullable(b.Low), nullable(b.Close)); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// BarAt 读取某标的某交易日的日线；缺失返回 (nil, nil)。
func (s *BarStore) BarAt(ctx context.Context, code, date string) (*market.Bar, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("bar store 未初始化")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT code, date, open, high, low, close FROM daily_bars WHERE code = ? AND date = ?`,
		strings.TrimSpace(code), date)
	bar, err := scanBar(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &bar, nil
}

// ForwardBars 返回 after 之后（不含）最多 count 根日线，按日期升序。
func (s *BarStore) ForwardBars(ctx context.Context, code, after string, count int) ([]market.Bar, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("bar store 未初始化")
	}
	if count <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, date, open, high, low, close
		FROM daily_bars WHERE code = ? AND date > ?
		ORDER BY date ASC LIMIT ?`,
		strings.TrimSpace(code), after, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Bar
	for rows.Next() {
		bar, err := scanBar(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, bar)
	}
	return out, rows.Err()
}

// RangeBars 返回 [from, to] 闭区间内的日线，图表端点使用。
func (s *BarStore) RangeBars(ctx context.Context, code, from, to string) ([]market.Bar, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("bar store 未初始化")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, date, open, high, low, close
		FROM daily_bars WHERE code = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC`,
		strings.TrimSpace(code), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Bar
	for rows.Next() {
		bar, err := scanBar(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, bar)
	}
	return out, rows.Err()
}

// LatestDate 返回某标的已有日线的最大日期，无数据时返回空串。
func (s *BarStore) LatestDate(ctx context.Context, code string) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("bar store 未初始化")
	}
	var date sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM daily_bars WHERE code = ?`, strings.TrimSpace(code)).Scan(&date)
	if err != nil {
		return "", err
	}
	if !date.Valid {
		return "", nil
	}
	return date.String, nil
}

func scanBar(scan func(dest ...any) error) (market.Bar, error) {
	var bar market.Bar
	var open, high, low, closePx sql.NullFloat64
	if err := scan(&bar.Code, &bar.Date, &open, &high, &low, &closePx); err != nil {
		return market.Bar{}, err
	}
	bar.Open = fromNull(open)
	bar.High = fromNull(high)
	bar.Low = fromNull(low)
	bar.Close = fromNull(closePx)
	return bar, nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
