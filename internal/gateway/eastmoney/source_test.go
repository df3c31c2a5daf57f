package eastmoney

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKlines(t *testing.T) {
	body := `{"data":{"code":"600519","klines":[
		"2024-03-01,1700.00,1710.50,1720.00,1695.00",
		"2024-03-04,1711.00,1705.00,1715.00,1700.00",
		"bad line",
		"2024-03-05,0,-1,abc,1690.00"
	]}}`

	bars, err := parseKlines("600519", body)
	require.NoError(t, err)
	require.Len(t, bars, 3, "字段不足的脏行跳过")

	first := bars[0]
	assert.Equal(t, "600519", first.Code)
	assert.Equal(t, "2024-03-01", first.Date)
	require.NotNil(t, first.Open)
	assert.Equal(t, 1700.00, *first.Open)
	require.NotNil(t, first.Close)
	assert.Equal(t, 1710.50, *first.Close)
	require.NotNil(t, first.High)
	assert.Equal(t, 1720.00, *first.High)
	require.NotNil(t, first.Low)
	assert.Equal(t, 1695.00, *first.Low)

	// 非正价与解析失败的字段置 nil
	dirty := bars[2]
	assert.Nil(t, dirty.Open)
	assert.Nil(t, dirty.Close)
	assert.Nil(t, dirty.High)
	require.NotNil(t, dirty.Low)
}

func TestParseKlines_Degenerate(t *testing.T) {
	bars, err := parseKlines("600519", `{"data":null}`)
	require.NoError(t, err)
	assert.Empty(t, bars)

	_, err = parseKlines("600519", "not json")
	require.Error(t, err)
}

func TestFetchDaily(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"secid": q.Get("secid"),
			"klt":   q.Get("klt"),
			"fqt":   q.Get("fqt"),
			"beg":   q.Get("beg"),
		}
		w.Write([]byte(`{"data":{"klines":["2024-03-04,10.00,10.20,10.30,9.90"]}}`))
	}))
	defer srv.Close()

	src := New(Config{BaseURL: srv.URL})
	bars, err := src.FetchDaily(context.Background(), "600519", "2024-03-01", 100)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2024-03-04", bars[0].Date)

	assert.Equal(t, "1.600519", gotQuery["secid"], "沪市代码带 1. 前缀")
	assert.Equal(t, "101", gotQuery["klt"])
	assert.Equal(t, "1", gotQuery["fqt"])
	assert.Equal(t, "20240301", gotQuery["beg"])
}
