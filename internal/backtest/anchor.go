package backtest

import (
	"encoding/json"
	"strings"
	"time"

	"fupan/internal/market"
	"fupan/internal/store/gormstore"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// context_snapshot 是上游分析流水线写入的不透明 JSON。只有通过
// 最小模式校验的快照才允许提供 as_of_date，坏快照静默回退 created_at。
var snapshotSchema = jsonschema.MustCompileString("context_snapshot.json", `{
	"type": "object",
	"properties": {
		"as_of_date": {
			"type": "string",
			"pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}"
		}
	},
	"required": ["as_of_date"]
}`)

// resolveAnchorDate 解析一条建议的锚点日：优先快照内嵌日期，
// 其次 created_at 的日期；两者都拿不到返回空串，调用方应整条跳过。
func resolveAnchorDate(rec gormstore.AnalysisRecord) string {
	if date := snapshotDate(rec.ContextSnapshot); date != "" {
		return date
	}
	if rec.CreatedAt.IsZero() || rec.CreatedAt.Unix() <= 0 {
		return ""
	}
	return rec.CreatedAt.Format(market.DateLayout)
}

func snapshotDate(snapshot string) string {
	snapshot = strings.TrimSpace(snapshot)
	if snapshot == "" || !gjson.Valid(snapshot) {
		return ""
	}
	var doc any
	if err := json.Unmarshal([]byte(snapshot), &doc); err != nil {
		return ""
	}
	if err := snapshotSchema.Validate(doc); err != nil {
		return ""
	}
	raw := gjson.Get(snapshot, "as_of_date").String()
	if len(raw) < len(market.DateLayout) {
		return ""
	}
	date := raw[:len(market.DateLayout)]
	if _, err := time.Parse(market.DateLayout, date); err != nil {
		return ""
	}
	return date
}
