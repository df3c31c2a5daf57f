package eval

import "strings"

// 关键词族按优先级排列：看空 > 观望 > 看多 > 持有。
// 顺序不可调换："先观望，回调后买入"必须判为观望（谨慎优先）。
type adviceFamily int

const (
	familyNone adviceFamily = iota
	familyBearish
	familyWait
	familyBullish
	familyHold
)

var bearishKeywords = []string{
	"卖出", "清仓", "减仓", "离场", "止损离场", "回避", "出局", "抛售",
	"sell", "short", "exit", "bearish", "reduce", "liquidate",
}

var waitKeywords = []string{
	"观望", "等待", "持币观望", "暂不操作", "谨慎", "规避风险",
	"wait", "observe", "hold off", "stay out", "sidelines",
}

var bullishKeywords = []string{
	"买入", "加仓", "建仓", "增持", "吸纳", "低吸", "逢低买入",
	"buy", "bullish", "long", "accumulate", "add position",
}

var holdKeywords = []string{
	"持有", "继续持有", "持股", "持股待涨",
	"hold", "keep",
}

// 否定前缀：关键词紧跟在这些词之后时判定为反义，放弃该次命中。
// "do not sell" / "不要卖出" 不能被读成看空。
var negationPrefixes = []string{
	"not", "don't", "do not", "no", "never", "avoid",
	"不要", "不", "别", "勿", "没有",
}

// InferDirectionExpected 将建议文本映射为预期方向。
// 未识别或空输入一律返回 flat。
func InferDirectionExpected(advice string) Direction {
	switch classifyAdvice(advice) {
	case familyBearish:
		return DirectionDown
	case familyWait:
		return DirectionFlat
	case familyBullish:
		return DirectionUp
	case familyHold:
		return DirectionNotDown
	default:
		return DirectionFlat
	}
}

// InferPositionRecommendation 将建议文本映射为持仓姿态。
// 未识别的建议一律归为 cash：看不懂的建议绝不开仓。
func InferPositionRecommendation(advice string) Position {
	switch classifyAdvice(advice) {
	case familyBullish, familyHold:
		return PositionLong
	default:
		return PositionCash
	}
}

func classifyAdvice(advice string) adviceFamily {
	text := strings.ToLower(strings.TrimSpace(advice))
	if text == "" {
		return familyNone
	}
	families := []struct {
		family   adviceFamily
		keywords []string
	}{
		{familyBearish, bearishKeywords},
		{familyWait, waitKeywords},
		{familyBullish, bullishKeywords},
		{familyHold, holdKeywords},
	}
	for _, f := range families {
		if matchKeywords(text, f.keywords) {
			return f.family
		}
	}
	return familyNone
}

// matchKeywords 实现两级匹配：先整串相等（干净标签立即命中，跳过否定检查），
// 再做子串搜索，被否定前缀修饰的出现位置不算命中。
func matchKeywords(text string, keywords []string) bool {
	for _, kw := range keywords {
		if text == kw {
			return true
		}
	}
	for _, kw := range keywords {
		if containsUnnegated(text, kw) {
			return true
		}
	}
	return false
}

func containsUnnegated(text, keyword string) bool {
	offset := 0
	for {
		idx := strings.Index(text[offset:], keyword)
		if idx < 0 {
			return false
		}
		abs := offset + idx
		if !negatedAt(text, abs) {
			return true
		}
		offset = abs + len(keyword)
	}
}

func negatedAt(text string, idx int) bool {
	prefix := strings.TrimRight(text[:idx], " \t")
	for _, neg := range negationPrefixes {
		if strings.HasSuffix(prefix, neg) {
			return true
		}
	}
	return false
}
