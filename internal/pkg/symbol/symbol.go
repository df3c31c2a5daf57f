// Package symbol 识别标的代码的市场归属并做必要的格式换算。
package symbol

import "strings"

type Kind string

const (
	KindAShare Kind = "ashare" // 6 位纯数字，如 600519
	KindCrypto Kind = "crypto" // 币安现货对，如 BTCUSDT
)

// Classify 按代码形态判定市场：6 位纯数字按 A 股，其余一律按加密市场。
func Classify(code string) Kind {
	if IsAShare(code) {
		return KindAShare
	}
	return KindCrypto
}

func IsAShare(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// EastmoneySecID 拼接东方财富行情接口的 secid：6 开头沪市挂 1，其余深市挂 0。
func EastmoneySecID(code string) string {
	code = strings.TrimSpace(code)
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

// Normalize 统一入库形态：A 股保持原样，加密对转大写。
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if IsAShare(code) {
		return code
	}
	return strings.ToUpper(code)
}
