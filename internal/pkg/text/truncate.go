// Package text 提供中英文混排安全的字符串处理。
package text

// Truncate 截断到最多 max 个字符（按 rune 计，建议文本多为中文），
// 超长时追加省略号。
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
