package notifier

import (
	"strings"
	"time"
)

// Telegram 的消息正文上限是 4096，留出余量给 parse_mode 转义。
const maxReportLen = 3800

// RunReportMessage 回测运行报告的结构化推送内容。
// 渲染结果为 Markdown：标题 + 代码块统计项 + 时间戳。
type RunReportMessage struct {
	Title      string
	RunID      string
	Stats      []ReportStat
	Footer     string
	FinishedAt time.Time
}

// ReportStat 一条有序统计项。Value 为空的项渲染时跳过。
type ReportStat struct {
	Label string
	Value string
}

// RenderMarkdown 生成推送文本，超长时从尾部截断。
func (m RunReportMessage) RenderMarkdown() string {
	var b strings.Builder
	title := strings.TrimSpace(m.Title)
	if title != "" {
		b.WriteString("📊 *" + escapeFence(title) + "*")
		if m.RunID != "" {
			b.WriteString(" `" + m.RunID + "`")
		}
		b.WriteString("\n")
	}
	if block := renderStats(m.Stats); block != "" {
		b.WriteString(block)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(escapeFence(footer) + "\n")
	}
	if !m.FinishedAt.IsZero() {
		b.WriteString("时间: " + m.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxReportLen {
		body = body[:maxReportLen] + "..."
	}
	return body
}

func renderStats(stats []ReportStat) string {
	width := 0
	kept := make([]ReportStat, 0, len(stats))
	for _, st := range stats {
		label := strings.TrimSpace(st.Label)
		value := strings.TrimSpace(st.Value)
		if label == "" || value == "" {
			continue
		}
		if len(label) > width {
			width = len(label)
		}
		kept = append(kept, ReportStat{Label: label, Value: value})
	}
	if len(kept) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("```\n")
	for _, st := range kept {
		b.WriteString(st.Label)
		b.WriteString(strings.Repeat(" ", width-len(st.Label)))
		b.WriteString("  ")
		b.WriteString(escapeFence(st.Value))
		b.WriteString("\n")
	}
	b.WriteString("```\n")
	return b.String()
}

// 代码块不能嵌套，正文里的 ``` 替换为 '''。
func escapeFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
