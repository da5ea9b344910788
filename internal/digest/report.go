package digest

import (
	"fmt"
	"strings"
)

// statusMarker 各状态的显示标记
func statusMarker(s Status) string {
	switch s {
	case StatusComplete:
		return "✅"
	case StatusPartial:
		return "⚠️"
	default:
		return "❌"
	}
}

// FormatReportForDisplay 将报告格式化为可读文本。
// 频道顺序与服务器枚举顺序一致，每个频道都标明摘要状态及原因。
func FormatReportForDisplay(r *Report) string {
	if r == nil {
		return ""
	}

	var sb strings.Builder

	// 头部
	sb.WriteString(fmt.Sprintf("📊 服务器「%s」活动摘要\n", r.Guild.Name))
	sb.WriteString(fmt.Sprintf("📅 %s ~ %s (UTC)\n", r.StartTime.Format("2006-01-02 15:04"), r.EndTime.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("🔎 分析模式: %s\n", r.Mode))

	var skipped []string
	for _, ch := range r.Channels {
		name := ch.Channel.Name
		if ch.Channel.IsThread {
			name = "🧵 " + name
		} else {
			name = "#" + name
		}

		sb.WriteString(fmt.Sprintf("\n%s %s", statusMarker(ch.Status), name))
		if ch.MessageCount > 0 {
			sb.WriteString(fmt.Sprintf(" (%d 条消息)", ch.MessageCount))
		}
		sb.WriteString("\n")

		switch ch.Status {
		case StatusUnavailable:
			sb.WriteString(fmt.Sprintf("摘要不可用: %s\n", ch.Reason))
			skipped = append(skipped, ch.Channel.Name)
			continue
		case StatusPartial:
			sb.WriteString(fmt.Sprintf("（部分覆盖: %s）\n", ch.Reason))
		case StatusComplete:
			if ch.Summary == nil {
				sb.WriteString(fmt.Sprintf("%s\n", ch.Reason))
				continue
			}
		}

		if ch.Summary.Overview != "" {
			sb.WriteString(ch.Summary.Overview + "\n")
		}
		for i, topic := range ch.Summary.Topics {
			sb.WriteString(fmt.Sprintf("%d. %s — %s", i+1, topic.Title, topic.Summary))
			if len(topic.Participants) > 0 {
				sb.WriteString(fmt.Sprintf("（参与者: %s）", strings.Join(topic.Participants, ", ")))
			}
			sb.WriteString("\n")
		}
	}

	if len(skipped) > 0 {
		sb.WriteString(fmt.Sprintf("\n⏭️ 以下频道被跳过: %s\n", strings.Join(skipped, ", ")))
	}

	return sb.String()
}
