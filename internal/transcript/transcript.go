package transcript

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fachebot/guild-digest-bot/internal/discord"
)

// Transcript 单个频道的消息文本记录，按时间从旧到新排列。
// 每次运行重新构建，不做持久化。
type Transcript struct {
	ChannelID   string
	ChannelName string
	Messages    []*discord.Message
	Dropped     int // 因上下文预算被丢弃的最早消息数
}

// New 构建频道消息记录，消息按时间戳稳定排序
func New(channel *discord.Channel, msgs []*discord.Message) *Transcript {
	sorted := make([]*discord.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return &Transcript{
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
		Messages:    sorted,
	}
}

// formatLine 单条消息的文本格式："[发送者|2006-01-02 15:04] 消息内容"，
// 有表情回应时附加 "｜表情回应: 👍(3)"
func formatLine(m *discord.Message) string {
	line := fmt.Sprintf("[%s|%s] %s", m.AuthorName, m.Timestamp.UTC().Format("2006-01-02 15:04"), m.Text)
	if summary := m.ReactionSummary(); summary != "" {
		line += fmt.Sprintf("｜表情回应: %s", summary)
	}
	return line
}

// Render 渲染为模型输入文本
func (t *Transcript) Render() string {
	lines := make([]string, len(t.Messages))
	for i, m := range t.Messages {
		lines[i] = formatLine(m)
	}
	return strings.Join(lines, "\n")
}

// TokenCount 渲染文本的 token 数
func (t *Transcript) TokenCount() int {
	return CountTokens(t.Render())
}

// Truncate 截断到 token 预算内，优先整条丢弃最早的消息。
// 对已满足预算的记录为幂等操作。
func (t *Transcript) Truncate(budget int) {
	if budget <= 0 || len(t.Messages) == 0 {
		return
	}

	// 逐条累计 token，从最新往回保留直到超出预算
	costs := make([]int, len(t.Messages))
	for i, m := range t.Messages {
		// +1 为换行符
		costs[i] = CountTokens(formatLine(m)) + 1
	}

	total := 0
	keepFrom := len(t.Messages)
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if total+costs[i] > budget {
			break
		}
		total += costs[i]
		keepFrom = i
	}

	if keepFrom == 0 {
		return
	}
	t.Dropped += keepFrom
	t.Messages = t.Messages[keepFrom:]
}
