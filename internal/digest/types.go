package digest

import (
	"time"

	"github.com/fachebot/guild-digest-bot/internal/discord"
)

// TopicItem 单个话题的总结
type TopicItem struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Participants []string `json:"participants"`
}

// ChannelSummary LLM 返回的频道总结结果
type ChannelSummary struct {
	Overview string      `json:"overview"`
	Topics   []TopicItem `json:"topics"`
}

// Status 单个频道的摘要状态
type Status string

const (
	StatusComplete    Status = "complete"    // 摘要覆盖区间内全部消息
	StatusPartial     Status = "partial"     // 摘要可用但未覆盖全部消息（截断或达到上限）
	StatusUnavailable Status = "unavailable" // 拉取或总结失败，无摘要
)

// ChannelReport 单个频道的摘要结果
type ChannelReport struct {
	Channel      *discord.Channel
	Status       Status
	Reason       string // partial / unavailable 的原因说明
	Summary      *ChannelSummary
	MessageCount int  // 实际进入摘要的消息数
	Dropped      int  // 因上下文预算被丢弃的最早消息数
	Capped       bool // 拉取时达到单频道消息上限
}

// Report 一次运行的完整摘要报告，频道顺序与服务器枚举顺序一致
type Report struct {
	Guild     *discord.Guild
	Mode      string
	StartTime time.Time
	EndTime   time.Time
	Channels  []*ChannelReport
}
