package discord

import (
	"fmt"
	"strings"
	"time"
)

// Guild 服务器信息，枚举的根节点
type Guild struct {
	ID          string
	Name        string
	MemberCount int
}

// Channel 频道或话题（thread）
type Channel struct {
	ID           string
	Name         string
	GuildID      string
	ParentID     string // 话题所属的父频道ID，普通频道为分类ID
	Position     int
	Topic        string
	IsThread     bool
	Archived     bool // 仅话题有效
	MessageCount int  // 仅话题有效
	MemberCount  int  // 仅话题有效
}

// Reaction 消息上的表情回应统计
type Reaction struct {
	Emoji string // Unicode 表情或自定义表情名称
	Count int
}

// Message 单条消息，拉取后不再修改
type Message struct {
	ID         string
	ChannelID  string
	AuthorName string
	Text       string
	Timestamp  time.Time
	Reactions  []Reaction
}

// ReactionSummary 表情回应的文本摘要，如 "👍(3), ❤️(2)"，无回应时返回空串
func (m *Message) ReactionSummary() string {
	if len(m.Reactions) == 0 {
		return ""
	}
	parts := make([]string, len(m.Reactions))
	for i, r := range m.Reactions {
		parts[i] = fmt.Sprintf("%s(%d)", r.Emoji, r.Count)
	}
	return strings.Join(parts, ", ")
}
