package mcpserver

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fachebot/guild-digest-bot/internal/discord"
)

// formatChannelList 频道列表的文本输出
func formatChannelList(channels []*discord.Channel) string {
	if len(channels) == 0 {
		return "没有找到频道"
	}

	var sb strings.Builder
	for _, ch := range channels {
		if ch.IsThread {
			sb.WriteString(fmt.Sprintf("🧵 %s (ID: %s) 话题，父频道: %s\n", ch.Name, ch.ID, ch.ParentID))
			continue
		}
		sb.WriteString(fmt.Sprintf("📢 %s (ID: %s)", ch.Name, ch.ID))
		if ch.Topic != "" {
			sb.WriteString(fmt.Sprintf(" — %s", ch.Topic))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatMessageList 消息列表的文本输出，每条一行
func formatMessageList(msgs []*discord.Message) string {
	if len(msgs) == 0 {
		return "没有找到消息"
	}

	lines := make([]string, len(msgs))
	for i, m := range msgs {
		line := fmt.Sprintf("%s (%s): %s", m.AuthorName, m.Timestamp.UTC().Format("2006-01-02 15:04:05"), m.Text)
		if summary := m.ReactionSummary(); summary != "" {
			line += fmt.Sprintf("\n表情回应: %s", summary)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// formatPinnedMessages 置顶消息的文本输出
func formatPinnedMessages(msgs []*discord.Message) string {
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		line := fmt.Sprintf("📌 %s (%s): %s", m.AuthorName, m.Timestamp.UTC().Format("2006-01-02 15:04:05"), m.Text)
		if summary := m.ReactionSummary(); summary != "" {
			line += fmt.Sprintf("\n表情回应: %s", summary)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n\n")
}

// formatThreadDetails 话题详情的文本输出
func formatThreadDetails(thread *discord.Channel, recent []*discord.Message) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("话题分析: %s\n", thread.Name))
	sb.WriteString(fmt.Sprintf("消息数: %d | 成员数: %d\n", thread.MessageCount, thread.MemberCount))
	status := "活跃"
	if thread.Archived {
		status = "已归档"
	}
	sb.WriteString(fmt.Sprintf("状态: %s | 父频道: %s\n", status, thread.ParentID))

	if len(recent) > 0 {
		sb.WriteString(fmt.Sprintf("\n🔄 近期消息 (%d 条):\n", len(recent)))
		for _, m := range recent {
			sb.WriteString(fmt.Sprintf("%s: %s\n", m.AuthorName, truncateText(m.Text, 200)))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncateText 截断到 max 字节以内，不切断多字节字符
func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// formatGuildChannelList 跨服务器的频道列表文本输出，每个服务器一段
func formatGuildChannelList(guild *discord.Guild, channels []*discord.Channel) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏢 %s (ID: %s)\n", guild.Name, guild.ID))
	sb.WriteString(formatChannelList(channels))
	return sb.String()
}

// formatWorkspaceStructure 服务器结构全貌的文本输出
func formatWorkspaceStructure(guild *discord.Guild, channels []*discord.Channel) string {
	totalChannels := 0
	totalThreads := 0
	for _, ch := range channels {
		if ch.IsThread {
			totalThreads++
		} else {
			totalChannels++
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏢 服务器「%s」结构全貌\n", guild.Name))
	sb.WriteString(fmt.Sprintf("📊 %d 个频道，%d 个活跃话题\n\n", totalChannels, totalThreads))

	for _, ch := range channels {
		if ch.IsThread {
			sb.WriteString(fmt.Sprintf("   🧵 %s (%d 条消息)\n", ch.Name, ch.MessageCount))
			continue
		}
		sb.WriteString(fmt.Sprintf("#%s", ch.Name))
		if ch.Topic != "" {
			sb.WriteString(fmt.Sprintf(" — %s", ch.Topic))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
