package mcpserver

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/fachebot/guild-digest-bot/internal/discord"
	"github.com/stretchr/testify/assert"
)

func TestFormatChannelList(t *testing.T) {
	channels := []*discord.Channel{
		{ID: "c1", Name: "general", Topic: "日常讨论"},
		{ID: "t1", Name: "release-plan", IsThread: true, ParentID: "c1"},
	}

	got := formatChannelList(channels)
	assert.Contains(t, got, "📢 general (ID: c1) — 日常讨论")
	assert.Contains(t, got, "🧵 release-plan (ID: t1) 话题，父频道: c1")
}

func TestFormatChannelList_Empty(t *testing.T) {
	assert.Equal(t, "没有找到频道", formatChannelList(nil))
}

func TestFormatMessageList(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	msgs := []*discord.Message{
		{AuthorName: "alice", Text: "hello", Timestamp: ts},
		{AuthorName: "bob", Text: "world", Timestamp: ts.Add(time.Minute)},
	}

	got := formatMessageList(msgs)
	assert.Equal(t, "alice (2026-08-29 10:30:00): hello\nbob (2026-08-29 10:31:00): world", got)
}

func TestFormatThreadDetails(t *testing.T) {
	thread := &discord.Channel{
		ID: "t1", Name: "release-plan", IsThread: true, ParentID: "c1",
		MessageCount: 42, MemberCount: 7,
	}
	recent := []*discord.Message{
		{AuthorName: "alice", Text: "ship it", Timestamp: time.Now()},
	}

	got := formatThreadDetails(thread, recent)
	assert.Contains(t, got, "话题分析: release-plan")
	assert.Contains(t, got, "消息数: 42 | 成员数: 7")
	assert.Contains(t, got, "状态: 活跃")
	assert.Contains(t, got, "alice: ship it")
}

func TestFormatThreadDetails_Archived(t *testing.T) {
	thread := &discord.Channel{ID: "t1", Name: "old", IsThread: true, Archived: true}
	got := formatThreadDetails(thread, nil)
	assert.Contains(t, got, "已归档")
	assert.NotContains(t, got, "近期消息")
}

func TestFormatWorkspaceStructure(t *testing.T) {
	guild := &discord.Guild{ID: "g1", Name: "G1"}
	channels := []*discord.Channel{
		{ID: "c1", Name: "general", Topic: "日常讨论"},
		{ID: "t1", Name: "topic-a", IsThread: true, ParentID: "c1", MessageCount: 5},
		{ID: "c2", Name: "random"},
	}

	got := formatWorkspaceStructure(guild, channels)
	assert.Contains(t, got, "服务器「G1」结构全貌")
	assert.Contains(t, got, "2 个频道，1 个活跃话题")
	assert.Contains(t, got, "#general — 日常讨论")
	assert.Contains(t, got, "🧵 topic-a (5 条消息)")
}

func TestFormatMessageList_WithReactions(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	msgs := []*discord.Message{
		{AuthorName: "alice", Text: "重要公告", Timestamp: ts,
			Reactions: []discord.Reaction{{Emoji: "👍", Count: 3}, {Emoji: "🎉", Count: 1}}},
		{AuthorName: "bob", Text: "收到", Timestamp: ts.Add(time.Minute)},
	}

	got := formatMessageList(msgs)
	assert.Contains(t, got, "alice (2026-08-29 10:30:00): 重要公告\n表情回应: 👍(3), 🎉(1)")
	// 无回应的消息不带表情回应行
	assert.Contains(t, got, "bob (2026-08-29 10:31:00): 收到")
	assert.NotContains(t, got, "收到\n表情回应")
}

func TestFormatPinnedMessages_WithReactions(t *testing.T) {
	ts := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	msgs := []*discord.Message{
		{AuthorName: "alice", Text: "置顶规则", Timestamp: ts,
			Reactions: []discord.Reaction{{Emoji: "📌", Count: 2}}},
	}

	got := formatPinnedMessages(msgs)
	assert.Contains(t, got, "📌 alice (2026-08-29 10:30:00): 置顶规则")
	assert.Contains(t, got, "表情回应: 📌(2)")
}

func TestTruncateText_RuneBoundary(t *testing.T) {
	long := strings.Repeat("中文内容测试", 50) // 900 字节，每个字符 3 字节

	got := truncateText(long, 200)
	assert.True(t, utf8.ValidString(got), "截断结果必须是合法的 UTF-8")
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 200+len("..."))

	short := "短消息"
	assert.Equal(t, short, truncateText(short, 200))
}

func TestFormatThreadDetails_TruncatesLongMessages(t *testing.T) {
	thread := &discord.Channel{ID: "t1", Name: "hot", IsThread: true}
	recent := []*discord.Message{
		{AuthorName: "alice", Text: strings.Repeat("热烈讨论", 100), Timestamp: time.Now()},
	}

	got := formatThreadDetails(thread, recent)
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, "...")
}

func TestFormatGuildChannelList(t *testing.T) {
	guild := &discord.Guild{ID: "g1", Name: "社区A"}
	channels := []*discord.Channel{{ID: "c1", Name: "general"}}

	got := formatGuildChannelList(guild, channels)
	assert.Contains(t, got, "🏢 社区A (ID: g1)")
	assert.Contains(t, got, "📢 general (ID: c1)")
}
