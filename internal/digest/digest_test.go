package digest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fachebot/guild-digest-bot/internal/config"
	"github.com/fachebot/guild-digest-bot/internal/discord"
	"github.com/stretchr/testify/assert"
)

// fakeFetcher 用于测试的 channelFetcher mock
type fakeFetcher struct {
	guild     *discord.Guild
	guildErr  error
	channels  []*discord.Channel
	listErr   error
	messages  map[string][]*discord.Message
	capped    map[string]bool
	fetchErrs map[string]error
}

func (f *fakeFetcher) FetchGuild(ctx context.Context, guildID string) (*discord.Guild, error) {
	if f.guildErr != nil {
		return nil, f.guildErr
	}
	return f.guild, nil
}

func (f *fakeFetcher) ListGuildChannels(ctx context.Context, guildID string) ([]*discord.Channel, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.channels, nil
}

func (f *fakeFetcher) FetchMessages(ctx context.Context, channelID string, opts discord.FetchOptions) ([]*discord.Message, bool, error) {
	if err := f.fetchErrs[channelID]; err != nil {
		return nil, false, err
	}
	return f.messages[channelID], f.capped[channelID], nil
}

// fakeLLM 用于测试的 channelSummarizer mock
type fakeLLM struct {
	jsonByChannel map[string]string
	errByChannel  map[string]error
	budget        int
}

func (f *fakeLLM) SummarizeChannel(ctx context.Context, mode, guildName, channelName, transcriptText string) (string, error) {
	if err := f.errByChannel[channelName]; err != nil {
		return "", err
	}
	if j, ok := f.jsonByChannel[channelName]; ok {
		return j, nil
	}
	return fmt.Sprintf(`{"overview":"summary of %s","topics":[]}`, channelName), nil
}

func (f *fakeLLM) MaxInputTokens() int {
	if f.budget > 0 {
		return f.budget
	}
	return 100000
}

func testConfig() *config.Digest {
	return &config.Digest{
		Mode:          "overview",
		LookbackDays:  1,
		PageSize:      100,
		MaxMessages:   500,
		Concurrency:   4,
		RetryTimes:    1,
		RetryInterval: 1,
	}
}

func testGuild() *discord.Guild {
	return &discord.Guild{ID: "g1", Name: "G1"}
}

func textChannel(id, name string) *discord.Channel {
	return &discord.Channel{ID: id, Name: name, GuildID: "g1"}
}

func channelMessages(channelID string, count int, base time.Time) []*discord.Message {
	msgs := make([]*discord.Message, count)
	for i := 0; i < count; i++ {
		msgs[i] = &discord.Message{
			ID:         fmt.Sprintf("%s-%d", channelID, i),
			ChannelID:  channelID,
			AuthorName: "alice",
			Text:       fmt.Sprintf("message %d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		}
	}
	return msgs
}

func TestRun_ScenarioReachableAndUnreachable(t *testing.T) {
	// G1 有 general 和 random 两个频道；general 有跨 2 天的 3 条消息，random 不可达
	base := time.Now().UTC().Add(-47 * time.Hour)
	fetcher := &fakeFetcher{
		guild:    testGuild(),
		channels: []*discord.Channel{textChannel("c1", "general"), textChannel("c2", "random")},
		messages: map[string][]*discord.Message{
			"c1": channelMessages("c1", 3, base),
		},
		fetchErrs: map[string]error{
			"c2": fmt.Errorf("拉取频道 c2 消息: %w", discord.ErrNotFound),
		},
	}
	d := &Digester{fetcher: fetcher, llmClient: &fakeLLM{}, config: testConfig()}

	report, err := d.Run(context.Background(), "g1")
	assert.NoError(t, err)
	assert.Len(t, report.Channels, 2)

	general := report.Channels[0]
	assert.Equal(t, StatusComplete, general.Status)
	assert.Equal(t, 3, general.MessageCount)
	assert.Equal(t, "summary of general", general.Summary.Overview)

	random := report.Channels[1]
	assert.Equal(t, StatusUnavailable, random.Status)
	assert.Nil(t, random.Summary)
	assert.Contains(t, random.Reason, "资源不存在")

	// 最终输出必须点名被跳过的频道
	display := FormatReportForDisplay(report)
	assert.Contains(t, display, "random")
	assert.Contains(t, display, "摘要不可用")
}

func TestRun_CountsMatchReachability(t *testing.T) {
	// N 个可达频道 + M 个不可达频道 → N 份摘要 + M 个不可用标记
	const n, m = 5, 3
	base := time.Now().UTC().Add(-time.Hour)

	fetcher := &fakeFetcher{
		guild:     testGuild(),
		messages:  make(map[string][]*discord.Message),
		fetchErrs: make(map[string]error),
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("ok%d", i)
		fetcher.channels = append(fetcher.channels, textChannel(id, id))
		fetcher.messages[id] = channelMessages(id, 2, base)
	}
	for i := 0; i < m; i++ {
		id := fmt.Sprintf("bad%d", i)
		fetcher.channels = append(fetcher.channels, textChannel(id, id))
		fetcher.fetchErrs[id] = fmt.Errorf("拉取频道 %s 消息: %w", id, discord.ErrNotFound)
	}
	d := &Digester{fetcher: fetcher, llmClient: &fakeLLM{}, config: testConfig()}

	report, err := d.Run(context.Background(), "g1")
	assert.NoError(t, err)

	available, unavailable := 0, 0
	for _, ch := range report.Channels {
		switch ch.Status {
		case StatusComplete, StatusPartial:
			available++
		case StatusUnavailable:
			unavailable++
		}
	}
	assert.Equal(t, n, available)
	assert.Equal(t, m, unavailable)
}

func TestRun_OrderFollowsEnumeration(t *testing.T) {
	// 并发拉取不改变输出顺序
	base := time.Now().UTC().Add(-time.Hour)
	fetcher := &fakeFetcher{
		guild:    testGuild(),
		messages: make(map[string][]*discord.Message),
	}
	var want []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("ch%02d", i)
		fetcher.channels = append(fetcher.channels, textChannel(id, id))
		fetcher.messages[id] = channelMessages(id, 1, base)
		want = append(want, id)
	}
	d := &Digester{fetcher: fetcher, llmClient: &fakeLLM{}, config: testConfig()}

	report, err := d.Run(context.Background(), "g1")
	assert.NoError(t, err)

	var got []string
	for _, ch := range report.Channels {
		got = append(got, ch.Channel.Name)
		assert.Equal(t, fmt.Sprintf("summary of %s", ch.Channel.Name), ch.Summary.Overview)
	}
	assert.Equal(t, want, got)
}

func TestRun_AuthErrorIsFatal(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	fetcher := &fakeFetcher{
		guild:    testGuild(),
		channels: []*discord.Channel{textChannel("c1", "general"), textChannel("c2", "private")},
		messages: map[string][]*discord.Message{
			"c1": channelMessages("c1", 1, base),
		},
		fetchErrs: map[string]error{
			"c2": fmt.Errorf("拉取频道 c2 消息: %w", discord.ErrAuth),
		},
	}
	d := &Digester{fetcher: fetcher, llmClient: &fakeLLM{}, config: testConfig()}

	report, err := d.Run(context.Background(), "g1")
	assert.ErrorIs(t, err, discord.ErrAuth)
	assert.Nil(t, report)
}

func TestRun_GuildNotFoundIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{
		guildErr: fmt.Errorf("获取服务器 g1: %w", discord.ErrNotFound),
	}
	d := &Digester{fetcher: fetcher, llmClient: &fakeLLM{}, config: testConfig()}

	_, err := d.Run(context.Background(), "g1")
	assert.ErrorIs(t, err, discord.ErrNotFound)
}

func TestRun_ModelFailureIsolatedPerChannel(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	fetcher := &fakeFetcher{
		guild:    testGuild(),
		channels: []*discord.Channel{textChannel("c1", "general"), textChannel("c2", "random")},
		messages: map[string][]*discord.Message{
			"c1": channelMessages("c1", 2, base),
			"c2": channelMessages("c2", 2, base),
		},
	}
	llmClient := &fakeLLM{
		errByChannel: map[string]error{"random": fmt.Errorf("model exploded")},
	}
	d := &Digester{fetcher: fetcher, llmClient: llmClient, config: testConfig()}

	report, err := d.Run(context.Background(), "g1")
	assert.NoError(t, err)

	assert.Equal(t, StatusComplete, report.Channels[0].Status)
	assert.Equal(t, StatusUnavailable, report.Channels[1].Status)
	assert.Contains(t, report.Channels[1].Reason, "摘要生成失败")
}

func TestRun_InvalidJSONIsUnavailable(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	fetcher := &fakeFetcher{
		guild:    testGuild(),
		channels: []*discord.Channel{textChannel("c1", "general")},
		messages: map[string][]*discord.Message{
			"c1": channelMessages("c1", 2, base),
		},
	}
	llmClient := &fakeLLM{
		jsonByChannel: map[string]string{"general": "not valid json"},
	}
	d := &Digester{fetcher: fetcher, llmClient: llmClient, config: testConfig()}

	report, err := d.Run(context.Background(), "g1")
	assert.NoError(t, err)
	assert.Equal(t, StatusUnavailable, report.Channels[0].Status)
	assert.Contains(t, report.Channels[0].Reason, "解析")
}

func TestRun_CappedChannelIsPartial(t *testing.T) {
	base := time.Now().UTC().Add(-time.Hour)
	fetcher := &fakeFetcher{
		guild:    testGuild(),
		channels: []*discord.Channel{textChannel("c1", "busy")},
		messages: map[string][]*discord.Message{
			"c1": channelMessages("c1", 10, base),
		},
		capped: map[string]bool{"c1": true},
	}
	d := &Digester{fetcher: fetcher, llmClient: &fakeLLM{}, config: testConfig()}

	report, err := d.Run(context.Background(), "g1")
	assert.NoError(t, err)
	assert.Equal(t, StatusPartial, report.Channels[0].Status)
	assert.Contains(t, report.Channels[0].Reason, "上限")
	assert.NotNil(t, report.Channels[0].Summary)
}

func TestRun_TruncatedChannelIsPartial(t *testing.T) {
	// 极小的上下文预算迫使截断
	base := time.Now().UTC().Add(-time.Hour)
	fetcher := &fakeFetcher{
		guild:    testGuild(),
		channels: []*discord.Channel{textChannel("c1", "general")},
		messages: map[string][]*discord.Message{
			"c1": channelMessages("c1", 50, base),
		},
	}
	d := &Digester{fetcher: fetcher, llmClient: &fakeLLM{budget: 60}, config: testConfig()}

	report, err := d.Run(context.Background(), "g1")
	assert.NoError(t, err)
	ch := report.Channels[0]
	assert.Equal(t, StatusPartial, ch.Status)
	assert.Greater(t, ch.Dropped, 0)
	assert.Contains(t, ch.Reason, "丢弃")

	display := FormatReportForDisplay(report)
	assert.Contains(t, display, "部分覆盖")
}

func TestRun_EmptyChannelSkipsSummarization(t *testing.T) {
	fetcher := &fakeFetcher{
		guild:    testGuild(),
		channels: []*discord.Channel{textChannel("c1", "quiet")},
		messages: map[string][]*discord.Message{},
	}
	d := &Digester{fetcher: fetcher, llmClient: &fakeLLM{}, config: testConfig()}

	report, err := d.Run(context.Background(), "g1")
	assert.NoError(t, err)
	ch := report.Channels[0]
	assert.Equal(t, StatusComplete, ch.Status)
	assert.Nil(t, ch.Summary)
	assert.Equal(t, "区间内无消息", ch.Reason)
}

func TestFormatReportForDisplay(t *testing.T) {
	report := &Report{
		Guild:     testGuild(),
		Mode:      "overview",
		StartTime: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		Channels: []*ChannelReport{
			{
				Channel:      textChannel("c1", "general"),
				Status:       StatusComplete,
				MessageCount: 3,
				Summary: &ChannelSummary{
					Overview: "讨论了发布计划",
					Topics: []TopicItem{
						{Title: "发布时间", Summary: "定在下周五", Participants: []string{"alice", "bob"}},
					},
				},
			},
			{
				Channel: textChannel("c2", "random"),
				Status:  StatusUnavailable,
				Reason:  "资源不存在",
			},
		},
	}

	got := FormatReportForDisplay(report)
	assert.Contains(t, got, "服务器「G1」活动摘要")
	assert.Contains(t, got, "2026-08-29")
	assert.Contains(t, got, "✅ #general (3 条消息)")
	assert.Contains(t, got, "讨论了发布计划")
	assert.Contains(t, got, "1. 发布时间 — 定在下周五（参与者: alice, bob）")
	assert.Contains(t, got, "❌ #random")
	assert.Contains(t, got, "摘要不可用: 资源不存在")
	assert.Contains(t, got, "以下频道被跳过: random")
}

func TestFormatReportForDisplay_Nil(t *testing.T) {
	assert.Empty(t, FormatReportForDisplay(nil))
}
