package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fachebot/guild-digest-bot/internal/config"
	"github.com/fachebot/guild-digest-bot/internal/discord"
	"github.com/fachebot/guild-digest-bot/internal/llm"
	"github.com/fachebot/guild-digest-bot/internal/logger"
	"github.com/fachebot/guild-digest-bot/internal/transcript"
)

// channelFetcher 拉取服务器、频道和消息（便于测试注入 mock）
type channelFetcher interface {
	FetchGuild(ctx context.Context, guildID string) (*discord.Guild, error)
	ListGuildChannels(ctx context.Context, guildID string) ([]*discord.Channel, error)
	FetchMessages(ctx context.Context, channelID string, opts discord.FetchOptions) ([]*discord.Message, bool, error)
}

// channelSummarizer 调用 LLM 总结频道（便于测试注入 mock）
type channelSummarizer interface {
	SummarizeChannel(ctx context.Context, mode, guildName, channelName, transcriptText string) (string, error)
	MaxInputTokens() int
}

type Digester struct {
	fetcher   channelFetcher
	llmClient channelSummarizer
	config    *config.Digest
}

func NewDigester(fetcher *discord.Client, llmClient *llm.Client, cfg *config.Digest) *Digester {
	return &Digester{
		fetcher:   fetcher,
		llmClient: llmClient,
		config:    cfg,
	}
}

// collectResult 单个频道的拉取结果
type collectResult struct {
	msgs   []*discord.Message
	capped bool
	err    error
}

// Run 对指定服务器执行完整摘要流程：枚举频道、并发拉取消息、逐频道总结。
// 单个频道的拉取或总结失败不会中止整个运行，凭证失效除外。
func (d *Digester) Run(ctx context.Context, guildID string) (*Report, error) {
	guild, err := d.fetcher.FetchGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("获取服务器信息失败: %w", err)
	}

	channels, err := d.fetcher.ListGuildChannels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("枚举频道失败: %w", err)
	}

	endTime := time.Now().UTC()
	startTime := endTime.AddDate(0, 0, -d.config.LookbackDays)

	logger.Infof("[Digest] 服务器「%s」共 %d 个频道/话题，回溯至 %s", guild.Name, len(channels), startTime.Format("2006-01-02 15:04"))

	// 并发拉取各频道消息，结果按枚举顺序落位，保证输出顺序稳定
	results := d.collectAll(ctx, channels, startTime)

	// 凭证失效对整个运行是致命的，立即终止
	for _, r := range results {
		if r.err != nil && errors.Is(r.err, discord.ErrAuth) {
			return nil, r.err
		}
	}

	report := &Report{
		Guild:     guild,
		Mode:      d.config.Mode,
		StartTime: startTime,
		EndTime:   endTime,
		Channels:  make([]*ChannelReport, 0, len(channels)),
	}

	// 按枚举顺序逐频道总结
	for i, ch := range channels {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		report.Channels = append(report.Channels, d.summarizeChannel(ctx, guild, ch, results[i]))
	}

	return report, nil
}

// collectAll 并发拉取全部频道的消息，并发数受 Concurrency 限制
func (d *Digester) collectAll(ctx context.Context, channels []*discord.Channel, after time.Time) []collectResult {
	results := make([]collectResult, len(channels))
	sem := make(chan struct{}, d.config.Concurrency)
	var wg sync.WaitGroup

	for i, ch := range channels {
		wg.Add(1)
		go func(idx int, channel *discord.Channel) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			msgs, capped, err := d.fetcher.FetchMessages(ctx, channel.ID, discord.FetchOptions{
				PageSize:    d.config.PageSize,
				MaxMessages: d.config.MaxMessages,
				After:       after,
			})
			if err != nil {
				logger.Warnf("[Digest] 频道 #%s(%s) 拉取失败，跳过: %v", channel.Name, channel.ID, err)
			}
			results[idx] = collectResult{msgs: msgs, capped: capped, err: err}
		}(i, ch)
	}

	wg.Wait()
	return results
}

// summarizeChannel 总结单个频道，失败时返回"摘要不可用"的报告而非错误
func (d *Digester) summarizeChannel(ctx context.Context, guild *discord.Guild, ch *discord.Channel, collected collectResult) *ChannelReport {
	report := &ChannelReport{Channel: ch}

	if collected.err != nil {
		report.Status = StatusUnavailable
		report.Reason = collected.err.Error()
		return report
	}

	if len(collected.msgs) == 0 {
		report.Status = StatusComplete
		report.Reason = "区间内无消息"
		return report
	}

	// 构建消息记录并按上下文预算截断，最早的消息优先丢弃
	tr := transcript.New(ch, collected.msgs)
	tr.Truncate(d.llmClient.MaxInputTokens())
	report.MessageCount = len(tr.Messages)
	report.Dropped = tr.Dropped
	report.Capped = collected.capped

	if len(tr.Messages) == 0 {
		report.Status = StatusUnavailable
		report.Reason = "消息过长，无法在上下文预算内容纳任何消息"
		return report
	}

	jsonStr, err := d.summarizeWithRetry(ctx, guild.Name, ch.Name, tr.Render())
	if err != nil {
		report.Status = StatusUnavailable
		report.Reason = fmt.Sprintf("摘要生成失败: %v", err)
		return report
	}

	var summary ChannelSummary
	if err := json.Unmarshal([]byte(jsonStr), &summary); err != nil {
		logger.Debugf("[Digest] 频道 #%s 的 LLM 返回无法解析: %s", ch.Name, jsonStr)
		report.Status = StatusUnavailable
		report.Reason = fmt.Sprintf("解析 LLM 返回的 JSON 失败: %v", err)
		return report
	}

	report.Summary = &summary
	if report.Dropped > 0 || report.Capped {
		report.Status = StatusPartial
		report.Reason = partialReason(report)
	} else {
		report.Status = StatusComplete
	}
	logger.Infof("[Digest] 频道 #%s 总结完成 (%d 条消息，%d 个话题)", ch.Name, report.MessageCount, len(summary.Topics))
	return report
}

// summarizeWithRetry 带重试的 LLM 总结调用
func (d *Digester) summarizeWithRetry(ctx context.Context, guildName, channelName, transcriptText string) (string, error) {
	retryTimes := d.config.RetryTimes
	if retryTimes <= 0 {
		retryTimes = 3
	}
	retryInterval := time.Duration(d.config.RetryInterval) * time.Second
	if retryInterval <= 0 {
		retryInterval = 60 * time.Second
	}

	var jsonStr string
	var err error
	for attempt := 1; attempt <= retryTimes; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		jsonStr, err = d.llmClient.SummarizeChannel(ctx, d.config.Mode, guildName, channelName, transcriptText)
		if err == nil {
			return jsonStr, nil
		}

		logger.Warnf("[Digest] 频道 #%s 摘要生成失败 (第 %d/%d 次): %v", channelName, attempt, retryTimes, err)
		if attempt < retryTimes {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}
	return "", fmt.Errorf("已重试 %d 次: %w", retryTimes, err)
}

// partialReason 拼接部分覆盖的原因说明
func partialReason(r *ChannelReport) string {
	if r.Dropped > 0 && r.Capped {
		return fmt.Sprintf("达到单频道消息上限，且因上下文预算丢弃了最早的 %d 条消息", r.Dropped)
	}
	if r.Dropped > 0 {
		return fmt.Sprintf("因上下文预算丢弃了最早的 %d 条消息", r.Dropped)
	}
	return "达到单频道消息上限，更早的消息未拉取"
}
