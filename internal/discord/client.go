package discord

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fachebot/guild-digest-bot/internal/logger"
)

const (
	// maxPageSize Discord 消息历史接口单页上限
	maxPageSize = 100
	// rateLimitRetryTimes 限流退避重试次数上限
	rateLimitRetryTimes = 3
	// rateLimitBaseDelay 限流退避基础间隔，按次数指数增长
	rateLimitBaseDelay = time.Second
	// maxUserGuilds 服务器列表接口单次上限
	maxUserGuilds = 200
)

// session 抽象 discordgo 会话接口，便于测试注入 mock
type session interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	UserGuilds(limit int, beforeID, afterID string, withCounts bool, options ...discordgo.RequestOption) ([]*discordgo.UserGuild, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildThreadsActive(guildID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesPinned(channelID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

type Client struct {
	session session
}

func NewClient(s *discordgo.Session) *Client {
	return &Client{session: s}
}

// FetchGuild 获取服务器信息
func (c *Client) FetchGuild(ctx context.Context, guildID string) (*Guild, error) {
	g, err := c.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError(fmt.Sprintf("获取服务器 %s", guildID), err)
	}
	return &Guild{
		ID:          g.ID,
		Name:        g.Name,
		MemberCount: g.ApproximateMemberCount,
	}, nil
}

// ListUserGuilds 枚举 Bot 可访问的全部服务器
func (c *Client) ListUserGuilds(ctx context.Context) ([]*Guild, error) {
	guilds, err := c.session.UserGuilds(maxUserGuilds, "", "", true, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError("枚举可访问的服务器", err)
	}
	result := make([]*Guild, 0, len(guilds))
	for _, g := range guilds {
		result = append(result, &Guild{
			ID:          g.ID,
			Name:        g.Name,
			MemberCount: g.ApproximateMemberCount,
		})
	}
	return result, nil
}

// ListGuildChannels 枚举服务器的文字频道及活跃话题。
// 返回顺序稳定：频道按 Position 再按 ID 排序，每个频道之后紧跟其话题。
func (c *Client) ListGuildChannels(ctx context.Context, guildID string) ([]*Channel, error) {
	channels, err := c.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError(fmt.Sprintf("枚举服务器 %s 的频道", guildID), err)
	}

	textChannels := make([]*Channel, 0, len(channels))
	for _, ch := range channels {
		if !isTextChannel(ch.Type) {
			continue
		}
		textChannels = append(textChannels, toChannel(ch))
	}
	sort.SliceStable(textChannels, func(i, j int) bool {
		if textChannels[i].Position != textChannels[j].Position {
			return textChannels[i].Position < textChannels[j].Position
		}
		return textChannels[i].ID < textChannels[j].ID
	})

	// 活跃话题按父频道归组，附加在父频道之后
	threadsByParent := make(map[string][]*Channel)
	threadList, err := c.session.GuildThreadsActive(guildID, discordgo.WithContext(ctx))
	if err != nil {
		// 话题枚举失败不致命，降级为仅频道
		logger.Warnf("[Discord] 枚举服务器 %s 的活跃话题失败: %v", guildID, err)
	} else {
		for _, th := range threadList.Threads {
			thread := toChannel(th)
			threadsByParent[thread.ParentID] = append(threadsByParent[thread.ParentID], thread)
		}
		for _, group := range threadsByParent {
			sort.SliceStable(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		}
	}

	result := make([]*Channel, 0, len(textChannels))
	for _, ch := range textChannels {
		result = append(result, ch)
		result = append(result, threadsByParent[ch.ID]...)
	}
	return result, nil
}

// ListThreads 枚举指定频道下的活跃话题
func (c *Client) ListThreads(ctx context.Context, channelID string) ([]*Channel, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError(fmt.Sprintf("获取频道 %s", channelID), err)
	}

	threadList, err := c.session.GuildThreadsActive(ch.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError(fmt.Sprintf("枚举频道 %s 的话题", channelID), err)
	}

	threads := make([]*Channel, 0)
	for _, th := range threadList.Threads {
		if th.ParentID != channelID {
			continue
		}
		threads = append(threads, toChannel(th))
	}
	sort.SliceStable(threads, func(i, j int) bool { return threads[i].ID < threads[j].ID })
	return threads, nil
}

// ChannelDetails 获取频道详情
func (c *Client) ChannelDetails(ctx context.Context, channelID string) (*Channel, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError(fmt.Sprintf("获取频道 %s", channelID), err)
	}
	return toChannel(ch), nil
}

// FetchOptions 消息拉取选项
type FetchOptions struct {
	PageSize    int       // 每页条数，0 或超限时取 100
	MaxMessages int       // 单频道最大消息数，0 表示不限
	After       time.Time // 回溯边界，早于该时间的消息不再拉取；零值表示不限
	Before      string    // 起始游标（消息ID），空表示从最新消息开始
}

// FetchMessages 分页拉取频道消息，按时间从旧到新返回。
// 终止条件：返回页小于请求页、最旧消息越过回溯边界、或达到消息数上限（此时 capped 为 true）。
func (c *Client) FetchMessages(ctx context.Context, channelID string, opts FetchOptions) (msgs []*Message, capped bool, err error) {
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	before := opts.Before
	collected := make([]*Message, 0)

	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		default:
		}

		page, err := c.fetchPage(ctx, channelID, pageSize, before)
		if err != nil {
			return nil, false, err
		}

		// 页内消息从新到旧
		crossed := false
		for _, m := range page {
			if !opts.After.IsZero() && m.Timestamp.Before(opts.After) {
				crossed = true
				break
			}
			collected = append(collected, toMessage(m))
			if opts.MaxMessages > 0 && len(collected) >= opts.MaxMessages {
				capped = true
				break
			}
		}
		if crossed || capped {
			break
		}
		if len(page) < pageSize {
			break
		}
		before = page[len(page)-1].ID
	}

	// 反转为从旧到新
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, capped, nil
}

// FetchPinnedMessages 获取频道的置顶消息
func (c *Client) FetchPinnedMessages(ctx context.Context, channelID string) ([]*Message, error) {
	pinned, err := c.session.ChannelMessagesPinned(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapAPIError(fmt.Sprintf("获取频道 %s 的置顶消息", channelID), err)
	}
	msgs := make([]*Message, 0, len(pinned))
	for _, m := range pinned {
		msgs = append(msgs, toMessage(m))
	}
	return msgs, nil
}

// fetchPage 拉取单页消息，遇到限流按指数退避重试
func (c *Client) fetchPage(ctx context.Context, channelID string, limit int, before string) ([]*discordgo.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= rateLimitRetryTimes; attempt++ {
		page, err := c.session.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
		if err == nil {
			return page, nil
		}

		lastErr = wrapAPIError(fmt.Sprintf("拉取频道 %s 消息", channelID), err)
		if !errors.Is(lastErr, ErrRateLimit) {
			return nil, lastErr
		}

		if attempt < rateLimitRetryTimes {
			delay := rateLimitBaseDelay << (attempt - 1)
			logger.Warnf("[Discord] 频道 %s 被限流 (第 %d/%d 次)，%v 后重试", channelID, attempt, rateLimitRetryTimes, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("拉取频道消息失败，已重试 %d 次: %w", rateLimitRetryTimes, lastErr)
}

func isTextChannel(t discordgo.ChannelType) bool {
	return t == discordgo.ChannelTypeGuildText || t == discordgo.ChannelTypeGuildNews
}

func isThreadChannel(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return true
	}
	return false
}

func toChannel(ch *discordgo.Channel) *Channel {
	out := &Channel{
		ID:       ch.ID,
		Name:     ch.Name,
		GuildID:  ch.GuildID,
		ParentID: ch.ParentID,
		Position: ch.Position,
		Topic:    ch.Topic,
		IsThread: isThreadChannel(ch.Type),
	}
	if out.IsThread {
		out.MessageCount = ch.MessageCount
		out.MemberCount = ch.MemberCount
		if ch.ThreadMetadata != nil {
			out.Archived = ch.ThreadMetadata.Archived
		}
	}
	return out
}

func toMessage(m *discordgo.Message) *Message {
	authorName := ""
	if m.Author != nil {
		authorName = m.Author.Username
		if m.Author.GlobalName != "" {
			authorName = m.Author.GlobalName
		}
	}
	return &Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		AuthorName: authorName,
		Text:       m.Content,
		Timestamp:  m.Timestamp,
		Reactions:  toReactions(m.Reactions),
	}
}

func toReactions(reactions []*discordgo.MessageReactions) []Reaction {
	if len(reactions) == 0 {
		return nil
	}
	out := make([]Reaction, 0, len(reactions))
	for _, r := range reactions {
		if r.Emoji == nil {
			continue
		}
		// 自定义表情可能没有名称，退化为表情ID
		emoji := r.Emoji.Name
		if emoji == "" {
			emoji = r.Emoji.ID
		}
		out = append(out, Reaction{Emoji: emoji, Count: r.Count})
	}
	return out
}
