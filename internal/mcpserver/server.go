package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/fachebot/guild-digest-bot/internal/discord"
	"github.com/fachebot/guild-digest-bot/internal/logger"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// maxMessagesPerCall 单次工具调用可拉取的消息上限
	maxMessagesPerCall = 500
)

// Server 将消息检索操作以 MCP 工具的形式通过 stdio 暴露
type Server struct {
	discordClient *discord.Client
	mcpServer     *server.MCPServer
}

func NewServer(client *discord.Client) *Server {
	s := &Server{
		discordClient: client,
		mcpServer: server.NewMCPServer(
			"guild-digest",
			"1.0.0",
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// ServeStdio 在 stdio 上运行 MCP 服务，阻塞直到连接关闭
func (s *Server) ServeStdio() error {
	logger.Infof("[MCP] Stdio 服务启动")
	return server.ServeStdio(s.mcpServer)
}

// registerTools 注册全部检索工具
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_channels",
		mcp.WithDescription("列出服务器内的全部文字频道及活跃话题"),
		mcp.WithString("guild_id", mcp.Required(), mcp.Description("Discord 服务器ID")),
	), s.handleListChannels)

	s.mcpServer.AddTool(mcp.NewTool("list_threads",
		mcp.WithDescription("列出指定频道下的活跃话题"),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Discord 频道ID")),
	), s.handleListThreads)

	s.mcpServer.AddTool(mcp.NewTool("get_messages",
		mcp.WithDescription("读取频道的近期消息，按时间从旧到新返回"),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Discord 频道ID")),
		mcp.WithNumber("limit", mcp.Description("拉取的消息条数，最大 500"), mcp.DefaultNumber(100)),
		mcp.WithString("before", mcp.Description("起始游标（消息ID），只返回该消息之前的内容")),
	), s.handleGetMessages)

	s.mcpServer.AddTool(mcp.NewTool("get_pinned_messages",
		mcp.WithDescription("获取频道的全部置顶消息（关键公告和重要内容）"),
		mcp.WithString("channel_id", mcp.Required(), mcp.Description("Discord 频道ID")),
	), s.handleGetPinnedMessages)

	s.mcpServer.AddTool(mcp.NewTool("get_thread_details",
		mcp.WithDescription("分析话题的活跃程度（消息多的话题即热门话题）"),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Discord 话题ID")),
		mcp.WithBoolean("include_recent_messages", mcp.Description("是否附带近期消息"), mcp.DefaultBool(true)),
		mcp.WithNumber("recent_limit", mcp.Description("附带的近期消息条数，最大 10"), mcp.DefaultNumber(5)),
	), s.handleGetThreadDetails)

	s.mcpServer.AddTool(mcp.NewTool("get_all_channels_across_servers",
		mcp.WithDescription("列出 Bot 可访问的全部服务器及其频道"),
	), s.handleGetAllChannelsAcrossServers)

	s.mcpServer.AddTool(mcp.NewTool("get_workspace_structure",
		mcp.WithDescription("获取服务器的结构全貌，包含全部频道与话题"),
		mcp.WithString("guild_id", mcp.Required(), mcp.Description("Discord 服务器ID")),
	), s.handleGetWorkspaceStructure)
}

func (s *Server) handleListChannels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	guildID, err := request.RequireString("guild_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	channels, err := s.discordClient.ListGuildChannels(ctx, guildID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatChannelList(channels)), nil
}

func (s *Server) handleListThreads(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := request.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	threads, err := s.discordClient.ListThreads(ctx, channelID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatChannelList(threads)), nil
}

func (s *Server) handleGetMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := request.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	limit := request.GetInt("limit", 100)
	if limit <= 0 {
		limit = 100
	}
	if limit > maxMessagesPerCall {
		limit = maxMessagesPerCall
	}
	before := request.GetString("before", "")

	msgs, capped, err := s.discordClient.FetchMessages(ctx, channelID, discord.FetchOptions{
		MaxMessages: limit,
		Before:      before,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("获取到 %d 条消息", len(msgs))
	if capped {
		text += "（已达条数上限，更早的消息未返回）"
	}
	text += ":\n\n" + formatMessageList(msgs)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleGetPinnedMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	channelID, err := request.RequireString("channel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	msgs, err := s.discordClient.FetchPinnedMessages(ctx, channelID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(msgs) == 0 {
		return mcp.NewToolResultText("该频道没有置顶消息"), nil
	}

	text := fmt.Sprintf("找到 %d 条置顶消息:\n\n%s", len(msgs), formatPinnedMessages(msgs))
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleGetThreadDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threadID, err := request.RequireString("thread_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	thread, err := s.discordClient.ChannelDetails(ctx, threadID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !thread.IsThread {
		return mcp.NewToolResultError(fmt.Sprintf("频道 %s 不是话题", threadID)), nil
	}

	var recent []*discord.Message
	if request.GetBool("include_recent_messages", true) {
		recentLimit := request.GetInt("recent_limit", 5)
		if recentLimit <= 0 {
			recentLimit = 5
		}
		if recentLimit > 10 {
			recentLimit = 10
		}
		recent, _, err = s.discordClient.FetchMessages(ctx, threadID, discord.FetchOptions{
			MaxMessages: recentLimit,
		})
		if err != nil {
			// 近期消息拉取失败不影响话题详情本身
			logger.Warnf("[MCP] 话题 %s 近期消息拉取失败: %v", threadID, err)
			recent = nil
		}
	}

	return mcp.NewToolResultText(formatThreadDetails(thread, recent)), nil
}

func (s *Server) handleGetAllChannelsAcrossServers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	guilds, err := s.discordClient.ListUserGuilds(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(guilds) == 0 {
		return mcp.NewToolResultText("Bot 没有加入任何服务器"), nil
	}

	sections := make([]string, 0, len(guilds))
	for _, g := range guilds {
		channels, err := s.discordClient.ListGuildChannels(ctx, g.ID)
		if err != nil {
			// 单个服务器枚举失败不影响其余服务器
			logger.Warnf("[MCP] 枚举服务器 %s 的频道失败: %v", g.ID, err)
			sections = append(sections, fmt.Sprintf("🏢 %s (ID: %s)\n频道枚举失败: %v", g.Name, g.ID, err))
			continue
		}
		sections = append(sections, formatGuildChannelList(g, channels))
	}
	return mcp.NewToolResultText(strings.Join(sections, "\n\n")), nil
}

func (s *Server) handleGetWorkspaceStructure(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	guildID, err := request.RequireString("guild_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	guild, err := s.discordClient.FetchGuild(ctx, guildID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channels, err := s.discordClient.ListGuildChannels(ctx, guildID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatWorkspaceStructure(guild, channels)), nil
}
