package svc

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/fachebot/guild-digest-bot/internal/config"
	"github.com/fachebot/guild-digest-bot/internal/discord"
	"github.com/fachebot/guild-digest-bot/internal/llm"
	"github.com/fachebot/guild-digest-bot/internal/logger"
	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	Session        *discordgo.Session
	TransportProxy *http.Transport
	DiscordClient  *discord.Client
	LLMClient      *llm.Client
}

func NewServiceContext(c *config.Config) *ServiceContext {
	// 创建SOCKS5代理
	var transportProxy *http.Transport
	if c.Sock5Proxy.Enable {
		socks5Proxy := fmt.Sprintf("%s:%d", c.Sock5Proxy.Host, c.Sock5Proxy.Port)
		dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
		if err != nil {
			logger.Fatalf("创建SOCKS5代理失败, %v", err)
		}

		transportProxy = &http.Transport{
			Dial:            dialer.Dial,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	// 创建 Discord 会话（仅 REST，不建立网关连接）
	session, err := discordgo.New("Bot " + c.Discord.Token)
	if err != nil {
		logger.Fatalf("创建Discord会话失败, %v", err)
	}
	if transportProxy != nil {
		session.Client = &http.Client{Transport: transportProxy}
	}

	svcCtx := &ServiceContext{
		Config:         c,
		Session:        session,
		TransportProxy: transportProxy,
		DiscordClient:  discord.NewClient(session),
		LLMClient:      llm.NewClient(&c.LLM),
	}
	return svcCtx
}
