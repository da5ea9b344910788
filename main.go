package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fachebot/guild-digest-bot/internal/config"
	"github.com/fachebot/guild-digest-bot/internal/digest"
	"github.com/fachebot/guild-digest-bot/internal/logger"
	"github.com/fachebot/guild-digest-bot/internal/mcpserver"
	"github.com/fachebot/guild-digest-bot/internal/notify"
	"github.com/fachebot/guild-digest-bot/internal/scheduler"
	"github.com/fachebot/guild-digest-bot/internal/svc"
)

var (
	configFile = flag.String("f", "etc/config.yaml", "the config file")
	guildID    = flag.String("guild", "", "Discord 服务器ID，覆盖配置文件中的 Discord.GuildID")
	daemon     = flag.Bool("daemon", false, "daemon 模式，按 cron 定时生成摘要并发送到通知频道")
	serveMCP   = flag.Bool("serve-mcp", false, "以 MCP Stdio 服务模式运行，暴露消息检索工具")
)

func main() {
	flag.Parse()

	// 读取配置文件
	c, err := config.LoadFromFile(*configFile)
	if err != nil {
		logger.Fatalf("读取配置文件失败, %s", err)
	}

	// 创建服务上下文
	svcCtx := svc.NewServiceContext(c)

	// MCP 服务模式：stdout 专用于协议流量，阻塞运行直到连接关闭
	if *serveMCP {
		mcpServer := mcpserver.NewServer(svcCtx.DiscordClient)
		if err := mcpServer.ServeStdio(); err != nil {
			logger.Fatalf("[MCP] 服务运行失败: %s", err)
		}
		return
	}

	guild := c.Discord.GuildID
	if *guildID != "" {
		guild = *guildID
	}
	if guild == "" {
		logger.Fatalf("未指定服务器ID，请配置 Discord.GuildID 或使用 -guild 参数")
	}

	digesterInstance := digest.NewDigester(
		svcCtx.DiscordClient,
		svcCtx.LLMClient,
		&c.Digest,
	)

	// daemon 模式：定时生成摘要并发送到通知频道
	if *daemon {
		notifierInstance := notify.NewNotifier(svcCtx.Session, c.Discord.NotifyChannelIds)
		schedulerInstance := scheduler.NewScheduler(
			digesterInstance,
			notifierInstance,
			guild,
			&c.Digest,
		)
		if err := schedulerInstance.Start(); err != nil {
			logger.Fatalf("[Scheduler] 启动调度器失败: %s", err)
		}

		// 等待程序退出
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch

		// 优雅关闭
		logger.Infof("正在关闭服务...")
		schedulerInstance.Stop()
		logger.Infof("服务已停止")
		return
	}

	// 单次模式：执行完整摘要流程并打印到标准输出，Ctrl+C 可中断
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		logger.Infof("收到退出信号，正在取消...")
		cancel()
	}()

	report, err := digesterInstance.Run(ctx, guild)
	if err != nil {
		logger.Fatalf("摘要执行失败: %s", err)
	}

	fmt.Println(digest.FormatReportForDisplay(report))
}
