package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fachebot/guild-digest-bot/internal/config"
	"github.com/fachebot/guild-digest-bot/internal/digest"
	"github.com/fachebot/guild-digest-bot/internal/logger"
	"github.com/fachebot/guild-digest-bot/internal/notify"
	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron     *cron.Cron
	digester *digest.Digester
	notifier *notify.Notifier
	guildID  string
	config   *config.Digest
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	runMu    sync.Mutex
}

func NewScheduler(
	digester *digest.Digester,
	notifier *notify.Notifier,
	guildID string,
	cfg *config.Digest,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		digester: digester,
		notifier: notifier,
		guildID:  guildID,
		config:   cfg,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	if s.config.Cron == "" {
		return fmt.Errorf("daemon 模式必须配置 Digest.Cron")
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	// 注册定时摘要任务
	_, err := s.cron.AddFunc(s.config.Cron, s.runDigest)
	if err != nil {
		return fmt.Errorf("注册定时摘要任务失败: %w", err)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] 调度器已启动，定时摘要任务: %s", s.config.Cron)
	return nil
}

// Stop 停止调度器，取消正在进行的运行
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("[Scheduler] 调度器已停止")
}

// runDigest 执行定时摘要任务（cron 触发）。上一轮未结束时跳过本轮，不重叠执行。
func (s *Scheduler) runDigest() {
	if !s.runMu.TryLock() {
		logger.Warnf("[Scheduler] 上一轮摘要仍在执行，跳过本轮")
		return
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		logger.Infof("[Scheduler] 任务已取消，退出")
		return
	default:
	}

	logger.Infof("[Scheduler] 开始执行定时摘要，服务器: %s", s.guildID)

	report, err := s.digester.Run(ctx, s.guildID)
	if err != nil {
		logger.Errorf("[Scheduler] 摘要执行失败: %v", err)
		return
	}

	content := digest.FormatReportForDisplay(report)
	if content == "" {
		logger.Infof("[Scheduler] 摘要内容为空，跳过通知")
		return
	}

	// 通知失败仅重试发送，不重新生成摘要
	notifyRetryTimes := 2
	retryInterval := time.Duration(s.config.RetryInterval) * time.Second
	if retryInterval <= 0 {
		retryInterval = 60 * time.Second
	}
	for attempt := 1; attempt <= notifyRetryTimes; attempt++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err = s.notifier.Notify(ctx, content)
		if err == nil {
			logger.Infof("[Scheduler] 定时摘要完成并已通知")
			return
		}
		logger.Warnf("[Scheduler] 通知发送失败 (第 %d/%d 次): %v", attempt, notifyRetryTimes, err)
		if attempt < notifyRetryTimes {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryInterval / 2):
			}
		}
	}
	logger.Errorf("[Scheduler] 通知发送失败，已重试 %d 次", notifyRetryTimes)
}
