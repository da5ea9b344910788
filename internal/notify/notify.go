package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/fachebot/guild-digest-bot/internal/logger"
)

const (
	MaxMessageLength = 2000 // Discord 消息最大长度
)

// messageSender 发送频道消息（便于测试注入 mock）
type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Notifier struct {
	session    messageSender
	channelIds []string
}

func NewNotifier(session *discordgo.Session, channelIds []string) *Notifier {
	return &Notifier{
		session:    session,
		channelIds: channelIds,
	}
}

// Notify 将摘要内容发送到配置的通知频道
func (n *Notifier) Notify(ctx context.Context, content string) error {
	if content == "" {
		return nil
	}
	if len(n.channelIds) == 0 {
		logger.Warnf("[Notify] 未配置通知频道，跳过发送")
		return nil
	}

	messages := splitMessage(content)

	for _, channelID := range n.channelIds {
		for _, msg := range messages {
			_, err := n.session.ChannelMessageSend(channelID, msg, discordgo.WithContext(ctx))
			if err != nil {
				return fmt.Errorf("发送消息到频道 %s 失败: %w", channelID, err)
			}
		}
		logger.Infof("[Notify] 已发送摘要到频道 %s (%d 条消息)", channelID, len(messages))
	}

	return nil
}

// splitMessage 将消息按长度拆分为多条，优先按段落边界拆分
func splitMessage(content string) []string {
	if len(content) <= MaxMessageLength {
		return []string{content}
	}

	// 按段落拆分
	paragraphs := strings.Split(content, "\n\n")
	if len(paragraphs) == 1 {
		// 如果没有段落分隔，按换行拆分
		paragraphs = strings.Split(content, "\n")
	}

	messages := make([]string, 0)
	currentMsg := ""

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// 单个段落就超长时，按行拆分后硬切
		if len(para) > MaxMessageLength {
			if currentMsg != "" {
				messages = append(messages, currentMsg)
				currentMsg = ""
			}
			messages = append(messages, hardSplit(para)...)
			continue
		}

		testMsg := currentMsg
		if testMsg != "" {
			testMsg += "\n\n"
		}
		testMsg += para

		if len(testMsg) <= MaxMessageLength {
			currentMsg = testMsg
		} else {
			// 当前消息已满，保存并开始新消息
			if currentMsg != "" {
				messages = append(messages, currentMsg)
			}
			currentMsg = para
		}
	}

	if currentMsg != "" {
		messages = append(messages, currentMsg)
	}

	return messages
}

// hardSplit 按行拆分超长段落，单行仍超长时按字节硬切（对齐到 rune 边界）
func hardSplit(para string) []string {
	var out []string
	current := ""

	flush := func() {
		if current != "" {
			out = append(out, current)
			current = ""
		}
	}

	for _, line := range strings.Split(para, "\n") {
		for len(line) > MaxMessageLength {
			flush()
			cut := MaxMessageLength
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			out = append(out, line[:cut])
			line = line[cut:]
		}
		test := current
		if test != "" {
			test += "\n"
		}
		test += line
		if len(test) <= MaxMessageLength {
			current = test
		} else {
			flush()
			current = line
		}
	}
	flush()
	return out
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
