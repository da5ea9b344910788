package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fachebot/guild-digest-bot/internal/config"
	"github.com/sashabaranov/go-openai"
)

// ErrModel 模型调用失败
var ErrModel = errors.New("llm: 模型调用失败")

// openAIClientInterface 定义 OpenAI 客户端接口，便于测试
type openAIClientInterface interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	config         *config.LLM
	openaiClient   openAIClientInterface
	maxInputTokens int
}

func NewClient(cfg *config.LLM) *Client {
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = cfg.BaseURL

	client := &Client{
		config:         cfg,
		openaiClient:   openai.NewClientWithConfig(openaiConfig),
		maxInputTokens: cfg.MaxTokens - 2000, // 预留 2000 tokens 给 system prompt 和输出
	}

	return client
}

// MaxInputTokens 模型输入的 token 预算（上下文窗口减去预留）
func (c *Client) MaxInputTokens() int {
	return c.maxInputTokens
}

// SummarizeChannel 总结单个频道的消息记录，返回 JSON 字符串。
// mode 为分析模式（overview / hot_topics），决定提示词模板。
func (c *Client) SummarizeChannel(ctx context.Context, mode, guildName, channelName, transcriptText string) (string, error) {
	if strings.TrimSpace(transcriptText) == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPromptForMode(mode)},
			{Role: openai.ChatMessageRoleUser, Content: renderUserPrompt(guildName, channelName, transcriptText)},
		},
		Temperature: 0.3,
		MaxTokens:   4000,
	}

	resp, err := c.openaiClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModel, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: API 返回空结果", ErrModel)
	}

	return stripCodeFence(resp.Choices[0].Message.Content), nil
}

// stripCodeFence 去除模型输出中可能包裹 JSON 的代码块标记
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
