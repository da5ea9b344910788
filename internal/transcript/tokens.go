package transcript

import (
	"strings"
	"sync"

	"github.com/fachebot/guild-digest-bot/internal/logger"
	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder     *tiktoken.Tiktoken
	tokenEncoderOnce sync.Once
)

// initTokenEncoder 初始化 tiktoken 编码器，失败时降级为估算
func initTokenEncoder() {
	tokenEncoderOnce.Do(func() {
		// cl100k_base 覆盖 GPT-3.5/GPT-4 系列及多数兼容模型
		tk, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logger.Warnf("[Transcript] 初始化 tiktoken 失败，降级为估算: %v", err)
			return
		}
		tokenEncoder = tk
	})
}

// CountTokens 统计文本的 token 数量。
// 优先使用 tiktoken 精确计数，不可用时使用估算。
func CountTokens(text string) int {
	initTokenEncoder()
	if tokenEncoder != nil {
		return len(tokenEncoder.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// estimateTokens 估算文本的 token 数量
func estimateTokens(text string) int {
	// 简单估算：中文约 1.5 token/字，英文约 1.3 token/词
	chineseChars := 0
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			chineseChars++
		}
	}

	// 英文词数估算（简单按空格分割）
	englishWords := len(strings.Fields(text))

	tokens := int(float64(chineseChars)*1.5 + float64(englishWords)*1.3)
	if tokens < len(text)/4 {
		// 如果估算值太小，使用字符数的 1/4 作为下限
		tokens = len(text) / 4
	}

	return tokens
}
