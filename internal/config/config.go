package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type Discord struct {
	Token            string   `yaml:"Token"`            // Bot Token
	GuildID          string   `yaml:"GuildID"`          // 默认服务器ID，可被命令行参数覆盖
	NotifyChannelIds []string `yaml:"NotifyChannelIds"` // 摘要通知的目标频道ID列表（daemon 模式）
}

type LLM struct {
	BaseURL   string `yaml:"BaseURL"` // 兼容 OpenAI API 的端点
	APIKey    string `yaml:"APIKey"`
	Model     string `yaml:"Model"`     // 如 gpt-4o, deepseek-chat, qwen-plus
	MaxTokens int    `yaml:"MaxTokens"` // 模型上下文窗口大小
}

type Digest struct {
	Mode          string `yaml:"Mode"`          // "overview" / "hot_topics"
	LookbackDays  int    `yaml:"LookbackDays"`  // 回溯天数，1=仅最近一天
	PageSize      int    `yaml:"PageSize"`      // 分页大小，Discord 上限 100
	MaxMessages   int    `yaml:"MaxMessages"`   // 单频道最大消息数
	Concurrency   int    `yaml:"Concurrency"`   // 并发拉取的频道数
	RetryTimes    int    `yaml:"RetryTimes"`    // 总结失败重试次数，默认 3
	RetryInterval int    `yaml:"RetryInterval"` // 重试间隔（秒），默认 60
	Cron          string `yaml:"Cron"`          // cron 表达式，daemon 模式必填，如 "0 23 * * *"
}

type Config struct {
	Sock5Proxy Sock5Proxy `yaml:"Sock5Proxy"`
	Discord    Discord    `yaml:"Discord"`
	LLM        LLM        `yaml:"LLM"`
	Digest     Digest     `yaml:"Digest"`
}

func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var c Config
	err = yaml.Unmarshal([]byte(data), &c)
	if err != nil {
		return nil, err
	}

	c.applyDefaults()

	// 验证配置
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// applyDefaults 填充缺省值
func (c *Config) applyDefaults() {
	if c.Digest.Mode == "" {
		c.Digest.Mode = "overview"
	}
	if c.Digest.LookbackDays <= 0 {
		c.Digest.LookbackDays = 1
	}
	if c.Digest.PageSize <= 0 {
		c.Digest.PageSize = 100
	}
	if c.Digest.MaxMessages <= 0 {
		c.Digest.MaxMessages = 500
	}
	if c.Digest.Concurrency <= 0 {
		c.Digest.Concurrency = 4
	}
	if c.Digest.RetryTimes <= 0 {
		c.Digest.RetryTimes = 3
	}
	if c.Digest.RetryInterval <= 0 {
		c.Digest.RetryInterval = 60
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	// 验证 Discord
	if c.Discord.Token == "" {
		return fmt.Errorf("Discord.Token 不能为空")
	}

	// 验证 LLM
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM.APIKey 不能为空")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM.BaseURL 不能为空")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM.Model 不能为空")
	}
	// 需大于输入预算预留的 2000 tokens，否则没有输入空间
	if c.LLM.MaxTokens <= 2000 {
		return fmt.Errorf("LLM.MaxTokens 必须大于 2000")
	}

	// 验证 Digest
	if c.Digest.Mode != "overview" && c.Digest.Mode != "hot_topics" {
		return fmt.Errorf("Digest.Mode 必须是 'overview' 或 'hot_topics'")
	}
	if c.Digest.PageSize > 100 {
		return fmt.Errorf("Digest.PageSize 不能超过 100（Discord API 上限）")
	}

	return nil
}
