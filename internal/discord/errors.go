package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// 错误分类，调用方使用 errors.Is 判断
var (
	// ErrAuth 凭证无效或已过期，整个运行应立即终止
	ErrAuth = errors.New("discord: 凭证无效或已过期")
	// ErrNotFound 服务器或频道不存在（或无访问权限）
	ErrNotFound = errors.New("discord: 资源不存在或无权访问")
	// ErrRateLimit 平台限流，可退避重试
	ErrRateLimit = errors.New("discord: 请求被限流")
)

// wrapAPIError 将 discordgo 的错误映射到本地错误分类
func wrapAPIError(op string, err error) error {
	if err == nil {
		return nil
	}

	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%s: %w (retry after %s)", op, ErrRateLimit, rateErr.RetryAfter)
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", op, ErrAuth)
		case http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", op, ErrRateLimit)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
