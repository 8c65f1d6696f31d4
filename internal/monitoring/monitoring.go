// Package monitoring 把交易失败和任务错误上报到 Sentry，未配置 DSN 时不做任何事
package monitoring

import (
	"time"

	"github.com/blues/crowdchain/internal/config"
	"github.com/getsentry/sentry-go"
)

var enabled bool

// Init 初始化 Sentry 客户端
func Init(cfg config.SentryConfig) error {
	if cfg.DSN == "" {
		enabled = false
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	}); err != nil {
		return err
	}
	enabled = true
	return nil
}

// Enabled 是否已启用上报
func Enabled() bool {
	return enabled
}

func Message(msg string) {
	if enabled {
		sentry.CaptureMessage(msg)
	}
}

func Error(err error) {
	if enabled && err != nil {
		sentry.CaptureException(err)
	}
}

// Flush 退出前等待事件发送完成
func Flush() {
	if enabled {
		sentry.Flush(2 * time.Second)
	}
}
