// Package service implements the business logic layer
// Package service 实现业务逻辑层
package service

import (
	"time"

	"github.com/haierkeys/fast-note-offline/pkg/logger"
	"github.com/haierkeys/fast-note-offline/pkg/retry"
	"go.uber.org/zap"
)

// ServiceConfig service layer configuration
// ServiceConfig 服务层配置
type ServiceConfig struct {
	Sync SyncServiceConfig // Sync related config // 同步相关配置
}

// SyncServiceConfig sync engine configuration
// SyncServiceConfig 同步引擎配置
type SyncServiceConfig struct {
	RetryAttempts     int           // Total attempts per remote call // 每次远端调用的总尝试次数
	RetryInitialDelay time.Duration // Delay before the second attempt // 第二次尝试前的等待
	RetryMultiplier   float64       // Backoff multiplier // 退避倍数
	Retention         time.Duration // Soft delete retention, 0 disables purge // 软删除保留时间，0 表示不清理
}

// DefaultServiceConfig 默认配置
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Sync: SyncServiceConfig{
			RetryAttempts:     retry.DefaultMaxAttempts,
			RetryInitialDelay: retry.DefaultInitialDelay,
			RetryMultiplier:   retry.DefaultBackoffMultiplier,
			Retention:         30 * 24 * time.Hour,
		},
	}
}

// retryOptions 远端调用的重试参数，每次重试记录一条日志
func (c SyncServiceConfig) retryOptions(log *zap.Logger, method string) []retry.Option {
	return []retry.Option{
		retry.WithOptions(retry.Options{
			MaxAttempts:       c.RetryAttempts,
			InitialDelay:      c.RetryInitialDelay,
			BackoffMultiplier: c.RetryMultiplier,
		}),
		retry.WithOnRetry(func(attempt int, err error) {
			log.Warn("remote call failed, retrying",
				zap.String(logger.FieldMethod, method),
				zap.Int(logger.FieldAttempt, attempt),
				zap.Error(err))
		}),
	}
}
