// Package logger 构建 zap 日志器
package logger

import (
	"fmt"

	"github.com/ashwinyue/qa-grader/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 根据配置创建日志器
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}
