package main

import (
	"github.com/TimeWtr/notify_scheduler/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newZapLogger 按配置构建zap，返回的AtomicLevel用于热更新日志级别
func newZapLogger(cfg config.Logger) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	if cfg.Format != "" {
		zcfg.Encoding = cfg.Format
	}
	if len(cfg.OutputPaths) > 0 {
		zcfg.OutputPaths = cfg.OutputPaths
	}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zcfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return l, level, nil
}
