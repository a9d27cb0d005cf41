package main

import (
	"context"
	"fmt"

	"github.com/TimeWtr/notify_scheduler"
	"github.com/TimeWtr/notify_scheduler/config"
	"github.com/TimeWtr/notify_scheduler/repository/dao"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app 子命令共享的运行时依赖
type app struct {
	configPath string
	cfg        *config.Config
	zap        *zap.Logger
	level      zap.AtomicLevel
	logger     notify_scheduler.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "notify-scheduler",
		Short:         "Realtime notification delivery and cron job scheduling service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.zap != nil {
				_ = a.zap.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"config file path (default: ./config.yaml if present)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
	)
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	zl, level, err := newZapLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	a.cfg = cfg
	a.zap = zl
	a.level = level
	a.logger = notify_scheduler.NewZapLogger(zl)
	if file := cfg.File(); file != "" {
		a.logger.Info("config loaded", notify_scheduler.String("file", file))
	}
	return nil
}

// openDB 打开数据库并同步表结构
func (a *app) openDB(ctx context.Context) (*gorm.DB, error) {
	d := a.cfg.Database
	db, err := dao.OpenDB(ctx, dao.DBConfig{
		Driver:          d.Driver,
		DSN:             d.DSN,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		SlowThreshold:   d.SlowThreshold,
		RetryInterval:   d.RetryInterval,
		RetryCount:      d.RetryCount,
	}, a.logger.With(notify_scheduler.String("component", "database")))
	if err != nil {
		return nil, err
	}

	if err = dao.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
