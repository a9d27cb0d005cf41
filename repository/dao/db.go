package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/TimeWtr/notify_scheduler"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type DBConfig struct {
	// Driver sqlite | postgres | mysql
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SlowThreshold 超过该耗时的查询记录警告日志
	SlowThreshold time.Duration
	// 连接失败时的重试
	RetryInterval time.Duration
	RetryCount    int
}

func dialector(cfg DBConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "sqlite3", "":
		return sqlite.Open(cfg.DSN), nil
	case "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// gormWriter 将gorm的日志输出转接到Logger
type gormWriter struct {
	l notify_scheduler.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.l.Warn(fmt.Sprintf(format, args...))
}

// OpenDB 按驱动打开数据库连接，连接失败时按固定间隔重试
func OpenDB(ctx context.Context, cfg DBConfig, logger notify_scheduler.Logger) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	gcfg := &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		Logger: gormlogger.New(gormWriter{l: logger}, gormlogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var db *gorm.DB
	strategy := notify_scheduler.NewFixedRetryStrategy(cfg.RetryInterval, cfg.RetryCount)
	err = notify_scheduler.Retry(ctx, strategy, func(ctx context.Context) error {
		var oerr error
		db, oerr = gorm.Open(d, gcfg)
		if oerr != nil {
			logger.Warn("failed to open database", notify_scheduler.String("driver", cfg.Driver),
				notify_scheduler.Err(oerr))
			return oerr
		}

		sqlDB, oerr := db.DB()
		if oerr != nil {
			return oerr
		}
		lctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		return sqlDB.PingContext(lctx)
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// AutoMigrate 创建或更新所有表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &CronJob{}, &Notification{})
}
