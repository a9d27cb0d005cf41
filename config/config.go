// Package config loads service configuration from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 NOTIFY_SERVER_PORT 覆盖 server.port
const EnvPrefix = "NOTIFY"

type Config struct {
	Server    Server
	Database  Database
	Logger    Logger
	Scheduler Scheduler
	WebSocket WebSocket

	v *viper.Viper
}

type Server struct {
	Host string
	Port int
	// Mode gin的运行模式 debug | release | test
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Database struct {
	// Driver sqlite | postgres | mysql
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
	RetryInterval   time.Duration
	RetryCount      int
}

type Logger struct {
	// Level debug | info | warn | error
	Level string
	// Format json | console
	Format      string
	Development bool
	OutputPaths []string
}

type Scheduler struct {
	// Limiter 同时执行的任务体数量上限
	Limiter      int64
	FireTimeout  time.Duration
	QueryTimeout time.Duration
	// AutoLoad 启动时加载所有激活的任务
	AutoLoad bool
}

type WebSocket struct {
	// ConnectionPolicy replace | close-old | reject-new
	ConnectionPolicy  string
	WriteWait         time.Duration
	PongWait          time.Duration
	MaxMessageSize    int64
	SendBuffer        int
	MessagesPerSecond float64
	Burst             int
	AllowedOrigins    []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "notify.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("database.retry_interval", 2*time.Second)
	v.SetDefault("database.retry_count", 5)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.development", false)
	v.SetDefault("logger.output_paths", []string{"stdout"})

	v.SetDefault("scheduler.limiter", _const.DefaultLimiter)
	v.SetDefault("scheduler.fire_timeout", _const.DefaultFireTimeout)
	v.SetDefault("scheduler.query_timeout", _const.DefaultQueryTimeout)
	v.SetDefault("scheduler.auto_load", true)

	v.SetDefault("websocket.connection_policy", _const.ReplaceConnectionPolicy.String())
	v.SetDefault("websocket.write_wait", 10*time.Second)
	v.SetDefault("websocket.pong_wait", 60*time.Second)
	v.SetDefault("websocket.max_message_size", 64*1024)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.messages_per_second", 20)
	v.SetDefault("websocket.burst", 40)
	v.SetDefault("websocket.allowed_origins", []string{})
}

// Load 读取配置文件，path为空时在默认路径中查找config.yaml，找不到时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/notify_scheduler")
		v.AddConfigPath("$HOME/.notify_scheduler")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return parse(v)
}

func parse(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: Server{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Mode:            v.GetString("server.mode"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: Database{
			Driver:          v.GetString("database.driver"),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
			RetryInterval:   v.GetDuration("database.retry_interval"),
			RetryCount:      v.GetInt("database.retry_count"),
		},
		Logger: Logger{
			Level:       v.GetString("logger.level"),
			Format:      v.GetString("logger.format"),
			Development: v.GetBool("logger.development"),
			OutputPaths: v.GetStringSlice("logger.output_paths"),
		},
		Scheduler: Scheduler{
			Limiter:      v.GetInt64("scheduler.limiter"),
			FireTimeout:  v.GetDuration("scheduler.fire_timeout"),
			QueryTimeout: v.GetDuration("scheduler.query_timeout"),
			AutoLoad:     v.GetBool("scheduler.auto_load"),
		},
		WebSocket: WebSocket{
			ConnectionPolicy:  v.GetString("websocket.connection_policy"),
			WriteWait:         v.GetDuration("websocket.write_wait"),
			PongWait:          v.GetDuration("websocket.pong_wait"),
			MaxMessageSize:    v.GetInt64("websocket.max_message_size"),
			SendBuffer:        v.GetInt("websocket.send_buffer"),
			MessagesPerSecond: v.GetFloat64("websocket.messages_per_second"),
			Burst:             v.GetInt("websocket.burst"),
			AllowedOrigins:    v.GetStringSlice("websocket.allowed_origins"),
		},
		v: v,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "sqlite3", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Scheduler.Limiter <= 0 {
		return fmt.Errorf("scheduler.limiter must be positive, got %d", c.Scheduler.Limiter)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Policy() (_const.ConnectionPolicy, error) {
	return _const.ParseConnectionPolicy(c.WebSocket.ConnectionPolicy)
}

// File 实际读取的配置文件，没有时为空
func (c *Config) File() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

var watchMu sync.Mutex

// Watch 配置文件变化时重新解析并回调，解析失败时保留旧配置并回调onError
func (c *Config) Watch(callback func(*Config), onError func(error)) {
	if c.v == nil || c.File() == "" {
		return
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		watchMu.Lock()
		defer watchMu.Unlock()

		fresh, err := parse(c.v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to reload config %s: %w", e.Name, err))
			}
			return
		}
		callback(fresh)
	})
	c.v.WatchConfig()
}
