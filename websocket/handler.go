// Package websocket implements the realtime notification channel.
package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TimeWtr/notify_scheduler"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	// SendBuffer 每个连接发送队列的长度
	SendBuffer int
	// 每个连接的入站消息限流
	MessagesPerSecond float64
	Burst             int
	// AllowedOrigins 为空时允许所有来源
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		WriteWait:         10 * time.Second,
		PongWait:          60 * time.Second,
		MaxMessageSize:    64 * 1024,
		SendBuffer:        256,
		MessagesPerSecond: 20,
		Burst:             40,
	}
}

// withDefaults 零值字段使用默认值
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MessagesPerSecond <= 0 {
		c.MessagesPerSecond = d.MessagesPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	return c
}

func (c Config) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Handler handles WebSocket upgrade and connection.
type Handler struct {
	router   *Router
	cfg      Config
	upgrader websocket.Upgrader
	logger   notify_scheduler.Logger
}

func NewHandler(router *Router, cfg Config, logger notify_scheduler.Logger) *Handler {
	h := &Handler{
		router: router,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Handle 升级连接后阻塞读取直到连接关闭
func (h *Handler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", notify_scheduler.Err(err))
		return
	}

	client := NewClient(conn, h.router, h.cfg, h.logger)
	h.logger.Debug("websocket connected", notify_scheduler.String("client_id", client.ID()),
		notify_scheduler.String("remote", c.ClientIP()))

	go client.WritePump()
	client.ReadPump(c.Request.Context())
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}
