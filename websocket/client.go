package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/TimeWtr/notify_scheduler"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	ErrSendBufferFull = errors.New("websocket send buffer full")
	ErrClientClosed   = errors.New("websocket client closed")
)

// Client 一个websocket连接，实现notify_scheduler.Connection
type Client struct {
	id      string
	conn    *websocket.Conn
	router  *Router
	cfg     Config
	logger  notify_scheduler.Logger
	limiter *rate.Limiter

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, router *Router, cfg Config, logger notify_scheduler.Logger) *Client {
	id := uuid.NewString()
	cfg = cfg.withDefaults()
	return &Client{
		id:      id,
		conn:    conn,
		router:  router,
		cfg:     cfg,
		logger:  logger.With(notify_scheduler.String("client_id", id)),
		limiter: rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst),
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send 写入发送队列，队列已满时最多等待WriteWait
func (c *Client) Send(data []byte) error {
	return c.SendContext(context.Background(), data)
}

// SendContext 写入发送队列，队列已满时阻塞直到写协程腾出空间、
// 连接关闭、ctx结束或超过WriteWait
func (c *Client) SendContext(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
	}

	timer := time.NewTimer(c.cfg.WriteWait)
	defer timer.Stop()
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrSendBufferFull
	}
}

// Close 通知写协程发送close帧并关闭连接，可重复调用
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// ReadPump 读取客户端消息交给Router，连接断开时注销
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.router.Disconnect(ctx, c)
		_ = c.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", notify_scheduler.Err(err))
			}
			return
		}

		// 超过速率的消息延后处理而不是丢弃
		if err = c.limiter.Wait(ctx); err != nil {
			return
		}

		c.router.HandleMessage(ctx, c, data)
	}
}

// WritePump 将发送队列写入连接并定时发送ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Error("websocket write error", notify_scheduler.Err(err))
				_ = c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}

		case <-c.done:
			c.drain()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}

// drain 关闭前写出队列中剩余的消息
func (c *Client) drain() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
