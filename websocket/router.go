package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TimeWtr/notify_scheduler"
	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
)

const (
	MessageTypeRegister   = "register"
	MessageTypeMarkAsRead = "markAsRead"
	MessageTypeError      = "error"
)

// InboundMessage 客户端发来的消息
type InboundMessage struct {
	Type           string `json:"type"`
	UserID         string `json:"userId,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
}

// Registry 连接注册表
type Registry interface {
	Register(ctx context.Context, userID string, conn notify_scheduler.Connection) error
	UnregisterConnection(ctx context.Context, conn notify_scheduler.Connection)
}

// Inbox 连接相关的通知操作
type Inbox interface {
	DeliverUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) (domain.Notification, error)
}

// Router 分发客户端消息，格式错误或未知类型的消息记录日志后丢弃
type Router struct {
	registry Registry
	inbox    Inbox
	logger   notify_scheduler.Logger
	timeout  time.Duration
}

func NewRouter(registry Registry, inbox Inbox, logger notify_scheduler.Logger, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = _const.DefaultQueryTimeout
	}
	return &Router{
		registry: registry,
		inbox:    inbox,
		logger:   logger,
		timeout:  timeout,
	}
}

func (r *Router) HandleMessage(ctx context.Context, conn notify_scheduler.Connection, data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Warn("invalid websocket message", notify_scheduler.Err(err),
			notify_scheduler.String("raw", string(data)))
		return
	}

	switch msg.Type {
	case MessageTypeRegister:
		if msg.UserID == "" {
			r.logger.Warn("register message missing userId")
			return
		}
		r.register(ctx, conn, msg.UserID)

	case MessageTypeMarkAsRead:
		if msg.NotificationID == "" {
			r.logger.Warn("markAsRead message missing notificationId")
			return
		}
		r.markAsRead(ctx, msg.NotificationID)

	case "":
		r.logger.Warn("websocket message missing type", notify_scheduler.String("raw", string(data)))

	default:
		r.logger.Warn("unknown websocket message type", notify_scheduler.String("type", msg.Type))
	}
}

// Disconnect 连接关闭时调用
func (r *Router) Disconnect(ctx context.Context, conn notify_scheduler.Connection) {
	r.registry.UnregisterConnection(ctx, conn)
}

func (r *Router) register(ctx context.Context, conn notify_scheduler.Connection, userID string) {
	if err := r.registry.Register(ctx, userID, conn); err != nil {
		r.logger.Warn("websocket register failed",
			notify_scheduler.String("user_id", userID), notify_scheduler.Err(err))
		if errors.Is(err, notify_scheduler.ErrConnectionRejected) {
			r.reply(conn, err.Error())
			_ = conn.Close()
		}
		return
	}

	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.inbox.DeliverUnread(lctx, userID)
	if err != nil {
		r.logger.Error("failed to deliver unread notifications",
			notify_scheduler.String("user_id", userID), notify_scheduler.Err(err))
		return
	}
	r.logger.Info("websocket registered",
		notify_scheduler.String("user_id", userID), notify_scheduler.Int("unread_sent", n))
}

func (r *Router) markAsRead(ctx context.Context, id string) {
	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := r.inbox.MarkRead(lctx, id); err != nil {
		r.logger.Warn("failed to mark notification as read",
			notify_scheduler.String("notification_id", id), notify_scheduler.Err(err))
	}
}

func (r *Router) reply(conn notify_scheduler.Connection, msg string) {
	data, err := json.Marshal(notify_scheduler.OutboundMessage{
		Type: MessageTypeError,
		Data: map[string]string{"message": msg},
	})
	if err != nil {
		return
	}
	_ = conn.Send(data)
}
