package notify_scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
)

var ErrConnectionRejected = errors.New("connection rejected: user already connected")

// Connection 一个客户端会话的双向通道
type Connection interface {
	// Send 发送一条已序列化的消息，发送队列已满时可阻塞有限时间
	Send(data []byte) error
	Close() error
}

type RegistryOptions func(r *ConnectionRegistry)

// WithConnectionPolicy 设置同一用户重复注册时的处理策略
func WithConnectionPolicy(policy _const.ConnectionPolicy) RegistryOptions {
	return func(r *ConnectionRegistry) {
		r.policy = policy
	}
}

// WithPresenceTimeout 设置在线状态写入的超时时间
func WithPresenceTimeout(timeout time.Duration) RegistryOptions {
	return func(r *ConnectionRegistry) {
		r.timeout = timeout
	}
}

// ConnectionRegistry 用户到存活连接的映射，每个用户最多一个连接
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]Connection

	presence PresenceStore
	policy   _const.ConnectionPolicy
	timeout  time.Duration
	logger   Logger
}

func NewConnectionRegistry(presence PresenceStore, logger Logger, opts ...RegistryOptions) *ConnectionRegistry {
	r := &ConnectionRegistry{
		conns:    make(map[string]Connection),
		presence: presence,
		policy:   _const.ReplaceConnectionPolicy,
		timeout:  _const.DefaultQueryTimeout,
		logger:   logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register 建立userID到conn的映射，并将用户标记为在线。
// 在线状态写入失败只记录日志，不影响注册结果。
func (r *ConnectionRegistry) Register(ctx context.Context, userID string, conn Connection) error {
	r.mu.Lock()
	old, exists := r.conns[userID]
	replaced := exists && old != conn
	if replaced && r.policy == _const.RejectNewConnectionPolicy {
		r.mu.Unlock()
		r.logger.Warn("rejected duplicate connection", String("user_id", userID))
		return ErrConnectionRejected
	}
	r.conns[userID] = conn
	r.mu.Unlock()

	// 旧连接在释放锁之后关闭，Close可能回调UnregisterConnection
	if replaced && r.policy == _const.CloseOldConnectionPolicy {
		if err := old.Close(); err != nil {
			r.logger.Warn("failed to close superseded connection",
				String("user_id", userID), Err(err))
		}
	}

	r.logger.Info("connection registered", String("user_id", userID),
		Any("replaced", replaced))
	r.setOnline(ctx, userID, true)
	return nil
}

// Unregister 删除userID的映射并将用户标记为离线，映射不存在时不做任何事
func (r *ConnectionRegistry) Unregister(ctx context.Context, userID string) {
	r.mu.Lock()
	_, ok := r.conns[userID]
	delete(r.conns, userID)
	r.mu.Unlock()

	if !ok {
		return
	}

	r.logger.Info("connection unregistered", String("user_id", userID))
	r.setOnline(ctx, userID, false)
}

// UnregisterConnection 连接关闭时调用，只有conn仍是当前映射时才注销
func (r *ConnectionRegistry) UnregisterConnection(ctx context.Context, conn Connection) {
	r.mu.Lock()
	userID, ok := r.findLocked(conn)
	if ok {
		delete(r.conns, userID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.logger.Info("connection closed", String("user_id", userID))
	r.setOnline(ctx, userID, false)
}

// SendTo 序列化payload并发送给userID的连接，用户不在线时静默忽略。
// 返回是否交给了连接。
func (r *ConnectionRegistry) SendTo(userID string, payload any) bool {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal outbound message",
			String("user_id", userID), Err(err))
		return false
	}

	if err = conn.Send(data); err != nil {
		r.logger.Warn("failed to send message",
			String("user_id", userID), Err(err))
		return false
	}

	return true
}

// FindUserByConnection 按连接句柄反查用户
func (r *ConnectionRegistry) FindUserByConnection(conn Connection) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked(conn)
}

func (r *ConnectionRegistry) findLocked(conn Connection) (string, bool) {
	for userID, c := range r.conns {
		if c == conn {
			return userID, true
		}
	}
	return "", false
}

func (r *ConnectionRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close 关闭并清空所有连接，进程退出前调用
func (r *ConnectionRegistry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Connection)
	r.mu.Unlock()

	for userID, conn := range conns {
		if err := conn.Close(); err != nil {
			r.logger.Warn("failed to close connection", String("user_id", userID), Err(err))
		}
	}
}

func (r *ConnectionRegistry) setOnline(ctx context.Context, userID string, online bool) {
	if r.presence == nil {
		return
	}

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.presence.SetOnline(lctx, userID, online); err != nil {
		r.logger.Error("failed to update online flag",
			String("user_id", userID), Any("online", online), Err(err))
	}
}
