package notify_scheduler

import (
	"context"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
)

// JobStore 任务定义的持久化
type JobStore interface {
	// ListActive 返回全部激活的任务定义，按创建时间升序
	ListActive(ctx context.Context) ([]domain.CronJob, error)
	// SetActive 修改任务定义的激活状态
	SetActive(ctx context.Context, id string, active bool) (domain.CronJob, error)
	// UpdateLastRun 记录一次成功执行
	UpdateLastRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) error
}

// NotificationStore 通知记录的持久化
type NotificationStore interface {
	CreateBatch(ctx context.Context, ns []domain.Notification) error
	Create(ctx context.Context, n domain.Notification) error
	// FindUnread 返回用户的未读通知，按创建时间倒序
	FindUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) (domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	// FindDueScheduled 返回scheduledAt <= now且未发送的通知
	FindDueScheduled(ctx context.Context, now time.Time) ([]domain.Notification, error)
	MarkSent(ctx context.Context, id string) error
	// CountUnreadByUser 返回至少有一条未读通知的用户及其未读数量
	CountUnreadByUser(ctx context.Context) ([]domain.UnreadCount, error)
}

// PresenceStore 用户在线状态的持久化
type PresenceStore interface {
	// SetOnline 修改在线状态，用户不存在时创建
	SetOnline(ctx context.Context, userID string, online bool) error
}

// UserStore 用户查询
type UserStore interface {
	PresenceStore
	ListAll(ctx context.Context) ([]domain.User, error)
	ListByRole(ctx context.Context, role _const.Role) ([]domain.User, error)
}
