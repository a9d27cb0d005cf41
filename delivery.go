package notify_scheduler

import (
	"context"
	"fmt"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// MessageRouter 将消息投递给在线用户，ConnectionRegistry是其实现
type MessageRouter interface {
	SendTo(userID string, payload any) bool
	IsOnline(userID string) bool
}

type SystemNotificationInput struct {
	Title       string
	Message     string
	Type        _const.NotificationType
	ScheduledAt *time.Time
}

type UserNotificationInput struct {
	UserID      string
	SenderID    string
	Title       string
	Message     string
	Type        _const.NotificationType
	ScheduledAt *time.Time
}

type DeliveryOptions func(d *NotificationDelivery)

func WithDeliveryClock(now func() time.Time) DeliveryOptions {
	return func(d *NotificationDelivery) {
		d.now = now
	}
}

func WithDeliveryQueryTimeout(timeout time.Duration) DeliveryOptions {
	return func(d *NotificationDelivery) {
		d.timeout = timeout
	}
}

// NotificationDelivery 创建通知记录并推送给在线的接收者
type NotificationDelivery struct {
	notifications NotificationStore
	users         UserStore
	router        MessageRouter
	logger        Logger
	now           func() time.Time
	newID         func() string
	timeout       time.Duration
}

func NewNotificationDelivery(
	notifications NotificationStore,
	users UserStore,
	router MessageRouter,
	logger Logger,
	opts ...DeliveryOptions) *NotificationDelivery {
	d := &NotificationDelivery{
		notifications: notifications,
		users:         users,
		router:        router,
		logger:        logger,
		now:           time.Now,
		newID:         uuid.NewString,
		timeout:       _const.DefaultQueryTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// CreateSystemNotification 为每个已知用户创建一条系统通知。
// ScheduledAt为空时由调用方立即调用Broadcast。
func (d *NotificationDelivery) CreateSystemNotification(ctx context.Context,
	in SystemNotificationInput) ([]domain.Notification, error) {
	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	users, err := d.users.ListAll(lctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	createdAt := d.now().UTC()
	scheduledAt := utcPtr(in.ScheduledAt)
	batch := make([]domain.Notification, 0, len(users))
	for _, u := range users {
		batch = append(batch, domain.Notification{
			ID:          d.newID(),
			UserID:      u.ID,
			Title:       in.Title,
			Message:     in.Message,
			Type:        in.Type.OrDefault(),
			Category:    _const.CategorySystem,
			ScheduledAt: scheduledAt,
			CreatedAt:   createdAt,
		})
	}

	if len(batch) == 0 {
		return batch, nil
	}

	lctx, cancel = context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err = d.notifications.CreateBatch(lctx, batch); err != nil {
		return nil, fmt.Errorf("create system notifications: %w", err)
	}

	d.logger.Info("system notification created",
		String("title", in.Title), Int("recipients", len(batch)),
		Any("scheduled", scheduledAt != nil))
	return batch, nil
}

// CreateUserNotification 创建一条点对点通知
func (d *NotificationDelivery) CreateUserNotification(ctx context.Context,
	in UserNotificationInput) (domain.Notification, error) {
	sender := in.SenderID
	n := domain.Notification{
		ID:          d.newID(),
		UserID:      in.UserID,
		SenderID:    &sender,
		Title:       in.Title,
		Message:     in.Message,
		Type:        in.Type.OrDefault(),
		Category:    _const.CategoryUserToUser,
		ScheduledAt: utcPtr(in.ScheduledAt),
		CreatedAt:   d.now().UTC(),
	}

	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.notifications.Create(lctx, n); err != nil {
		return domain.Notification{}, fmt.Errorf("create user notification: %w", err)
	}

	return n, nil
}

// Deliver 接收者在线时推送通知，返回是否推送
func (d *NotificationDelivery) Deliver(n domain.Notification) bool {
	return d.router.SendTo(n.UserID, NewNotificationMessage(n))
}

// Broadcast 推送一批通知给各自在线的接收者，返回推送数量
func (d *NotificationDelivery) Broadcast(batch []domain.Notification) int {
	sent := 0
	for _, n := range batch {
		if d.Deliver(n) {
			sent++
		}
	}
	return sent
}

func (d *NotificationDelivery) GetUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.notifications.FindUnread(lctx, userID)
}

func (d *NotificationDelivery) MarkRead(ctx context.Context, id string) (domain.Notification, error) {
	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.notifications.MarkRead(lctx, id)
}

func (d *NotificationDelivery) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.notifications.MarkAllRead(lctx, userID)
}

// FlushScheduled 返回所有到期且未发送的定时通知，由调用方推送后MarkSent
func (d *NotificationDelivery) FlushScheduled(ctx context.Context, now time.Time) ([]domain.Notification, error) {
	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.notifications.FindDueScheduled(lctx, now.UTC())
}

func (d *NotificationDelivery) MarkSent(ctx context.Context, id string) error {
	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.notifications.MarkSent(lctx, id)
}

// UnreadCounts 返回至少有一条未读通知的用户
func (d *NotificationDelivery) UnreadCounts(ctx context.Context) ([]domain.UnreadCount, error) {
	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.notifications.CountUnreadByUser(lctx)
}

// DeliverUnread 用户连接后推送其全部未读通知
func (d *NotificationDelivery) DeliverUnread(ctx context.Context, userID string) (int, error) {
	unread, err := d.GetUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load unread notifications: %w", err)
	}

	sent := d.Broadcast(unread)
	d.logger.Debug("unread notifications delivered",
		String("user_id", userID), Int("unread", len(unread)), Int("sent", sent))
	return sent, nil
}

// DeliverDue 推送所有到期的定时通知并标记为已发送，单条失败不影响其余通知
func (d *NotificationDelivery) DeliverDue(ctx context.Context, now time.Time) (int, error) {
	due, err := d.FlushScheduled(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("flush scheduled notifications: %w", err)
	}

	var errs error
	marked := 0
	for _, n := range due {
		if d.router.IsOnline(n.UserID) {
			d.Deliver(n)
		}
		if err = d.MarkSent(ctx, n.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mark notification %s sent: %w", n.ID, err))
			continue
		}
		marked++
	}

	if len(due) > 0 {
		d.logger.Info("scheduled notifications sent",
			Int("due", len(due)), Int("marked", marked))
	}
	return marked, errs
}

// NotifyAdmins 向所有在线的管理员推送任务状态
func (d *NotificationDelivery) NotifyAdmins(ctx context.Context, cronJobID string,
	status _const.CronJobEvent, message string) error {
	lctx, cancel := context.WithTimeout(ctx, d.timeout)
	admins, err := d.users.ListByRole(lctx, _const.RoleAdmin)
	cancel()
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	msg := NewCronJobStatusMessage(cronJobID, status, message, d.now())
	for _, admin := range admins {
		d.router.SendTo(admin.ID, msg)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
