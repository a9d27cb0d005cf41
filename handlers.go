package notify_scheduler

import (
	"context"
	"fmt"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
	"go.uber.org/multierr"
)

// CustomAction custom任务在部署中配置的副作用
type CustomAction func(ctx context.Context, data map[string]any) error

// JobHandlers 内置任务类型的任务体
type JobHandlers struct {
	delivery *NotificationDelivery
	logger   Logger
	now      func() time.Time
	custom   CustomAction
}

func NewJobHandlers(delivery *NotificationDelivery, logger Logger, custom CustomAction) *JobHandlers {
	return &JobHandlers{
		delivery: delivery,
		logger:   logger,
		now:      time.Now,
		custom:   custom,
	}
}

// RegisterTo 将内置任务体注册到执行中心
func (h *JobHandlers) RegisterTo(center *ExecCenter) {
	center.Register(_const.JobTypeNotificationCheck, h.NotificationCheck)
	center.Register(_const.JobTypeDailySummary, h.DailySummary)
	center.Register(_const.JobTypeCustom, h.Custom)
}

// NotificationCheck 推送到期的定时通知；负载带有标题和内容时再广播一条系统通知
func (h *JobHandlers) NotificationCheck(ctx context.Context, payload domain.JobPayload) error {
	var errs error
	if _, err := h.delivery.DeliverDue(ctx, h.now()); err != nil {
		errs = multierr.Append(errs, err)
	}

	p, ok := payload.(domain.NotificationCheckPayload)
	if !ok || !p.HasBroadcast() {
		return errs
	}

	batch, err := h.delivery.CreateSystemNotification(ctx, SystemNotificationInput{
		Title:   p.Title,
		Message: p.Message,
		Type:    p.Type.OrDefault(),
	})
	if err != nil {
		return multierr.Append(errs, err)
	}

	sent := h.delivery.Broadcast(batch)
	h.logger.Info("broadcast notification from cron job",
		String("title", p.Title), Int("recipients", len(batch)), Int("online", sent))
	return errs
}

// DailySummary 为每个有未读通知的用户发送一条未读数量汇总
func (h *JobHandlers) DailySummary(ctx context.Context, _ domain.JobPayload) error {
	counts, err := h.delivery.UnreadCounts(ctx)
	if err != nil {
		return fmt.Errorf("load unread counts: %w", err)
	}

	var errs error
	for _, c := range counts {
		n, err := h.delivery.CreateUserNotification(ctx, UserNotificationInput{
			UserID:   c.UserID,
			SenderID: _const.SystemSenderID,
			Title:    "Daily notification summary",
			Message:  fmt.Sprintf("You have %d unread notifications", c.Count),
			Type:     _const.NotificationTypeInfo,
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		h.delivery.Deliver(n)
	}

	if len(counts) > 0 {
		h.logger.Info("daily summary sent", Int("users", len(counts)))
	}
	return errs
}

// Custom 将负载交给部署配置的CustomAction，未配置时只记录日志
func (h *JobHandlers) Custom(ctx context.Context, payload domain.JobPayload) error {
	p, _ := payload.(domain.CustomPayload)
	if len(p.Data) == 0 {
		h.logger.Info("custom job executed with no data")
		return nil
	}

	if h.custom == nil {
		h.logger.Info("custom job executed", Any("data", p.Data))
		return nil
	}
	return h.custom(ctx, p.Data)
}
