package notify_scheduler

import (
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
)

const (
	MessageTypeNotification  = "notification"
	MessageTypeCronJobStatus = "cronjob_status"
)

// OutboundMessage 推送给客户端的消息
type OutboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type NotificationData struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Type      _const.NotificationType `json:"type"`
	CreatedAt time.Time               `json:"createdAt"`
}

type CronJobStatusData struct {
	CronJobID string              `json:"cronJobId"`
	Status    _const.CronJobEvent `json:"status"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
}

func NewNotificationMessage(n domain.Notification) OutboundMessage {
	return OutboundMessage{
		Type: MessageTypeNotification,
		Data: NotificationData{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			CreatedAt: n.CreatedAt,
		},
	}
}

func NewCronJobStatusMessage(cronJobID string, status _const.CronJobEvent, msg string, ts time.Time) OutboundMessage {
	return OutboundMessage{
		Type: MessageTypeCronJobStatus,
		Data: CronJobStatusData{
			CronJobID: cronJobID,
			Status:    status,
			Message:   msg,
			Timestamp: ts.UTC(),
		},
	}
}
