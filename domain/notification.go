package domain

import (
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
)

type Notification struct {
	ID          string                  `json:"id"`
	UserID      string                  `json:"userId"`
	SenderID    *string                 `json:"senderId,omitempty"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	Type        _const.NotificationType `json:"type"`
	Category    _const.Category         `json:"category"`
	IsRead      bool                    `json:"isRead"`
	IsSent      bool                    `json:"isSent"`
	ScheduledAt *time.Time              `json:"scheduledAt,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// UnreadCount 某个用户未读通知的数量
type UnreadCount struct {
	UserID string
	Count  int64
}
