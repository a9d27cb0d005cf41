package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TimeWtr/notify_scheduler"
	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
	"github.com/gin-gonic/gin"
)

// Notifications is the delivery surface the handler needs.
type Notifications interface {
	CreateSystemNotification(ctx context.Context, in notify_scheduler.SystemNotificationInput) ([]domain.Notification, error)
	CreateUserNotification(ctx context.Context, in notify_scheduler.UserNotificationInput) (domain.Notification, error)
	Broadcast(batch []domain.Notification) int
	Deliver(n domain.Notification) bool
	GetUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) (domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type CreateNotificationRequest struct {
	Category    string     `json:"category" binding:"required,category"`
	Title       string     `json:"title" binding:"required,max=255"`
	Message     string     `json:"message" binding:"required"`
	Type        string     `json:"type" binding:"omitempty,notification_type"`
	UserID      string     `json:"userId"`
	SenderID    string     `json:"senderId"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

// NotificationHandler handles notification HTTP requests.
type NotificationHandler struct {
	svc    Notifications
	logger notify_scheduler.Logger
}

func NewNotificationHandler(svc Notifications, logger notify_scheduler.Logger) *NotificationHandler {
	return &NotificationHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create 系统通知发给所有用户，点对点通知发给userId，未指定scheduledAt时立即推送
func (h *NotificationHandler) Create(c *gin.Context) {
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid notification request", notify_scheduler.Err(err))
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	switch _const.Category(req.Category) {
	case _const.CategorySystem:
		ns, err := h.svc.CreateSystemNotification(ctx, notify_scheduler.SystemNotificationInput{
			Title:       req.Title,
			Message:     req.Message,
			Type:        _const.NotificationType(req.Type),
			ScheduledAt: req.ScheduledAt,
		})
		if err != nil {
			h.logger.Error("failed to create system notification", notify_scheduler.Err(err))
			fail(c, http.StatusInternalServerError, "Failed to create notification")
			return
		}

		if req.ScheduledAt == nil {
			h.svc.Broadcast(ns)
		}
		c.JSON(http.StatusCreated, gin.H{"notifications": ns, "count": len(ns)})

	case _const.CategoryUserToUser:
		if req.UserID == "" || req.SenderID == "" {
			fail(c, http.StatusBadRequest, "userId and senderId are required for user-to-user notifications")
			return
		}

		n, err := h.svc.CreateUserNotification(ctx, notify_scheduler.UserNotificationInput{
			UserID:      req.UserID,
			SenderID:    req.SenderID,
			Title:       req.Title,
			Message:     req.Message,
			Type:        _const.NotificationType(req.Type),
			ScheduledAt: req.ScheduledAt,
		})
		if err != nil {
			h.logger.Error("failed to create user notification",
				notify_scheduler.String("user_id", req.UserID), notify_scheduler.Err(err))
			fail(c, http.StatusInternalServerError, "Failed to create notification")
			return
		}

		if req.ScheduledAt == nil {
			h.svc.Deliver(n)
		}
		c.JSON(http.StatusCreated, n)

	default:
		fail(c, http.StatusBadRequest, `Invalid category. Must be "system" or "user-to-user"`)
	}
}

// GetByUser returns the user's unread notifications, newest first.
func (h *NotificationHandler) GetByUser(c *gin.Context) {
	userID := c.Param("userId")

	ns, err := h.svc.GetUnread(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get notifications",
			notify_scheduler.String("user_id", userID), notify_scheduler.Err(err))
		fail(c, http.StatusInternalServerError, "Failed to get notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": ns})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id := c.Param("id")

	n, err := h.svc.MarkRead(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			fail(c, http.StatusNotFound, "Notification not found")
			return
		}
		h.logger.Error("failed to mark notification as read",
			notify_scheduler.String("notification_id", id), notify_scheduler.Err(err))
		fail(c, http.StatusInternalServerError, "Failed to mark notification as read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"notification": n})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID := c.Param("userId")

	count, err := h.svc.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to mark all notifications as read",
			notify_scheduler.String("user_id", userID), notify_scheduler.Err(err))
		fail(c, http.StatusInternalServerError, "Failed to mark all notifications as read")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Marked %d notifications as read", count),
		"count":   count,
	})
}
