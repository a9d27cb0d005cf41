// Package handler provides the HTTP surface for notifications and cron jobs.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/TimeWtr/notify_scheduler"
	"github.com/TimeWtr/notify_scheduler/validation"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Pinger database health probe, satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler aggregates all HTTP handlers.
type Handler struct {
	Notification *NotificationHandler
	CronJob      *CronJobHandler

	db        Pinger
	online    func() int
	scheduler notify_scheduler.Scheduler
	logger    notify_scheduler.Logger
}

// NewHandler wires the sub-handlers. db and online may be nil.
func NewHandler(
	notifications Notifications,
	jobs CronJobStore,
	scheduler notify_scheduler.Scheduler,
	notifier StatusNotifier,
	db Pinger,
	online func() int,
	logger notify_scheduler.Logger) *Handler {
	if err := RegisterValidators(); err != nil {
		logger.Error("failed to register validators", notify_scheduler.Err(err))
	}

	return &Handler{
		Notification: NewNotificationHandler(notifications, logger),
		CronJob:      NewCronJobHandler(jobs, scheduler, notifier, logger),
		db:           db,
		online:       online,
		scheduler:    scheduler,
		logger:       logger,
	}
}

// RegisterValidators registers the custom binding tags on gin's validator engine.
// Binding a request with those tags before registration panics.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return validation.RegisterTags(v)
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ping", h.Ping)
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		notifications := api.Group("/notifications")
		{
			notifications.POST("", h.Notification.Create)
			notifications.GET("/:userId", h.Notification.GetByUser)
			notifications.PUT("/:id/read", h.Notification.MarkAsRead)
			notifications.POST("/mark-all-read/:userId", h.Notification.MarkAllAsRead)
		}

		cronJobs := api.Group("/cronjobs")
		{
			cronJobs.GET("", h.CronJob.GetAll)
			cronJobs.POST("", h.CronJob.Create)
			cronJobs.GET("/active-in-memory", h.CronJob.GetActiveInMemory)
			cronJobs.GET("/:id", h.CronJob.GetByID)
			cronJobs.PUT("/:id", h.CronJob.Update)
			cronJobs.DELETE("/:id", h.CronJob.Delete)
			cronJobs.POST("/:id/start", h.CronJob.Start)
			cronJobs.POST("/:id/stop", h.CronJob.Stop)
			cronJobs.POST("/:id/execute", h.CronJob.Execute)
		}
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// Health reports database reachability and live counters.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":     "healthy",
		"activeJobs": len(h.scheduler.ListActive()),
	}
	if h.online != nil {
		body["onlineUsers"] = h.online()
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Error("health check failed", notify_scheduler.Err(err))
			body["status"] = "unhealthy"
			body["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = "ok"
	}

	c.JSON(http.StatusOK, body)
}

// LoggerMiddleware logs every HTTP request.
func LoggerMiddleware(logger notify_scheduler.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("HTTP request",
			notify_scheduler.String("method", method),
			notify_scheduler.String("path", path),
			notify_scheduler.Int("status", c.Writer.Status()),
			notify_scheduler.String("duration", time.Since(start).String()),
			notify_scheduler.String("ip", c.ClientIP()),
		)
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// badRequest 校验错误附带字段级别的信息
func badRequest(c *gin.Context, err error) {
	if fields := validation.Messages(err); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	fail(c, http.StatusBadRequest, err.Error())
}
