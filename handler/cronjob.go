package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/TimeWtr/notify_scheduler"
	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
	"github.com/TimeWtr/notify_scheduler/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CronJobStore persists cron job definitions.
type CronJobStore interface {
	Create(ctx context.Context, job domain.CronJob) (domain.CronJob, error)
	FindAll(ctx context.Context) ([]domain.CronJob, error)
	FindByID(ctx context.Context, id string) (domain.CronJob, error)
	Update(ctx context.Context, id string, patch domain.CronJobPatch) (domain.CronJob, error)
	SetActive(ctx context.Context, id string, active bool) (domain.CronJob, error)
	Delete(ctx context.Context, id string) error
}

// StatusNotifier pushes cron job lifecycle events to admins.
type StatusNotifier interface {
	NotifyAdmins(ctx context.Context, cronJobID string, status _const.CronJobEvent, message string) error
}

type CreateCronJobRequest struct {
	Name           string `json:"name" binding:"required,max=255"`
	Description    string `json:"description"`
	CronExpression string `json:"cronExpression" binding:"required,cron"`
	JobType        string `json:"jobType" binding:"required,job_type"`
	// JobData 接受JSON字符串或JSON对象
	JobData   json.RawMessage `json:"jobData"`
	IsActive  *bool           `json:"isActive"`
	CreatedBy *string         `json:"createdBy"`
}

type UpdateCronJobRequest struct {
	Name           *string         `json:"name" binding:"omitempty,max=255"`
	Description    *string         `json:"description"`
	CronExpression *string         `json:"cronExpression" binding:"omitempty,cron"`
	JobType        *string         `json:"jobType" binding:"omitempty,job_type"`
	JobData        json.RawMessage `json:"jobData"`
	IsActive       *bool           `json:"isActive"`
}

// CronJobHandler handles cron job HTTP requests.
type CronJobHandler struct {
	jobs      CronJobStore
	scheduler notify_scheduler.Scheduler
	notifier  StatusNotifier
	logger    notify_scheduler.Logger
	newID     func() string
}

func NewCronJobHandler(
	jobs CronJobStore,
	scheduler notify_scheduler.Scheduler,
	notifier StatusNotifier,
	logger notify_scheduler.Logger) *CronJobHandler {
	return &CronJobHandler{
		jobs:      jobs,
		scheduler: scheduler,
		notifier:  notifier,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

func (h *CronJobHandler) GetAll(c *gin.Context) {
	jobs, err := h.jobs.FindAll(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to get cron jobs", notify_scheduler.Err(err))
		fail(c, http.StatusInternalServerError, "Failed to get cron jobs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"cronJobs": jobs})
}

func (h *CronJobHandler) GetByID(c *gin.Context) {
	job, ok := h.find(c, "Failed to get cron job")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"cronJob": job})
}

func (h *CronJobHandler) Create(c *gin.Context) {
	var req CreateCronJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid cron job request", notify_scheduler.Err(err))
		badRequest(c, err)
		return
	}

	kind := _const.JobType(req.JobType)
	data, err := jobDataText(req.JobData)
	if err == nil {
		err = validation.ValidateJobData(kind, data)
	}
	if err != nil {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid jobData: %v", err))
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ctx := c.Request.Context()
	job, err := h.jobs.Create(ctx, domain.CronJob{
		ID:             h.newID(),
		Name:           req.Name,
		Description:    req.Description,
		CronExpression: strings.TrimSpace(req.CronExpression),
		JobType:        kind,
		JobData:        data,
		IsActive:       active,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		h.logger.Error("failed to create cron job", notify_scheduler.Err(err))
		fail(c, http.StatusInternalServerError, "Failed to create cron job")
		return
	}

	if job.IsActive {
		job = h.arm(ctx, job)
	}

	state := "started"
	if !active {
		state = "created as inactive"
	}
	h.notify(ctx, job.ID, _const.CronJobEventStarted,
		fmt.Sprintf("Cron job %q created and %s", job.Name, state))

	c.JSON(http.StatusCreated, gin.H{"cronJob": job})
}

func (h *CronJobHandler) Update(c *gin.Context) {
	existing, ok := h.find(c, "Failed to update cron job")
	if !ok {
		return
	}

	var req UpdateCronJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid cron job request", notify_scheduler.Err(err))
		badRequest(c, err)
		return
	}

	patch := domain.CronJobPatch{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	}
	if req.CronExpression != nil {
		expr := strings.TrimSpace(*req.CronExpression)
		patch.CronExpression = &expr
	}
	kind := existing.JobType
	if req.JobType != nil {
		kind = _const.JobType(*req.JobType)
		patch.JobType = &kind
	}
	if len(req.JobData) > 0 {
		data, err := jobDataText(req.JobData)
		if err == nil {
			err = validation.ValidateJobData(kind, data)
		}
		if err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid jobData: %v", err))
			return
		}
		patch.JobData = &data
	} else if kind != existing.JobType {
		// 只修改了类型时，已存储的负载要满足新类型
		if err := validation.ValidateJobData(kind, existing.JobData); err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Invalid jobData: %v", err))
			return
		}
	}

	ctx := c.Request.Context()
	job, err := h.jobs.Update(ctx, existing.ID, patch)
	if err != nil {
		if errors.Is(err, domain.ErrCronJobNotFound) {
			fail(c, http.StatusNotFound, "Cron job not found")
			return
		}
		h.logger.Error("failed to update cron job",
			notify_scheduler.String("job_id", existing.ID), notify_scheduler.Err(err))
		fail(c, http.StatusInternalServerError, "Failed to update cron job")
		return
	}

	state, err := h.scheduler.UpdateJob(ctx, job.ID, job)
	if err != nil {
		h.logger.Error("failed to reschedule cron job",
			notify_scheduler.String("job_id", job.ID), notify_scheduler.Err(err))
	}
	if state == _const.JobStateExecutedOnce {
		job = h.reload(ctx, job)
	}

	c.JSON(http.StatusOK, gin.H{"cronJob": job})
}

func (h *CronJobHandler) Delete(c *gin.Context) {
	job, ok := h.find(c, "Failed to delete cron job")
	if !ok {
		return
	}

	h.scheduler.RemoveJob(job.ID)
	if err := h.jobs.Delete(c.Request.Context(), job.ID); err != nil {
		if errors.Is(err, domain.ErrCronJobNotFound) {
			fail(c, http.StatusNotFound, "Cron job not found")
			return
		}
		h.logger.Error("failed to delete cron job",
			notify_scheduler.String("job_id", job.ID), notify_scheduler.Err(err))
		fail(c, http.StatusInternalServerError, "Failed to delete cron job")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cron job deleted successfully"})
}

func (h *CronJobHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()
	job, ok := h.setActive(c, true, "Failed to start cron job")
	if !ok {
		return
	}

	job = h.arm(ctx, job)
	h.notify(ctx, job.ID, _const.CronJobEventStarted, fmt.Sprintf("Cron job %q started successfully", job.Name))
	c.JSON(http.StatusOK, gin.H{"cronJob": job, "message": "Cron job started successfully"})
}

func (h *CronJobHandler) Stop(c *gin.Context) {
	ctx := c.Request.Context()
	job, ok := h.setActive(c, false, "Failed to stop cron job")
	if !ok {
		return
	}

	h.scheduler.RemoveJob(job.ID)
	h.notify(ctx, job.ID, _const.CronJobEventStopped, fmt.Sprintf("Cron job %q stopped successfully", job.Name))
	c.JSON(http.StatusOK, gin.H{"cronJob": job, "message": "Cron job stopped successfully"})
}

// Execute 立即执行一次任务体，不改变调度状态
func (h *CronJobHandler) Execute(c *gin.Context) {
	job, ok := h.find(c, "Failed to execute cron job")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.scheduler.ExecuteDirect(ctx, job.JobType, job.JobData); err != nil {
		h.logger.Error("failed to execute cron job",
			notify_scheduler.String("job_id", job.ID), notify_scheduler.Err(err))
		h.notify(ctx, job.ID, _const.CronJobEventFailed, fmt.Sprintf("Cron job %q failed: %v", job.Name, err))
		fail(c, http.StatusInternalServerError, "Failed to execute cron job")
		return
	}

	msg := fmt.Sprintf("Cron job %q executed successfully", job.Name)
	h.notify(ctx, job.ID, _const.CronJobEventExecuted, msg)
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *CronJobHandler) GetActiveInMemory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"activeJobsInMemory": h.scheduler.ListActive()})
}

func (h *CronJobHandler) find(c *gin.Context, failMsg string) (domain.CronJob, bool) {
	id := c.Param("id")
	job, err := h.jobs.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrCronJobNotFound) {
			fail(c, http.StatusNotFound, "Cron job not found")
			return domain.CronJob{}, false
		}
		h.logger.Error("failed to get cron job",
			notify_scheduler.String("job_id", id), notify_scheduler.Err(err))
		fail(c, http.StatusInternalServerError, failMsg)
		return domain.CronJob{}, false
	}
	return job, true
}

func (h *CronJobHandler) setActive(c *gin.Context, active bool, failMsg string) (domain.CronJob, bool) {
	id := c.Param("id")
	job, err := h.jobs.SetActive(c.Request.Context(), id, active)
	if err != nil {
		if errors.Is(err, domain.ErrCronJobNotFound) {
			fail(c, http.StatusNotFound, "Cron job not found")
			return domain.CronJob{}, false
		}
		h.logger.Error(failMsg, notify_scheduler.String("job_id", id), notify_scheduler.Err(err))
		fail(c, http.StatusInternalServerError, failMsg)
		return domain.CronJob{}, false
	}
	return job, true
}

// arm 加入调度器，已过期的一次性任务会被立即执行并停用，此时返回最新的记录
func (h *CronJobHandler) arm(ctx context.Context, job domain.CronJob) domain.CronJob {
	state, err := h.scheduler.AddJob(ctx, job)
	if err != nil {
		h.logger.Error("failed to schedule cron job",
			notify_scheduler.String("job_id", job.ID), notify_scheduler.Err(err))
	}
	if state == _const.JobStateExecutedOnce {
		return h.reload(ctx, job)
	}
	return job
}

func (h *CronJobHandler) reload(ctx context.Context, job domain.CronJob) domain.CronJob {
	fresh, err := h.jobs.FindByID(ctx, job.ID)
	if err != nil {
		h.logger.Warn("failed to reload cron job",
			notify_scheduler.String("job_id", job.ID), notify_scheduler.Err(err))
		return job
	}
	return fresh
}

func (h *CronJobHandler) notify(ctx context.Context, id string, status _const.CronJobEvent, msg string) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.NotifyAdmins(ctx, id, status, msg); err != nil {
		h.logger.Warn("failed to notify admins",
			notify_scheduler.String("job_id", id), notify_scheduler.Err(err))
	}
}

// jobDataText 将请求中的jobData统一为JSON文本，JSON字符串会被解开一层
func jobDataText(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	return trimmed, nil
}
