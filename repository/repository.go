package repository

import (
	"context"
	"errors"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
	"github.com/TimeWtr/notify_scheduler/repository/dao"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CronJobRepository 任务定义的存储，实现notify_scheduler.JobStore
type CronJobRepository struct {
	dao dao.CronJobDAO
}

func NewCronJobRepository(d dao.CronJobDAO) *CronJobRepository {
	return &CronJobRepository{dao: d}
}

func (r *CronJobRepository) Create(ctx context.Context, job domain.CronJob) (domain.CronJob, error) {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := r.dao.Insert(ctx, r.toEntity(job)); err != nil {
		return domain.CronJob{}, err
	}
	return job, nil
}

func (r *CronJobRepository) FindByID(ctx context.Context, id string) (domain.CronJob, error) {
	job, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.CronJob{}, mapNotFound(err, domain.ErrCronJobNotFound)
	}
	return r.toDomain(job), nil
}

func (r *CronJobRepository) FindAll(ctx context.Context) ([]domain.CronJob, error) {
	jobs, err := r.dao.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return r.toDomains(jobs), nil
}

func (r *CronJobRepository) ListActive(ctx context.Context) ([]domain.CronJob, error) {
	jobs, err := r.dao.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	return r.toDomains(jobs), nil
}

// Update 只修改patch中非nil的字段
func (r *CronJobRepository) Update(ctx context.Context, id string, patch domain.CronJobPatch) (domain.CronJob, error) {
	fields := make(map[string]interface{})
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.CronExpression != nil {
		fields["cron_expression"] = *patch.CronExpression
	}
	if patch.JobType != nil {
		fields["job_type"] = patch.JobType.String()
	}
	if patch.JobData != nil {
		fields["job_data"] = toJSON(*patch.JobData)
	}
	if patch.IsActive != nil {
		fields["is_active"] = *patch.IsActive
	}
	return r.updates(ctx, id, fields)
}

func (r *CronJobRepository) SetActive(ctx context.Context, id string, active bool) (domain.CronJob, error) {
	return r.updates(ctx, id, map[string]interface{}{"is_active": active})
}

func (r *CronJobRepository) UpdateLastRun(ctx context.Context, id string, lastRun time.Time, nextRun *time.Time) error {
	fields := map[string]interface{}{"last_run": lastRun.UTC()}
	if nextRun != nil {
		fields["next_run"] = nextRun.UTC()
	} else {
		fields["next_run"] = nil
	}
	_, err := r.updates(ctx, id, fields)
	return err
}

func (r *CronJobRepository) Delete(ctx context.Context, id string) error {
	return mapNotFound(r.dao.Delete(ctx, id), domain.ErrCronJobNotFound)
}

func (r *CronJobRepository) updates(ctx context.Context, id string, fields map[string]interface{}) (domain.CronJob, error) {
	job, err := r.dao.Updates(ctx, id, fields)
	if err != nil {
		return domain.CronJob{}, mapNotFound(err, domain.ErrCronJobNotFound)
	}
	return r.toDomain(job), nil
}

func (r *CronJobRepository) toEntity(job domain.CronJob) dao.CronJob {
	return dao.CronJob{
		ID:             job.ID,
		Name:           job.Name,
		Description:    job.Description,
		CronExpression: job.CronExpression,
		JobType:        job.JobType.String(),
		JobData:        toJSON(job.JobData),
		IsActive:       job.IsActive,
		LastRun:        job.LastRun,
		NextRun:        job.NextRun,
		CreatedBy:      job.CreatedBy,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

func (r *CronJobRepository) toDomain(job dao.CronJob) domain.CronJob {
	data := string(job.JobData)
	if data == "null" {
		data = ""
	}
	return domain.CronJob{
		ID:             job.ID,
		Name:           job.Name,
		Description:    job.Description,
		CronExpression: job.CronExpression,
		JobType:        _const.JobType(job.JobType),
		JobData:        data,
		IsActive:       job.IsActive,
		LastRun:        utc(job.LastRun),
		NextRun:        utc(job.NextRun),
		CreatedBy:      job.CreatedBy,
		CreatedAt:      job.CreatedAt.UTC(),
		UpdatedAt:      job.UpdatedAt.UTC(),
	}
}

func (r *CronJobRepository) toDomains(jobs []dao.CronJob) []domain.CronJob {
	res := make([]domain.CronJob, 0, len(jobs))
	for _, job := range jobs {
		res = append(res, r.toDomain(job))
	}
	return res
}

// NotificationRepository 通知记录的存储，实现notify_scheduler.NotificationStore
type NotificationRepository struct {
	dao dao.NotificationDAO
}

func NewNotificationRepository(d dao.NotificationDAO) *NotificationRepository {
	return &NotificationRepository{dao: d}
}

func (r *NotificationRepository) CreateBatch(ctx context.Context, ns []domain.Notification) error {
	entities := make([]dao.Notification, 0, len(ns))
	for _, n := range ns {
		entities = append(entities, r.toEntity(n))
	}
	return r.dao.InsertBatch(ctx, entities)
}

func (r *NotificationRepository) Create(ctx context.Context, n domain.Notification) error {
	return r.dao.Insert(ctx, r.toEntity(n))
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (domain.Notification, error) {
	n, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Notification{}, mapNotFound(err, domain.ErrNotificationNotFound)
	}
	return r.toDomain(n), nil
}

func (r *NotificationRepository) FindUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	ns, err := r.dao.FindUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.toDomains(ns), nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (domain.Notification, error) {
	n, err := r.dao.MarkRead(ctx, id)
	if err != nil {
		return domain.Notification{}, mapNotFound(err, domain.ErrNotificationNotFound)
	}
	return r.toDomain(n), nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return r.dao.MarkAllRead(ctx, userID)
}

func (r *NotificationRepository) FindDueScheduled(ctx context.Context, now time.Time) ([]domain.Notification, error) {
	ns, err := r.dao.FindDueScheduled(ctx, now.UTC())
	if err != nil {
		return nil, err
	}
	return r.toDomains(ns), nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id string) error {
	return r.dao.MarkSent(ctx, id)
}

func (r *NotificationRepository) CountUnreadByUser(ctx context.Context) ([]domain.UnreadCount, error) {
	counts, err := r.dao.CountUnreadByUser(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]domain.UnreadCount, 0, len(counts))
	for _, c := range counts {
		if c.Count == 0 {
			continue
		}
		res = append(res, domain.UnreadCount{UserID: c.UserID, Count: c.Count})
	}
	return res, nil
}

func (r *NotificationRepository) toEntity(n domain.Notification) dao.Notification {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return dao.Notification{
		ID:          n.ID,
		UserID:      n.UserID,
		SenderID:    n.SenderID,
		Title:       n.Title,
		Message:     n.Message,
		Type:        string(n.Type),
		Category:    string(n.Category),
		IsRead:      n.IsRead,
		IsSent:      n.IsSent,
		ScheduledAt: utc(n.ScheduledAt),
		CreatedAt:   createdAt.UTC(),
	}
}

func (r *NotificationRepository) toDomain(n dao.Notification) domain.Notification {
	return domain.Notification{
		ID:          n.ID,
		UserID:      n.UserID,
		SenderID:    n.SenderID,
		Title:       n.Title,
		Message:     n.Message,
		Type:        _const.NotificationType(n.Type),
		Category:    _const.Category(n.Category),
		IsRead:      n.IsRead,
		IsSent:      n.IsSent,
		ScheduledAt: utc(n.ScheduledAt),
		CreatedAt:   n.CreatedAt.UTC(),
	}
}

func (r *NotificationRepository) toDomains(ns []dao.Notification) []domain.Notification {
	res := make([]domain.Notification, 0, len(ns))
	for _, n := range ns {
		res = append(res, r.toDomain(n))
	}
	return res
}

// UserRepository 用户的存储，实现notify_scheduler.UserStore
type UserRepository struct {
	dao dao.UserDAO
}

func NewUserRepository(d dao.UserDAO) *UserRepository {
	return &UserRepository{dao: d}
}

func (r *UserRepository) ListAll(ctx context.Context) ([]domain.User, error) {
	users, err := r.dao.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return r.toDomains(users), nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role _const.Role) ([]domain.User, error) {
	users, err := r.dao.FindByRole(ctx, string(role))
	if err != nil {
		return nil, err
	}
	return r.toDomains(users), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	u, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, mapNotFound(err, domain.ErrUserNotFound)
	}
	return r.toDomain(u), nil
}

func (r *UserRepository) Upsert(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	return r.dao.Upsert(ctx, dao.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
		IsOnline:  u.IsOnline,
		CreatedAt: u.CreatedAt,
		UpdatedAt: now,
	})
}

func (r *UserRepository) SetOnline(ctx context.Context, userID string, online bool) error {
	return r.dao.SetOnline(ctx, userID, online)
}

func (r *UserRepository) toDomain(u dao.User) domain.User {
	return domain.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      _const.Role(u.Role),
		IsOnline:  u.IsOnline,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

func (r *UserRepository) toDomains(users []dao.User) []domain.User {
	res := make([]domain.User, 0, len(users))
	for _, u := range users {
		res = append(res, r.toDomain(u))
	}
	return res
}

func mapNotFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

func toJSON(s string) datatypes.JSON {
	if s == "" {
		return nil
	}
	return datatypes.JSON(s)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
