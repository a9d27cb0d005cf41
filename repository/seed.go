package repository

import (
	"context"
	"fmt"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
	"github.com/google/uuid"
)

// SeedSummary 演示数据的写入结果
type SeedSummary struct {
	Users         int
	Notifications int
	CronJobs      int
	// Skipped 已存在任务定义时不再写入通知和任务
	Skipped bool
}

// Seeder 写入演示用的用户、通知和默认任务
type Seeder struct {
	jobs          *CronJobRepository
	notifications *NotificationRepository
	users         *UserRepository
	now           func() time.Time
}

func NewSeeder(jobs *CronJobRepository, notifications *NotificationRepository, users *UserRepository) *Seeder {
	return &Seeder{
		jobs:          jobs,
		notifications: notifications,
		users:         users,
		now:           time.Now,
	}
}

var seedUsers = []domain.User{
	{ID: "user1", Email: "alice@example.com", Name: "Alice Johnson", Role: _const.RoleAdmin},
	{ID: "user2", Email: "bob@example.com", Name: "Bob Smith", Role: _const.RoleUser},
	{ID: "user3", Email: "charlie@example.com", Name: "Charlie Brown", Role: _const.RoleUser},
}

func (s *Seeder) Run(ctx context.Context) (SeedSummary, error) {
	var summary SeedSummary
	for _, u := range seedUsers {
		if err := s.users.Upsert(ctx, u); err != nil {
			return summary, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		summary.Users++
	}

	existing, err := s.jobs.FindAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("list cron jobs: %w", err)
	}
	if len(existing) > 0 {
		summary.Skipped = true
		return summary, nil
	}

	ns := s.notificationsFor(s.now().UTC())
	if err = s.notifications.CreateBatch(ctx, ns); err != nil {
		return summary, fmt.Errorf("seed notifications: %w", err)
	}
	summary.Notifications = len(ns)

	for _, job := range s.cronJobs() {
		if _, err = s.jobs.Create(ctx, job); err != nil {
			return summary, fmt.Errorf("seed cron job %s: %w", job.Name, err)
		}
		summary.CronJobs++
	}
	return summary, nil
}

func (s *Seeder) notificationsFor(now time.Time) []domain.Notification {
	system := []struct {
		title, message string
		kind           _const.NotificationType
	}{
		{"Welcome!", "Thanks for joining us. We hope you enjoy the experience.", _const.NotificationTypeSuccess},
		{"System maintenance", "The system will be under maintenance on Sunday between 02:00 and 04:00.", _const.NotificationTypeWarning},
		{"Security update", "We have updated our security systems to better protect your data.", _const.NotificationTypeInfo},
	}

	var ns []domain.Notification
	i := 0
	for _, msg := range system {
		for _, u := range seedUsers {
			ns = append(ns, domain.Notification{
				ID:        uuid.NewString(),
				UserID:    u.ID,
				Title:     msg.title,
				Message:   msg.message,
				Type:      msg.kind,
				Category:  _const.CategorySystem,
				IsRead:    i%2 == 1,
				CreatedAt: now,
			})
			i++
		}
	}

	scheduled := now.Add(5 * time.Minute)
	for _, u := range seedUsers {
		ns = append(ns, domain.Notification{
			ID:          uuid.NewString(),
			UserID:      u.ID,
			Title:       "Scheduled notification",
			Message:     "This notification was scheduled ahead of time.",
			Type:        _const.NotificationTypeInfo,
			Category:    _const.CategorySystem,
			ScheduledAt: &scheduled,
			CreatedAt:   now,
		})
	}

	direct := []struct {
		to, from, title, message string
		kind                     _const.NotificationType
		read                     bool
		delay                    time.Duration
	}{
		{"user1", "user2", "New message", "Hi Alice! Want to grab dinner together?", _const.NotificationTypeInfo, false, 0},
		{"user2", "user3", "Friend request", "Charlie sent you a friend request.", _const.NotificationTypeInfo, true, 0},
		{"user3", "user1", "Mention", `Alice mentioned you in a post: "Thanks @Charlie for the help!"`, _const.NotificationTypeInfo, false, 0},
		{"user1", "user3", "New activity", "Charlie shared a new photo and wants your feedback.", _const.NotificationTypeSuccess, false, 0},
		{"user2", "user1", "Important", "Bob, don't forget tomorrow's meeting at 14:00!", _const.NotificationTypeWarning, false, 2 * time.Minute},
	}
	for _, d := range direct {
		sender := d.from
		n := domain.Notification{
			ID:        uuid.NewString(),
			UserID:    d.to,
			SenderID:  &sender,
			Title:     d.title,
			Message:   d.message,
			Type:      d.kind,
			Category:  _const.CategoryUserToUser,
			IsRead:    d.read,
			CreatedAt: now,
		}
		if d.delay > 0 {
			at := now.Add(d.delay)
			n.ScheduledAt = &at
		}
		ns = append(ns, n)
	}
	return ns
}

func (s *Seeder) cronJobs() []domain.CronJob {
	admin := seedUsers[0].ID
	return []domain.CronJob{
		{
			ID:             uuid.NewString(),
			Name:           "notification_check",
			Description:    "Check and send scheduled notifications every minute",
			CronExpression: "* * * * *",
			JobType:        _const.JobTypeNotificationCheck,
			IsActive:       true,
			CreatedBy:      &admin,
		},
		{
			ID:             uuid.NewString(),
			Name:           "daily_summary",
			Description:    "Send daily summary at 9:00 AM",
			CronExpression: "0 9 * * *",
			JobType:        _const.JobTypeDailySummary,
			IsActive:       true,
			CreatedBy:      &admin,
		},
		{
			ID:             uuid.NewString(),
			Name:           "weekly_cleanup",
			Description:    "Weekly cleanup of read notifications (inactive by default)",
			CronExpression: "0 2 * * 0",
			JobType:        _const.JobTypeCustom,
			JobData:        `{"action":"cleanup","type":"read_notifications","olderThan":"7days"}`,
			IsActive:       false,
			CreatedBy:      &admin,
		},
	}
}
