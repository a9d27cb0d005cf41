package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type NotificationDAO interface {
	InsertBatch(ctx context.Context, ns []Notification) error
	Insert(ctx context.Context, n Notification) error
	FindByID(ctx context.Context, id string) (Notification, error)
	// FindUnread 按创建时间倒序返回用户的未读通知
	FindUnread(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, id string) (Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	// FindDueScheduled 返回scheduled_at <= now且未发送的通知
	FindDueScheduled(ctx context.Context, now time.Time) ([]Notification, error)
	MarkSent(ctx context.Context, id string) error
	CountUnreadByUser(ctx context.Context) ([]UnreadCount, error)
}

const insertBatchSize = 200

type GormNotificationDAO struct {
	db *gorm.DB
}

func NewNotificationDAO(db *gorm.DB) NotificationDAO {
	return &GormNotificationDAO{db: db}
}

func (d *GormNotificationDAO) InsertBatch(ctx context.Context, ns []Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return d.db.WithContext(ctx).CreateInBatches(&ns, insertBatchSize).Error
}

func (d *GormNotificationDAO) Insert(ctx context.Context, n Notification) error {
	return d.db.WithContext(ctx).Create(&n).Error
}

func (d *GormNotificationDAO) FindByID(ctx context.Context, id string) (Notification, error) {
	var n Notification
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	return n, err
}

func (d *GormNotificationDAO) FindUnread(ctx context.Context, userID string) ([]Notification, error) {
	var ns []Notification
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at DESC").Find(&ns).Error
	return ns, err
}

func (d *GormNotificationDAO) MarkRead(ctx context.Context, id string) (Notification, error) {
	var n Notification
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&n).Error; err != nil {
			return err
		}

		if err := tx.Model(&Notification{}).Where("id = ?", id).
			Update("is_read", true).Error; err != nil {
			return err
		}

		n.IsRead = true
		return nil
	})
	return n, err
}

func (d *GormNotificationDAO) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := d.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (d *GormNotificationDAO) FindDueScheduled(ctx context.Context, now time.Time) ([]Notification, error) {
	var ns []Notification
	err := d.db.WithContext(ctx).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ? AND is_sent = ?", now, false).
		Order("scheduled_at ASC").Find(&ns).Error
	return ns, err
}

func (d *GormNotificationDAO) MarkSent(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Model(&Notification{}).Where("id = ?", id).
		Update("is_sent", true).Error
}

func (d *GormNotificationDAO) CountUnreadByUser(ctx context.Context) ([]UnreadCount, error) {
	var res []UnreadCount
	err := d.db.WithContext(ctx).Model(&Notification{}).
		Select("user_id, COUNT(*) AS count").
		Where("is_read = ?", false).
		Group("user_id").Order("user_id").
		Scan(&res).Error
	return res, err
}

type Notification struct {
	ID string `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	// UserID 接收者
	UserID string `gorm:"column:user_id;type:varchar(36);not null;index:idx_notifications_user_read" json:"user_id"`
	// SenderID 发送者，系统通知为空
	SenderID *string `gorm:"column:sender_id;type:varchar(36)" json:"sender_id"`
	Title    string  `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Message  string  `gorm:"column:message;type:text;not null" json:"message"`
	// Type info | warning | success | error
	Type string `gorm:"column:type;type:varchar(20);not null" json:"type"`
	// Category system | user-to-user
	Category string `gorm:"column:category;type:varchar(20);not null" json:"category"`
	IsRead   bool   `gorm:"column:is_read;not null;index:idx_notifications_user_read" json:"is_read"`
	IsSent   bool   `gorm:"column:is_sent;not null" json:"is_sent"`
	// ScheduledAt 定时发送时间，为空表示立即发送
	ScheduledAt *time.Time `gorm:"column:scheduled_at;index" json:"scheduled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

type UnreadCount struct {
	UserID string `gorm:"column:user_id"`
	Count  int64  `gorm:"column:count"`
}
