package dao

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserDAO interface {
	FindAll(ctx context.Context) ([]User, error)
	FindByRole(ctx context.Context, role string) ([]User, error)
	FindByID(ctx context.Context, id string) (User, error)
	// Upsert 按ID插入或覆盖用户资料
	Upsert(ctx context.Context, u User) error
	// SetOnline 修改在线状态，上线时用户不存在则以默认资料创建
	SetOnline(ctx context.Context, id string, online bool) error
}

type GormUserDAO struct {
	db *gorm.DB
}

func NewUserDAO(db *gorm.DB) UserDAO {
	return &GormUserDAO{db: db}
}

func (d *GormUserDAO) FindAll(ctx context.Context) ([]User, error) {
	var users []User
	err := d.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error
	return users, err
}

func (d *GormUserDAO) FindByRole(ctx context.Context, role string) ([]User, error) {
	var users []User
	err := d.db.WithContext(ctx).Where("role = ?", role).Find(&users).Error
	return users, err
}

func (d *GormUserDAO) FindByID(ctx context.Context, id string) (User, error) {
	var u User
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	return u, err
}

func (d *GormUserDAO) Upsert(ctx context.Context, u User) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "role", "is_online", "updated_at"}),
	}).Create(&u).Error
}

func (d *GormUserDAO) SetOnline(ctx context.Context, id string, online bool) error {
	now := time.Now().UTC()
	if !online {
		return d.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_online":  false,
				"updated_at": now,
			}).Error
	}

	u := User{
		ID:        id,
		Email:     fmt.Sprintf("user-%s@example.com", id),
		Role:      "user",
		IsOnline:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_online":  true,
			"updated_at": now,
		}),
	}).Create(&u).Error
}

type User struct {
	ID    string `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Email string `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Name  string `gorm:"column:name;type:varchar(255)" json:"name"`
	// Role admin | user
	Role      string    `gorm:"column:role;type:varchar(20);not null;index" json:"role"`
	IsOnline  bool      `gorm:"column:is_online;not null" json:"is_online"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
