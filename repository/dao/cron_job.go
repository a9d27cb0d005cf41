package dao

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CronJobDAO interface {
	Insert(ctx context.Context, job CronJob) error
	FindByID(ctx context.Context, id string) (CronJob, error)
	// FindAll 按创建时间倒序返回全部任务定义
	FindAll(ctx context.Context) ([]CronJob, error)
	// FindActive 按创建时间升序返回激活的任务定义
	FindActive(ctx context.Context) ([]CronJob, error)
	// Updates 更新指定字段并返回更新后的记录，记录不存在时返回gorm.ErrRecordNotFound
	Updates(ctx context.Context, id string, fields map[string]interface{}) (CronJob, error)
	Delete(ctx context.Context, id string) error
}

type GormCronJobDAO struct {
	db *gorm.DB
}

func NewCronJobDAO(db *gorm.DB) CronJobDAO {
	return &GormCronJobDAO{db: db}
}

func (d *GormCronJobDAO) Insert(ctx context.Context, job CronJob) error {
	return d.db.WithContext(ctx).Create(&job).Error
}

func (d *GormCronJobDAO) FindByID(ctx context.Context, id string) (CronJob, error) {
	var job CronJob
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	return job, err
}

func (d *GormCronJobDAO) FindAll(ctx context.Context) ([]CronJob, error) {
	var jobs []CronJob
	err := d.db.WithContext(ctx).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

func (d *GormCronJobDAO) FindActive(ctx context.Context) ([]CronJob, error) {
	var jobs []CronJob
	err := d.db.WithContext(ctx).Where("is_active = ?", true).
		Order("created_at ASC").Find(&jobs).Error
	return jobs, err
}

func (d *GormCronJobDAO) Updates(ctx context.Context, id string, fields map[string]interface{}) (CronJob, error) {
	var job CronJob
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&job).Error; err != nil {
			return err
		}

		fields["updated_at"] = time.Now().UTC()
		if err := tx.Model(&CronJob{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).First(&job).Error
	})
	return job, err
}

func (d *GormCronJobDAO) Delete(ctx context.Context, id string) error {
	res := d.db.WithContext(ctx).Where("id = ?", id).Delete(&CronJob{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type CronJob struct {
	// ID 任务定义的唯一标识
	ID string `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	// Name 任务名称
	Name string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	// Description 任务描述
	Description string `gorm:"column:description;type:text" json:"description"`
	// CronExpression 5段cron表达式
	CronExpression string `gorm:"column:cron_expression;type:varchar(100);not null" json:"cron_expression"`
	// JobType 任务类型
	JobType string `gorm:"column:job_type;type:varchar(50);not null" json:"job_type"`
	// JobData 任务负载
	JobData datatypes.JSON `gorm:"column:job_data" json:"job_data"`
	// IsActive 是否处于调度中
	IsActive bool `gorm:"column:is_active;not null;index" json:"is_active"`
	// LastRun 上次执行的开始时间
	LastRun *time.Time `gorm:"column:last_run" json:"last_run"`
	// NextRun 下次执行时间的估算
	NextRun *time.Time `gorm:"column:next_run" json:"next_run"`
	// CreatedBy 创建者
	CreatedBy *string   `gorm:"column:created_by;type:varchar(36)" json:"created_by"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (CronJob) TableName() string {
	return "cron_jobs"
}
