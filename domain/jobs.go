package domain

import (
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
)

// CronJob 持久化的任务定义
type CronJob struct {
	// ID 任务定义的唯一标识
	ID string `json:"id"`
	// Name 任务名称
	Name string `json:"name"`
	// Description 任务描述
	Description string `json:"description"`
	// CronExpression 5段cron表达式：分 时 日 月 周
	CronExpression string `json:"cronExpression"`
	// JobType 任务类型
	JobType _const.JobType `json:"jobType"`
	// JobData 任务负载，JSON文本，可为空
	JobData string `json:"jobData,omitempty"`
	// IsActive 是否处于调度中
	IsActive bool `json:"isActive"`
	// LastRun 上次执行的开始时间
	LastRun *time.Time `json:"lastRun,omitempty"`
	// NextRun 下次执行时间的估算
	NextRun *time.Time `json:"nextRun,omitempty"`
	// CreatedBy 创建者
	CreatedBy *string   `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CronJobPatch 更新任务定义时的可选字段，nil表示不修改
type CronJobPatch struct {
	Name           *string
	Description    *string
	CronExpression *string
	JobType        *_const.JobType
	JobData        *string
	IsActive       *bool
}

// ActiveJob 调度器中一个存活任务的快照
type ActiveJob struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	JobType   _const.JobType `json:"jobType"`
	IsRunning bool           `json:"isRunning"`
	NextRun   *time.Time     `json:"nextRun,omitempty"`
}
