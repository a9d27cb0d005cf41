package _const

// JobState 任务定义在调度器中的生命周期状态
type JobState int

const (
	JobStateInactive     JobState = 0x00000001 // 已持久化，未调度
	JobStateActive       JobState = 0x00000002 // 已持久化，存在调度中的任务
	JobStateExecutedOnce JobState = 0x00000003 // 一次性任务已执行，随后转为Inactive
	JobStateRemoved      JobState = 0x00000004 // 已从调度器和存储中删除
)

func (s JobState) String() string {
	switch s {
	case JobStateInactive:
		return "Inactive"
	case JobStateActive:
		return "Active"
	case JobStateExecutedOnce:
		return "ExecutedOnce"
	case JobStateRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

// CronJobEvent 推送给管理员的任务状态
type CronJobEvent string

const (
	CronJobEventStarted  CronJobEvent = "started"
	CronJobEventStopped  CronJobEvent = "stopped"
	CronJobEventExecuted CronJobEvent = "executed"
	CronJobEventFailed   CronJobEvent = "failed"
)

func (e CronJobEvent) String() string {
	return string(e)
}
