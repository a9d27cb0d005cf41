package _const

// NotificationType 通知的严重级别
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeError   NotificationType = "error"
)

func (t NotificationType) String() string {
	return string(t)
}

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeInfo, NotificationTypeWarning,
		NotificationTypeSuccess, NotificationTypeError:
		return true
	default:
		return false
	}
}

// OrDefault 未指定类型时默认为info
func (t NotificationType) OrDefault() NotificationType {
	if t == "" {
		return NotificationTypeInfo
	}
	return t
}

// Category 通知类别
type Category string

const (
	CategorySystem     Category = "system"
	CategoryUserToUser Category = "user-to-user"
)

func (c Category) Valid() bool {
	return c == CategorySystem || c == CategoryUserToUser
}

// JobType 任务类型，决定调度时执行的任务体
type JobType string

const (
	JobTypeNotificationCheck JobType = "notification_check"
	JobTypeDailySummary      JobType = "daily_summary"
	JobTypeCustom            JobType = "custom"
)

func (t JobType) String() string {
	return string(t)
}

func (t JobType) Valid() bool {
	switch t {
	case JobTypeNotificationCheck, JobTypeDailySummary, JobTypeCustom:
		return true
	default:
		return false
	}
}

// Role 用户角色
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)
