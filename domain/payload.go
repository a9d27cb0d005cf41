package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	_const "github.com/TimeWtr/notify_scheduler/const"
)

// JobPayload 按任务类型区分的结构化负载
type JobPayload interface {
	JobType() _const.JobType
}

// NotificationCheckPayload notification_check任务的负载，Title和Message都存在时
// 每次执行会额外广播一条系统通知
type NotificationCheckPayload struct {
	Title   string                  `json:"title"`
	Message string                  `json:"message"`
	Type    _const.NotificationType `json:"type,omitempty"`
}

func (NotificationCheckPayload) JobType() _const.JobType {
	return _const.JobTypeNotificationCheck
}

// HasBroadcast 是否携带需要广播的通知
func (p NotificationCheckPayload) HasBroadcast() bool {
	return p.Title != "" && p.Message != ""
}

type DailySummaryPayload struct{}

func (DailySummaryPayload) JobType() _const.JobType {
	return _const.JobTypeDailySummary
}

// CustomPayload custom任务的负载，内容由部署方解释
type CustomPayload struct {
	Data map[string]any
}

func (CustomPayload) JobType() _const.JobType {
	return _const.JobTypeCustom
}

// ParseJobPayload 将持久化的JSON文本解析为对应任务类型的负载。
// 空文本得到该类型的零值负载。
func ParseJobPayload(kind _const.JobType, raw string) (JobPayload, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case _const.JobTypeNotificationCheck:
		var p NotificationCheckPayload
		if raw == "" {
			return p, nil
		}
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return NotificationCheckPayload{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, kind, err)
		}
		if p.Type != "" && !p.Type.Valid() {
			return NotificationCheckPayload{}, fmt.Errorf("%w: %s: unsupported type %q", ErrInvalidPayload, kind, p.Type)
		}
		return p, nil
	case _const.JobTypeDailySummary:
		return DailySummaryPayload{}, nil
	case _const.JobTypeCustom:
		p := CustomPayload{}
		if raw == "" {
			return p, nil
		}
		if err := json.Unmarshal([]byte(raw), &p.Data); err != nil {
			return CustomPayload{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, kind, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, kind)
	}
}
