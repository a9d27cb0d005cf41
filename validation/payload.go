package validation

import (
	"encoding/json"
	"errors"
	"fmt"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
)

var ErrInvalidJobData = errors.New("invalid job data")

// ValidateNotificationJobData notification_check任务的负载必须是包含字符串title和message的JSON对象，
// type可选且必须是合法的通知类型
func ValidateNotificationJobData(raw string) error {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil || data == nil {
		return fmt.Errorf("%w: must be valid JSON object", ErrInvalidJobData)
	}

	for _, key := range []string{"title", "message"} {
		s, ok := data[key].(string)
		if !ok || s == "" {
			return fmt.Errorf("%w: must contain %q field (string) for notification_check jobs", ErrInvalidJobData, key)
		}
	}

	if v, ok := data["type"]; ok && v != nil && v != "" {
		s, isStr := v.(string)
		if !isStr || !_const.NotificationType(s).Valid() {
			return fmt.Errorf("%w: \"type\" must be one of: info, warning, success, error", ErrInvalidJobData)
		}
	}
	return nil
}

// ValidateJobData 按任务类型校验负载，空负载总是合法
func ValidateJobData(kind _const.JobType, raw string) error {
	if raw == "" {
		return nil
	}
	if kind == _const.JobTypeNotificationCheck {
		return ValidateNotificationJobData(raw)
	}

	if _, err := domain.ParseJobPayload(kind, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJobData, err)
	}
	return nil
}
