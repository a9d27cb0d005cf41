package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/go-playground/validator/v10"
)

const (
	TagCron             = "cron"
	TagNotificationType = "notification_type"
	TagJobType          = "job_type"
	TagCategory         = "category"
)

// RegisterTags 向validator注册自定义的校验标签
func RegisterTags(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonName)

	tags := map[string]validator.Func{
		TagCron: func(fl validator.FieldLevel) bool {
			return ValidateCronExpression(fl.Field().String()) == nil
		},
		TagNotificationType: func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || _const.NotificationType(s).Valid()
		},
		TagJobType: func(fl validator.FieldLevel) bool {
			return _const.JobType(fl.Field().String()).Valid()
		},
		TagCategory: func(fl validator.FieldLevel) bool {
			return _const.Category(fl.Field().String()).Valid()
		},
	}

	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register validation %s: %w", tag, err)
		}
	}
	return nil
}

var messages = map[string]string{
	"required":          "The field '%s' is required.",
	"max":               "The field '%s' must be no longer than %s characters.",
	TagCron:             "The field '%s' must be a 5-part cron expression (minute hour day month weekday).",
	TagNotificationType: "The field '%s' must be one of: info, warning, success, error.",
	TagJobType:          "The field '%s' must be one of: notification_check, daily_summary, custom.",
	TagCategory:         "Invalid category. The field '%s' must be \"system\" or \"user-to-user\".",
}

// Messages 将校验错误转换为 字段 -> 可读信息，非校验错误返回nil
func Messages(err error) map[string]string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	res := make(map[string]string, len(errs))
	for _, e := range errs {
		res[e.Field()] = message(e)
	}
	return res
}

func message(e validator.FieldError) string {
	msg, ok := messages[e.Tag()]
	if !ok {
		return fmt.Sprintf("Field '%s' is invalid: %s", e.Field(), e.Tag())
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, e.Field(), e.Param())
	}
	return fmt.Sprintf(msg, e.Field())
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
