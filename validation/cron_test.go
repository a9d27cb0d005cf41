package validation

import (
	"testing"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCronExpression(t *testing.T) {
	testCases := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "every minute", expr: "* * * * *"},
		{name: "step", expr: "*/15 * * * *"},
		{name: "list", expr: "0,15,30,45 * * * *"},
		{name: "range", expr: "0 9-17 * * 1-5"},
		{name: "one-time", expr: "30 14 25 12 *"},
		{name: "sunday zero", expr: "0 0 * * 0"},
		{name: "extra whitespace", expr: " 0  9 * *  * "},
		{name: "four parts", expr: "* * * *", wantErr: true},
		{name: "six parts", expr: "0 * * * * *", wantErr: true},
		{name: "empty", expr: "", wantErr: true},
		{name: "minute out of range", expr: "60 * * * *", wantErr: true},
		{name: "hour out of range", expr: "0 24 * * *", wantErr: true},
		{name: "day zero", expr: "0 0 0 * *", wantErr: true},
		{name: "month out of range", expr: "0 0 1 13 *", wantErr: true},
		{name: "weekday seven", expr: "0 0 * * 7", wantErr: true},
		{name: "zero step", expr: "*/0 * * * *", wantErr: true},
		{name: "step too large", expr: "*/60 * * * *", wantErr: true},
		{name: "reversed range", expr: "0 17-9 * * *", wantErr: true},
		{name: "open range", expr: "0 9- * * *", wantErr: true},
		{name: "list with garbage", expr: "0,a * * * *", wantErr: true},
		{name: "names", expr: "0 0 * JAN *", wantErr: true},
		{name: "descriptor", expr: "@daily", wantErr: true},
		{name: "negative", expr: "-1 * * * *", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCronExpression(tc.expr)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCronExpression)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateJobData(t *testing.T) {
	testCases := []struct {
		name    string
		kind    _const.JobType
		raw     string
		wantErr bool
	}{
		{name: "empty notification check", kind: _const.JobTypeNotificationCheck},
		{name: "notification check", kind: _const.JobTypeNotificationCheck, raw: `{"title":"a","message":"b"}`},
		{name: "notification check with type", kind: _const.JobTypeNotificationCheck, raw: `{"title":"a","message":"b","type":"error"}`},
		{name: "missing message", kind: _const.JobTypeNotificationCheck, raw: `{"title":"a"}`, wantErr: true},
		{name: "numeric title", kind: _const.JobTypeNotificationCheck, raw: `{"title":1,"message":"b"}`, wantErr: true},
		{name: "bad type", kind: _const.JobTypeNotificationCheck, raw: `{"title":"a","message":"b","type":"fatal"}`, wantErr: true},
		{name: "array", kind: _const.JobTypeNotificationCheck, raw: `["a"]`, wantErr: true},
		{name: "null", kind: _const.JobTypeNotificationCheck, raw: `null`, wantErr: true},
		{name: "not json", kind: _const.JobTypeNotificationCheck, raw: `title=a`, wantErr: true},
		{name: "daily summary ignores data", kind: _const.JobTypeDailySummary, raw: `anything`},
		{name: "custom object", kind: _const.JobTypeCustom, raw: `{"action":"cleanup","days":30}`},
		{name: "custom invalid", kind: _const.JobTypeCustom, raw: `{"action"`, wantErr: true},
		{name: "unknown kind", kind: "reindex", raw: `{}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJobData(tc.kind, tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidJobData)
				return
			}
			assert.NoError(t, err)
		})
	}
}

type tagged struct {
	Name       string `json:"name" validate:"required,max=8"`
	Expression string `json:"cronExpression" validate:"required,cron"`
	JobType    string `json:"jobType" validate:"required,job_type"`
	Type       string `json:"type" validate:"notification_type"`
	Category   string `json:"category" validate:"category"`
}

func TestRegisterTags(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterTags(v))

	ok := tagged{
		Name:       "daily",
		Expression: "0 9 * * *",
		JobType:    "daily_summary",
		Category:   "system",
	}
	require.NoError(t, v.Struct(ok))

	bad := tagged{
		Name:       "way too long",
		Expression: "0 9 * *",
		JobType:    "reindex",
		Type:       "fatal",
		Category:   "broadcast",
	}
	msgs := Messages(v.Struct(bad))
	assert.Equal(t, map[string]string{
		"name":           "The field 'name' must be no longer than 8 characters.",
		"cronExpression": "The field 'cronExpression' must be a 5-part cron expression (minute hour day month weekday).",
		"jobType":        "The field 'jobType' must be one of: notification_check, daily_summary, custom.",
		"type":           "The field 'type' must be one of: info, warning, success, error.",
		"category":       "Invalid category. The field 'category' must be \"system\" or \"user-to-user\".",
	}, msgs)

	missing := Messages(v.Struct(tagged{Category: "user-to-user"}))
	assert.Equal(t, "The field 'name' is required.", missing["name"])
	assert.Len(t, missing, 3)
}

func TestMessages_NotValidationError(t *testing.T) {
	assert.Nil(t, Messages(nil))
	assert.Nil(t, Messages(ErrInvalidJobData))
}
