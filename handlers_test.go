package notify_scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJobHandlers(f *deliveryFixture, custom CustomAction) *JobHandlers {
	h := NewJobHandlers(f.delivery, NopLogger(), custom)
	h.now = fixedClock(testNow)
	return h
}

func TestJobHandlers_NotificationCheck(t *testing.T) {
	f := newDeliveryFixture()
	ctx := context.Background()
	bob := f.connect(t, "user2")
	past := testNow.Add(-time.Minute)
	_, err := f.delivery.CreateUserNotification(ctx, UserNotificationInput{
		UserID: "user2", SenderID: "user1", Title: "due", Message: "m", ScheduledAt: &past,
	})
	require.NoError(t, err)

	h := newTestJobHandlers(f, nil)
	require.NoError(t, h.NotificationCheck(ctx, domain.NotificationCheckPayload{}))
	require.Len(t, bob.messages(), 1)
	assert.Len(t, f.notifications.all(), 1)

	// 带标题和内容时额外广播一条系统通知
	require.NoError(t, h.NotificationCheck(ctx, domain.NotificationCheckPayload{
		Title: "Heads up", Message: "Deploy at 5", Type: _const.NotificationTypeWarning,
	}))
	msgs := bob.messages()
	require.Len(t, msgs, 2)
	data := msgs[1]["data"].(map[string]any)
	assert.Equal(t, "Heads up", data["title"])
	assert.Equal(t, "warning", data["type"])
	assert.Len(t, f.notifications.all(), 4)
}

func TestJobHandlers_DailySummary(t *testing.T) {
	f := newDeliveryFixture()
	ctx := context.Background()
	alice := f.connect(t, "user1")
	for i := 0; i < 2; i++ {
		_, err := f.delivery.CreateUserNotification(ctx, UserNotificationInput{
			UserID: "user1", SenderID: "user2", Title: "t", Message: "m",
		})
		require.NoError(t, err)
	}

	h := newTestJobHandlers(f, nil)
	require.NoError(t, h.DailySummary(ctx, domain.DailySummaryPayload{}))

	msgs := alice.messages()
	require.Len(t, msgs, 1)
	data := msgs[0]["data"].(map[string]any)
	assert.Equal(t, "Daily notification summary", data["title"])
	assert.Equal(t, "You have 2 unread notifications", data["message"])

	var summary domain.Notification
	for _, n := range f.notifications.all() {
		if n.Title == "Daily notification summary" {
			summary = n
		}
	}
	require.NotNil(t, summary.SenderID)
	assert.Equal(t, _const.SystemSenderID, *summary.SenderID)
	assert.Equal(t, _const.CategoryUserToUser, summary.Category)
}

func TestJobHandlers_Custom(t *testing.T) {
	testCases := []struct {
		name      string
		payload   domain.JobPayload
		actionErr error
		wantCalls int
	}{
		{name: "no data", payload: domain.CustomPayload{}},
		{name: "nil payload", payload: nil},
		{name: "with data", payload: domain.CustomPayload{Data: map[string]any{"action": "cleanup"}}, wantCalls: 1},
		{
			name:      "action error",
			payload:   domain.CustomPayload{Data: map[string]any{"action": "cleanup"}},
			actionErr: errors.New("cleanup failed"),
			wantCalls: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			h := newTestJobHandlers(newDeliveryFixture(), func(_ context.Context, data map[string]any) error {
				calls++
				assert.Equal(t, "cleanup", data["action"])
				return tc.actionErr
			})

			err := h.Custom(context.Background(), tc.payload)
			assert.ErrorIs(t, err, tc.actionErr)
			assert.Equal(t, tc.wantCalls, calls)
		})
	}
}

func TestJobHandlers_RegisterTo(t *testing.T) {
	center := NewExecCenter()
	newTestJobHandlers(newDeliveryFixture(), nil).RegisterTo(center)

	for _, kind := range []_const.JobType{
		_const.JobTypeNotificationCheck, _const.JobTypeDailySummary, _const.JobTypeCustom,
	} {
		_, ok := center.Lookup(kind)
		assert.True(t, ok, kind)
	}
}

func TestExecCenter_Dispatch(t *testing.T) {
	center := NewExecCenter()
	center.Register(_const.JobTypeCustom, func(context.Context, domain.JobPayload) error {
		panic("boom")
	})

	err := center.Dispatch(context.Background(), _const.JobTypeCustom, domain.CustomPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: boom")

	err = center.Dispatch(context.Background(), "reindex", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownJobType)
}

func TestRetry(t *testing.T) {
	errTemp := errors.New("temporary")

	t.Run("eventually succeeds", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), NewFixedRetryStrategy(time.Millisecond, 3),
			func(context.Context) error {
				attempts++
				if attempts < 3 {
					return errTemp
				}
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("exhausted", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), NewFixedRetryStrategy(time.Millisecond, 2),
			func(context.Context) error {
				attempts++
				return errTemp
			})
		assert.ErrorIs(t, err, errTemp)
		assert.Equal(t, 3, attempts)
	})

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Retry(ctx, NewFixedRetryStrategy(time.Hour, 5),
			func(context.Context) error {
				return errTemp
			})
		assert.ErrorIs(t, err, errTemp)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
