package notify_scheduler

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		expr string
		want ScheduleKind
	}{
		{name: "every minute", expr: "* * * * *", want: ScheduleRecurring},
		{name: "daily", expr: "0 9 * * *", want: ScheduleRecurring},
		{name: "monthly", expr: "0 0 15 * *", want: ScheduleRecurring},
		{name: "weekly", expr: "0 2 * * 0", want: ScheduleRecurring},
		{name: "month and weekday only", expr: "0 0 * 12 1", want: ScheduleRecurring},
		{name: "day and month", expr: "30 14 25 12 *", want: ScheduleOneTime},
		{name: "day and weekday", expr: "0 0 1 * 1", want: ScheduleOneTime},
		{name: "all fixed", expr: "0 0 1 1 1", want: ScheduleOneTime},
		{name: "extra whitespace", expr: "  0   9  1  1  * ", want: ScheduleOneTime},
		{name: "malformed", expr: "0 9 1", want: ScheduleRecurring},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.expr))
		})
	}
}

func TestOneTimeExpired(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		expr string
		want bool
	}{
		{name: "earlier this year", expr: "0 9 1 1 *", want: true},
		{name: "same day one minute ago", expr: "59 11 15 6 *", want: true},
		{name: "same minute", expr: "0 12 15 6 *", want: false},
		{name: "later this year", expr: "0 9 25 12 *", want: false},
		{name: "recurring", expr: "0 9 * * *", want: false},
		{name: "non literal minute", expr: "*/5 9 1 1 *", want: false},
		{name: "range day", expr: "0 9 1-3 1 *", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OneTimeExpired(tc.expr, now))
		})
	}
}

func TestOneTimeTarget(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	target, ok := OneTimeTarget("30 14 25 12 *", now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.December, 25, 14, 30, 0, 0, time.UTC), target)

	_, ok = OneTimeTarget("30 14 L 12 *", now)
	assert.False(t, ok)
}

// 本地时钟不是UTC时，过期判断仍以UTC为准
func TestOneTimeExpired_DSTClock(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2025-03-09 夏令时切换当天，本地03:30 = UTC 07:30
	now := time.Date(2025, time.March, 9, 3, 30, 0, 0, ny)
	require.Equal(t, 7, now.UTC().Hour())

	// UTC 07:00 已经过去，尽管本地时间07:00还没到
	assert.True(t, OneTimeExpired("0 7 9 3 *", now))
	// UTC 08:00 还没到，尽管本地时间已经过了03:00
	assert.False(t, OneTimeExpired("0 8 9 3 *", now))
	// 本地时间跳过的02:30在UTC下是合法时刻，且已经过去
	assert.True(t, OneTimeExpired("30 2 9 3 *", now))

	// 夏令时结束当天，本地01:30出现两次；第二次对应UTC 06:30
	later := time.Date(2025, time.November, 2, 6, 30, 0, 0, time.UTC).In(ny)
	assert.True(t, OneTimeExpired("29 6 2 11 *", later))
	assert.False(t, OneTimeExpired("31 6 2 11 *", later))
}
