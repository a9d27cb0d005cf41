package notify_scheduler

import (
	"strconv"
	"strings"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
)

const wildcard = "*"

// ScheduleKind 调度表达式的分类
type ScheduleKind int

const (
	ScheduleRecurring ScheduleKind = iota + 1
	ScheduleOneTime
)

func (k ScheduleKind) String() string {
	switch k {
	case ScheduleRecurring:
		return "recurring"
	case ScheduleOneTime:
		return "one-time"
	default:
		return "unknown"
	}
}

// Classify 日和月同时固定，或日和周同时固定的表达式视为一次性任务。
// 非5段的表达式一律视为周期任务，由解析器负责拒绝。
func Classify(expr string) ScheduleKind {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return ScheduleRecurring
	}

	dom, month, dow := fields[2], fields[3], fields[4]
	if dom != wildcard && (month != wildcard || dow != wildcard) {
		return ScheduleOneTime
	}
	return ScheduleRecurring
}

// OneTimeTarget 返回一次性任务在now所在年份(UTC)的目标时刻。
// 只有分、时、日、月都是字面量时才能确定目标时刻。
func OneTimeTarget(expr string, now time.Time) (time.Time, bool) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return time.Time{}, false
	}

	vals := make([]int, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return time.Time{}, false
		}
		vals[i] = v
	}

	minute, hour, day, month := vals[0], vals[1], vals[2], vals[3]
	year := now.In(_const.Location).Year()
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, _const.Location), true
}

// OneTimeExpired 一次性任务的目标时刻是否已经早于now，比较统一在UTC下进行
func OneTimeExpired(expr string, now time.Time) bool {
	if Classify(expr) != ScheduleOneTime {
		return false
	}

	target, ok := OneTimeTarget(expr, now)
	if !ok {
		return false
	}
	return target.Before(now.In(_const.Location))
}
