package _const

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Parser 定时时间解析器，只接受标准的5段表达式
var Parser = cron.NewParser(cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow)

// Location 所有调度、一次性任务过期判断统一使用UTC
var Location = time.UTC

const (
	// DefaultLimiter 同时执行的任务体数量上限
	DefaultLimiter = 16
	// DefaultFireTimeout 单次任务执行的超时时间
	DefaultFireTimeout = 5 * time.Minute
	// DefaultQueryTimeout 单次存储访问的超时时间
	DefaultQueryTimeout = 3 * time.Second
	// SystemSenderID 系统生成的点对点通知的发送者
	SystemSenderID = "system"
)
