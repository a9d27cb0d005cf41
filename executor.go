package notify_scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
)

// ExecutorFunc 某种任务类型的任务体
type ExecutorFunc func(ctx context.Context, payload domain.JobPayload) error

// ExecCenter 本地的执行器注册中心，按任务类型分发
type ExecCenter struct {
	mu    sync.RWMutex
	execs map[_const.JobType]ExecutorFunc
}

func NewExecCenter() *ExecCenter {
	return &ExecCenter{execs: make(map[_const.JobType]ExecutorFunc)}
}

// Register 注册执行器，同类型重复注册时覆盖
func (c *ExecCenter) Register(kind _const.JobType, fn ExecutorFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs[kind] = fn
}

func (c *ExecCenter) Lookup(kind _const.JobType) (ExecutorFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.execs[kind]
	return fn, ok
}

// Dispatch 执行kind对应的任务体，任务体中的panic转换为错误返回
func (c *ExecCenter) Dispatch(ctx context.Context, kind _const.JobType, payload domain.JobPayload) (err error) {
	fn, ok := c.Lookup(kind)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownJobType, kind)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v\n%s", kind, r, debug.Stack())
		}
	}()

	return fn(ctx, payload)
}
