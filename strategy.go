package notify_scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
)

var ErrOverMaxCount = errors.New("over max count")

type RetryStrategy interface {
	Next() (time.Duration, error)
}

type FixedRetryStrategy struct {
	// 固定时间间隔
	interval time.Duration
	// 最大重试次数
	maxCount int
	// 当前已经重试的次数
	counter int
}

func NewFixedRetryStrategy(interval time.Duration, maxCount int) *FixedRetryStrategy {
	return &FixedRetryStrategy{
		interval: interval,
		maxCount: maxCount,
	}
}

func (s *FixedRetryStrategy) Next() (time.Duration, error) {
	if s.counter >= s.maxCount {
		return 0, ErrOverMaxCount
	}
	s.counter++
	return s.interval, nil
}

// Retry 执行fn直到成功、策略耗尽或ctx结束，返回最后一次的错误
func Retry(ctx context.Context, strategy RetryStrategy, fn func(ctx context.Context) error) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		interval, serr := strategy.Next()
		if serr != nil {
			return err
		}

		if timer == nil {
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}

		select {
		case <-ctx.Done():
			return multierr.Combine(err, ctx.Err())
		case <-timer.C:
		}
	}
}
