package notify_scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/semaphore"
)

type Scheduler interface {
	// AddJob 调度一个任务定义，已存在同ID的任务时先移除
	AddJob(ctx context.Context, def domain.CronJob) (_const.JobState, error)
	// RemoveJob 停止并丢弃任务，不存在时不做任何事
	RemoveJob(id string)
	// UpdateJob 先移除，新定义处于激活状态时重新添加
	UpdateJob(ctx context.Context, id string, def domain.CronJob) (_const.JobState, error)
	// ExecuteDirect 立即执行一次任务体，不更新执行记录
	ExecuteDirect(ctx context.Context, kind _const.JobType, rawPayload string) error
	ListActive() []domain.ActiveJob
	LoadAll(ctx context.Context) error
	Start()
	Shutdown(ctx context.Context) error
}

type Options func(s *JobScheduler)

// WithLimiter 设置同时执行的任务体数量上限
func WithLimiter(limiter int64) Options {
	return func(s *JobScheduler) {
		s.limiter = semaphore.NewWeighted(limiter)
	}
}

// WithClock 替换时间来源，用于一次性任务的过期判断和执行记录
func WithClock(now func() time.Time) Options {
	return func(s *JobScheduler) {
		s.now = now
	}
}

// WithFireTimeout 设置单次任务执行的超时时间
func WithFireTimeout(timeout time.Duration) Options {
	return func(s *JobScheduler) {
		s.fireTimeout = timeout
	}
}

// WithQueryTimeout 设置任务定义存储访问的超时时间
func WithQueryTimeout(timeout time.Duration) Options {
	return func(s *JobScheduler) {
		s.queryTimeout = timeout
	}
}

// activeTask 调度时任务定义的不可变快照
type activeTask struct {
	id         string
	name       string
	kind       _const.JobType
	expression string
	oneTime    bool
	payload    domain.JobPayload
	schedule   cron.Schedule
}

type liveEntry struct {
	task    *activeTask
	entryID cron.EntryID
}

type JobScheduler struct {
	logger Logger
	jobs   JobStore
	// 本地的执行器注册中心
	center *ExecCenter
	cron   *cron.Cron

	mu    sync.Mutex
	tasks map[string]liveEntry

	// 限流
	limiter      *semaphore.Weighted
	now          func() time.Time
	fireTimeout  time.Duration
	queryTimeout time.Duration
}

func NewJobScheduler(
	jobs JobStore,
	center *ExecCenter,
	logger Logger,
	opts ...Options) *JobScheduler {
	s := &JobScheduler{
		logger:       logger,
		jobs:         jobs,
		center:       center,
		tasks:        make(map[string]liveEntry),
		now:          time.Now,
		fireTimeout:  _const.DefaultFireTimeout,
		queryTimeout: _const.DefaultQueryTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.limiter == nil {
		s.limiter = semaphore.NewWeighted(_const.DefaultLimiter)
	}

	s.cron = cron.New(
		cron.WithLocation(_const.Location),
		cron.WithParser(_const.Parser),
		cron.WithLogger(cronLogger{l: logger}),
	)

	return s
}

func (s *JobScheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started", String("location", _const.Location.String()))
}

func (s *JobScheduler) AddJob(ctx context.Context, def domain.CronJob) (_const.JobState, error) {
	s.RemoveJob(def.ID)

	payload := s.parsePayload(def)
	kind := Classify(def.CronExpression)

	if kind == ScheduleOneTime && OneTimeExpired(def.CronExpression, s.now()) {
		s.logger.Info("one-time job already passed, executing immediately",
			String("job_id", def.ID), String("job_name", def.Name),
			String("expression", def.CronExpression))

		fctx, cancel := context.WithTimeout(ctx, s.fireTimeout)
		err := s.execute(fctx, def.JobType, payload)
		cancel()
		if err != nil {
			s.logger.Error("one-time job failed", String("job_id", def.ID), Err(err))
		}

		lctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
		if _, err = s.jobs.SetActive(lctx, def.ID, false); err != nil {
			return _const.JobStateExecutedOnce, fmt.Errorf("deactivate one-time job %s: %w", def.ID, err)
		}
		return _const.JobStateExecutedOnce, nil
	}

	schedule, err := _const.Parser.Parse(def.CronExpression)
	if err != nil {
		return _const.JobStateInactive, fmt.Errorf("parse cron expression %q: %w", def.CronExpression, err)
	}

	t := &activeTask{
		id:         def.ID,
		name:       def.Name,
		kind:       def.JobType,
		expression: def.CronExpression,
		oneTime:    kind == ScheduleOneTime,
		payload:    payload,
		schedule:   schedule,
	}

	cl := cronLogger{l: s.logger}
	job := cron.NewChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)).
		Then(cron.FuncJob(func() { s.fire(t) }))

	s.mu.Lock()
	if old, ok := s.tasks[t.id]; ok {
		// 并发的AddJob已经抢先添加
		s.cron.Remove(old.entryID)
	}
	s.tasks[t.id] = liveEntry{task: t, entryID: s.cron.Schedule(schedule, job)}
	s.mu.Unlock()

	s.logger.Info("cron job added", String("job_id", t.id), String("job_name", t.name),
		String("expression", t.expression), String("schedule", kind.String()))
	return _const.JobStateActive, nil
}

func (s *JobScheduler) RemoveJob(id string) {
	s.mu.Lock()
	e, ok := s.tasks[id]
	if ok {
		s.cron.Remove(e.entryID)
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Info("cron job removed", String("job_id", id), String("job_name", e.task.name))
	}
}

// removeIfCurrent 只移除t本身，任务已被替换时不做任何事
func (s *JobScheduler) removeIfCurrent(t *activeTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[t.id]
	if !ok || e.task != t {
		return false
	}
	s.cron.Remove(e.entryID)
	delete(s.tasks, t.id)
	return true
}

func (s *JobScheduler) UpdateJob(ctx context.Context, id string, def domain.CronJob) (_const.JobState, error) {
	s.RemoveJob(id)
	if !def.IsActive {
		return _const.JobStateInactive, nil
	}

	def.ID = id
	return s.AddJob(ctx, def)
}

func (s *JobScheduler) ExecuteDirect(ctx context.Context, kind _const.JobType, rawPayload string) error {
	payload, err := domain.ParseJobPayload(kind, rawPayload)
	if err != nil {
		return err
	}

	s.logger.Info("direct execution of job type", String("job_type", kind.String()))
	fctx, cancel := context.WithTimeout(ctx, s.fireTimeout)
	defer cancel()
	return s.execute(fctx, kind, payload)
}

func (s *JobScheduler) ListActive() []domain.ActiveJob {
	nexts := make(map[cron.EntryID]time.Time)
	for _, entry := range s.cron.Entries() {
		nexts[entry.ID] = entry.Next
	}

	s.mu.Lock()
	res := make([]domain.ActiveJob, 0, len(s.tasks))
	for _, e := range s.tasks {
		aj := domain.ActiveJob{
			ID:        e.task.id,
			Name:      e.task.name,
			JobType:   e.task.kind,
			IsRunning: true,
		}
		if next, ok := nexts[e.entryID]; ok && !next.IsZero() {
			aj.NextRun = &next
		}
		res = append(res, aj)
	}
	s.mu.Unlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res
}

func (s *JobScheduler) LoadAll(ctx context.Context) error {
	s.logger.Info("loading active cron jobs")

	lctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defs, err := s.jobs.ListActive(lctx)
	cancel()
	if err != nil {
		return fmt.Errorf("list active cron jobs: %w", err)
	}

	loaded := 0
	for _, def := range defs {
		if _, err = s.AddJob(ctx, def); err != nil {
			s.logger.Error("failed to add cron job",
				String("job_id", def.ID), String("job_name", def.Name), Err(err))
			continue
		}
		loaded++
	}

	s.logger.Info("active cron jobs loaded", Int("total", len(defs)), Int("loaded", loaded))
	return nil
}

func (s *JobScheduler) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping all cron jobs")

	s.mu.Lock()
	for id, e := range s.tasks {
		s.cron.Remove(e.entryID)
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fire 一次调度触发：执行任务体，成功后记录执行时间，一次性任务执行后自动停用
func (s *JobScheduler) fire(t *activeTask) {
	start := s.now().UTC()
	log := s.logger.With(String("job_id", t.id), String("job_name", t.name),
		String("job_type", t.kind.String()))
	log.Info("executing cron job")

	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()

	if err := s.limiter.Acquire(ctx, 1); err != nil {
		log.Error("failed to acquire execution slot", Err(err))
		return
	}
	err := s.execute(ctx, t.kind, t.payload)
	s.limiter.Release(1)
	if err != nil && !errors.Is(err, domain.ErrUnknownJobType) {
		log.Error("cron job failed", Err(err))
		return
	}

	var next *time.Time
	if n := t.schedule.Next(start); !n.IsZero() {
		next = &n
	}

	lctx, lcancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer lcancel()
	if err = s.jobs.UpdateLastRun(lctx, t.id, start, next); err != nil {
		log.Error("failed to update last run", Err(err))
	}

	log.Info("cron job completed", Any("duration", s.now().Sub(start).String()))

	if !t.oneTime {
		return
	}

	if _, err = s.jobs.SetActive(lctx, t.id, false); err != nil {
		log.Error("failed to deactivate one-time job", Err(err))
	}
	if s.removeIfCurrent(t) {
		log.Info("one-time job completed and deactivated")
	}
}

// execute 分发任务体，未知的任务类型原样返回错误由调用方决定如何处理
func (s *JobScheduler) execute(ctx context.Context, kind _const.JobType, payload domain.JobPayload) error {
	err := s.center.Dispatch(ctx, kind, payload)
	if err != nil && errors.Is(err, domain.ErrUnknownJobType) {
		s.logger.Warn("unknown job type", String("job_type", kind.String()))
	}
	return err
}

func (s *JobScheduler) parsePayload(def domain.CronJob) domain.JobPayload {
	payload, err := domain.ParseJobPayload(def.JobType, def.JobData)
	if err == nil {
		return payload
	}

	if errors.Is(err, domain.ErrUnknownJobType) {
		s.logger.Warn("unknown job type", String("job_id", def.ID),
			String("job_type", def.JobType.String()))
		return nil
	}

	s.logger.Error("invalid job payload, running without it",
		String("job_id", def.ID), Err(err))
	payload, _ = domain.ParseJobPayload(def.JobType, "")
	return payload
}
