package notify_scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
)

type memJobStore struct {
	mu       sync.Mutex
	jobs     map[string]domain.CronJob
	order    []string
	lastRuns map[string]int
	listErr  error
}

func newMemJobStore(defs ...domain.CronJob) *memJobStore {
	s := &memJobStore{
		jobs:     make(map[string]domain.CronJob),
		lastRuns: make(map[string]int),
	}
	for _, def := range defs {
		s.put(def)
	}
	return s
}

func (s *memJobStore) put(def domain.CronJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[def.ID]; !ok {
		s.order = append(s.order, def.ID)
	}
	s.jobs[def.ID] = def
}

func (s *memJobStore) get(id string) domain.CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *memJobStore) runs(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRuns[id]
}

func (s *memJobStore) ListActive(_ context.Context) ([]domain.CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	var res []domain.CronJob
	for _, id := range s.order {
		if job := s.jobs[id]; job.IsActive {
			res = append(res, job)
		}
	}
	return res, nil
}

func (s *memJobStore) SetActive(_ context.Context, id string, active bool) (domain.CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.CronJob{}, domain.ErrCronJobNotFound
	}
	job.IsActive = active
	s.jobs[id] = job
	return job, nil
}

func (s *memJobStore) UpdateLastRun(_ context.Context, id string, lastRun time.Time, nextRun *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrCronJobNotFound
	}
	job.LastRun = &lastRun
	job.NextRun = nextRun
	s.jobs[id] = job
	s.lastRuns[id]++
	return nil
}

type memNotificationStore struct {
	mu      sync.Mutex
	records []domain.Notification
	sentErr error
}

func (s *memNotificationStore) all() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.records...)
}

func (s *memNotificationStore) CreateBatch(_ context.Context, ns []domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, ns...)
	return nil
}

func (s *memNotificationStore) Create(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, n)
	return nil
}

func (s *memNotificationStore) FindUnread(_ context.Context, userID string) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Notification
	for _, n := range s.records {
		if n.UserID == userID && !n.IsRead {
			res = append(res, n)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (s *memNotificationStore) MarkRead(_ context.Context, id string) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].IsRead = true
			return s.records[i], nil
		}
	}
	return domain.Notification{}, domain.ErrNotificationNotFound
}

func (s *memNotificationStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.records {
		if s.records[i].UserID == userID && !s.records[i].IsRead {
			s.records[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *memNotificationStore) FindDueScheduled(_ context.Context, now time.Time) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Notification
	for _, n := range s.records {
		if n.ScheduledAt != nil && !n.ScheduledAt.After(now) && !n.IsSent {
			res = append(res, n)
		}
	}
	return res, nil
}

func (s *memNotificationStore) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sentErr != nil {
		return s.sentErr
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].IsSent = true
		}
	}
	return nil
}

func (s *memNotificationStore) CountUnreadByUser(_ context.Context) ([]domain.UnreadCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, n := range s.records {
		if !n.IsRead {
			counts[n.UserID]++
		}
	}

	res := make([]domain.UnreadCount, 0, len(counts))
	for userID, c := range counts {
		res = append(res, domain.UnreadCount{UserID: userID, Count: c})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].UserID < res[j].UserID
	})
	return res, nil
}

type memUserStore struct {
	mu        sync.Mutex
	users     []domain.User
	onlineErr error
}

func newMemUserStore(users ...domain.User) *memUserStore {
	return &memUserStore{users: users}
}

func (s *memUserStore) online(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u.IsOnline
		}
	}
	return false
}

func (s *memUserStore) SetOnline(_ context.Context, userID string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onlineErr != nil {
		return s.onlineErr
	}
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].IsOnline = online
			return nil
		}
	}
	s.users = append(s.users, domain.User{ID: userID, Role: _const.RoleUser, IsOnline: online})
	return nil
}

func (s *memUserStore) ListAll(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.User(nil), s.users...), nil
}

func (s *memUserStore) ListByRole(_ context.Context, role _const.Role) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.User
	for _, u := range s.users {
		if u.Role == role {
			res = append(res, u)
		}
	}
	return res, nil
}

var errConnClosed = errors.New("connection closed")

type fakeConn struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// messages 解码所有已发送的消息
func (c *fakeConn) messages() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]map[string]any, 0, len(c.msgs))
	for _, raw := range c.msgs {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err == nil {
			res = append(res, m)
		}
	}
	return res
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time {
		return t
	}
}
