package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/TimeWtr/notify_scheduler"
	_const "github.com/TimeWtr/notify_scheduler/const"
	"github.com/TimeWtr/notify_scheduler/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *stubConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, data)
	return nil
}

func (c *stubConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type stubInbox struct {
	mu        sync.Mutex
	delivered []string
	read      []string
	err       error
}

func (s *stubInbox) DeliverUnread(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, userID)
	return 0, s.err
}

func (s *stubInbox) MarkRead(_ context.Context, id string) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read = append(s.read, id)
	return domain.Notification{ID: id, IsRead: true}, s.err
}

func newTestRouter(policy _const.ConnectionPolicy) (*Router, *notify_scheduler.ConnectionRegistry, *stubInbox) {
	registry := notify_scheduler.NewConnectionRegistry(nil, notify_scheduler.NopLogger(),
		notify_scheduler.WithConnectionPolicy(policy))
	inbox := &stubInbox{}
	return NewRouter(registry, inbox, notify_scheduler.NopLogger(), 0), registry, inbox
}

func TestRouter_HandleMessage(t *testing.T) {
	testCases := []struct {
		name          string
		raw           string
		wantOnline    bool
		wantDelivered []string
		wantRead      []string
	}{
		{
			name:          "register",
			raw:           `{"type":"register","userId":"user1"}`,
			wantOnline:    true,
			wantDelivered: []string{"user1"},
		},
		{name: "register without user", raw: `{"type":"register"}`},
		{name: "mark as read", raw: `{"type":"markAsRead","notificationId":"n1"}`, wantRead: []string{"n1"}},
		{name: "mark as read without id", raw: `{"type":"markAsRead"}`},
		{name: "unknown type", raw: `{"type":"subscribe","userId":"user1"}`},
		{name: "missing type", raw: `{"userId":"user1"}`},
		{name: "malformed", raw: `{"type":`},
		{name: "not an object", raw: `"register"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router, registry, inbox := newTestRouter(_const.ReplaceConnectionPolicy)
			conn := &stubConn{}

			assert.NotPanics(t, func() {
				router.HandleMessage(context.Background(), conn, []byte(tc.raw))
			})
			assert.Equal(t, tc.wantOnline, registry.IsOnline("user1"))
			assert.Equal(t, tc.wantDelivered, inbox.delivered)
			assert.Equal(t, tc.wantRead, inbox.read)
			assert.False(t, conn.closed)
		})
	}
}

func TestRouter_RegisterRejected(t *testing.T) {
	router, registry, inbox := newTestRouter(_const.RejectNewConnectionPolicy)
	first, second := &stubConn{}, &stubConn{}
	ctx := context.Background()

	router.HandleMessage(ctx, first, []byte(`{"type":"register","userId":"user1"}`))
	router.HandleMessage(ctx, second, []byte(`{"type":"register","userId":"user1"}`))

	assert.True(t, second.closed)
	require.Len(t, second.sent, 1)
	var reply notify_scheduler.OutboundMessage
	require.NoError(t, json.Unmarshal(second.sent[0], &reply))
	assert.Equal(t, MessageTypeError, reply.Type)

	userID, ok := registry.FindUserByConnection(first)
	require.True(t, ok)
	assert.Equal(t, "user1", userID)
	assert.Equal(t, []string{"user1"}, inbox.delivered)
}

func TestRouter_InboxErrors(t *testing.T) {
	router, registry, inbox := newTestRouter(_const.ReplaceConnectionPolicy)
	inbox.err = errors.New("db down")
	conn := &stubConn{}
	ctx := context.Background()

	router.HandleMessage(ctx, conn, []byte(`{"type":"register","userId":"user1"}`))
	router.HandleMessage(ctx, conn, []byte(`{"type":"markAsRead","notificationId":"n1"}`))

	// 存储失败不影响连接
	assert.True(t, registry.IsOnline("user1"))
	assert.False(t, conn.closed)
}

func TestRouter_Disconnect(t *testing.T) {
	router, registry, _ := newTestRouter(_const.ReplaceConnectionPolicy)
	conn := &stubConn{}
	ctx := context.Background()

	router.HandleMessage(ctx, conn, []byte(`{"type":"register","userId":"user1"}`))
	router.Disconnect(ctx, conn)
	assert.False(t, registry.IsOnline("user1"))

	// 未注册的连接
	router.Disconnect(ctx, &stubConn{})
	assert.Equal(t, 0, registry.Len())
}
