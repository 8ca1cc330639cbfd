package websocket

import (
	"context"
	"sync"

	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/presence"
	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

type mockSessionStore struct {
	setLoggedFunc         func(ctx context.Context, id domain.ID, logged bool) error
	findByIDFunc          func(ctx context.Context, id domain.ID) (domain.User, error)
	upsertRunningAppFunc  func(ctx context.Context, app domain.RunningApp) error
	deleteRunningAppsFunc func(ctx context.Context, id domain.ID) error
}

func (m *mockSessionStore) SetLogged(ctx context.Context, id domain.ID, logged bool) error {
	if m.setLoggedFunc != nil {
		return m.setLoggedFunc(ctx, id, logged)
	}
	return nil
}

func (m *mockSessionStore) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return domain.User{}, commonerrors.ErrUserNotFound
}

func (m *mockSessionStore) UpsertRunningApp(ctx context.Context, app domain.RunningApp) error {
	if m.upsertRunningAppFunc != nil {
		return m.upsertRunningAppFunc(ctx, app)
	}
	return nil
}

func (m *mockSessionStore) DeleteRunningApps(ctx context.Context, id domain.ID) error {
	if m.deleteRunningAppsFunc != nil {
		return m.deleteRunningAppsFunc(ctx, id)
	}
	return nil
}

type recordingConn struct {
	id string

	mu     sync.Mutex
	events []presence.Event
	closed bool
}

func newRecordingConn(id string) *recordingConn {
	return &recordingConn{id: id}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(_ context.Context, event presence.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return commonerrors.ErrConnectionClosed
	}
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *recordingConn) Events() []presence.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]presence.Event(nil), c.events...)
}

func (c *recordingConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
