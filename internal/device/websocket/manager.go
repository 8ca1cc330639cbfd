package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AlibekovAA/devicehub/internal/common/clock"
	"github.com/AlibekovAA/devicehub/internal/common/db"
	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	commonhttp "github.com/AlibekovAA/devicehub/internal/common/http"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
	"github.com/AlibekovAA/devicehub/internal/common/resilience"
	"github.com/AlibekovAA/devicehub/internal/observability/metrics"
	"github.com/AlibekovAA/devicehub/internal/presence"
	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

// SessionStore is the slice of the identity store a live session touches.
type SessionStore interface {
	SetLogged(ctx context.Context, id domain.ID, logged bool) error
	FindByID(ctx context.Context, id domain.ID) (domain.User, error)
	UpsertRunningApp(ctx context.Context, app domain.RunningApp) error
	DeleteRunningApps(ctx context.Context, id domain.ID) error
}

type OutcomeKind string

const (
	OutcomeNone    OutcomeKind = "none"
	OutcomeExpired OutcomeKind = "expired"
	OutcomeWarning OutcomeKind = "warning"
)

// Outcome is the subscription verdict sent to a device after identify.
type Outcome struct {
	Kind OutcomeKind
	Days int
}

type ManagerConfig struct {
	StoreTimeout time.Duration
	Breaker      *resilience.CircuitBreaker
}

// SessionManager drives every live session against the shared registry
// and the identity store.
type SessionManager struct {
	registry     *presence.Registry
	store        SessionStore
	clock        clock.Clock
	log          *logger.Logger
	storeTimeout time.Duration
	breaker      *resilience.CircuitBreaker
	locks        *guidLocks

	mu       sync.Mutex
	sessions map[*Session]struct{}
	active   sync.WaitGroup
}

func NewSessionManager(registry *presence.Registry, store SessionStore, clk clock.Clock, log *logger.Logger, cfg ManagerConfig) *SessionManager {
	return &SessionManager{
		registry:     registry,
		store:        store,
		clock:        clk,
		log:          log,
		storeTimeout: cfg.StoreTimeout,
		breaker:      cfg.Breaker,
		locks:        newGUIDLocks(),
		sessions:     make(map[*Session]struct{}),
	}
}

// Open starts tracking a new connection. Every opened session must reach
// Disconnect.
func (m *SessionManager) Open(conn presence.Conn) *Session {
	s := NewSession(conn)

	m.mu.Lock()
	m.sessions[s] = struct{}{}
	m.mu.Unlock()
	m.active.Add(1)

	return s
}

func (m *SessionManager) forget(s *Session) {
	m.mu.Lock()
	_, tracked := m.sessions[s]
	delete(m.sessions, s)
	m.mu.Unlock()

	if tracked {
		m.active.Done()
	}
}

// storeCall runs fn under the store timeout and, when configured, the
// circuit breaker. The parent context is detached so teardown still
// reaches the store after the transport is gone.
func (m *SessionManager) storeCall(ctx context.Context, fn func(context.Context) error) error {
	callCtx := context.WithoutCancel(ctx)
	if m.storeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, m.storeTimeout)
		defer cancel()
	}
	if m.breaker != nil {
		return m.breaker.Call(callCtx, fn)
	}
	return fn(callCtx)
}

// HandleMessage routes one inbound frame. Validation failures are reported
// to the device as an error event; store failures are only logged.
func (m *SessionManager) HandleMessage(ctx context.Context, s *Session, msg *WSMessage) error {
	var err error
	switch msg.Type {
	case TypeUser:
		var guid string
		guid, err = unmarshalStringPayload(msg.Payload)
		if err == nil {
			guid, err = commonhttp.CanonicalUUID(guid)
		}
		if err == nil {
			_, err = m.Identify(ctx, s, guid)
		}
	case TypeOpenApp:
		var name string
		name, err = unmarshalStringPayload(msg.Payload)
		if err == nil {
			err = m.OpenApp(ctx, s, name)
		}
	case TypeRemoveApp:
		err = m.RemoveApp(ctx, s)
	default:
		err = commonerrors.ErrUnknownMessageType
	}

	if err == nil {
		return nil
	}

	fields := logger.Fields{
		"conn_id": s.conn.ID(),
		"guid":    s.GUID(),
		"type":    msg.Type.String(),
		"state":   s.State().String(),
	}

	domainErr, ok := commonerrors.AsDomainError(err)
	if ok && domainErr.Category() == commonerrors.CategoryValidation {
		fields["action"] = "ws_event_rejected"
		m.log.WithFields(ctx, fields).Warnf("websocket event rejected: %v", err)
		metrics.SessionRejectedEvents.WithLabelValues(msg.Type.String(), s.State().String()).Inc()
		if sendErr := s.conn.Send(ctx, ErrorEvent(domainErr)); sendErr != nil {
			m.log.WithFields(ctx, logger.Fields{
				"conn_id": s.conn.ID(),
				"action":  "ws_error_send_failed",
			}).Warnf("failed to send error event: %v", sendErr)
		}
		return err
	}

	fields["action"] = "ws_event_failed"
	m.log.WithFields(ctx, fields).Errorf("websocket event failed: %v", err)
	return err
}

// Identify binds the session to guid and evaluates the subscription. A
// store failure before registration leaves the session Open.
func (m *SessionManager) Identify(ctx context.Context, s *Session, guid string) (Outcome, error) {
	if err := s.Allow(EventIdentify); err != nil {
		return Outcome{}, err
	}

	unlock := m.locks.lock(guid)
	defer unlock()

	id := domain.ID(guid)

	if err := m.storeCall(ctx, func(ctx context.Context) error {
		return m.store.SetLogged(ctx, id, true)
	}); err != nil {
		metrics.SessionStoreFailures.WithLabelValues("set_logged").Inc()
		return Outcome{}, commonerrors.ErrStoreUnavailable.WithCause(err)
	}

	if previous, superseded := m.registry.Register(guid, s.conn); superseded {
		m.log.WithFields(ctx, logger.Fields{
			"guid":          guid,
			"conn_id":       s.conn.ID(),
			"superseded_id": previous.ID(),
			"action":        "ws_session_superseded",
		}).Info("closing superseded device connection")
		previous.Close()
	}

	if err := s.identify(guid); err != nil {
		return Outcome{}, err
	}

	var user domain.User
	err := m.storeCall(ctx, func(ctx context.Context) error {
		var err error
		user, err = m.store.FindByID(ctx, id)
		return err
	})

	var outcome Outcome
	switch {
	case errors.Is(err, commonerrors.ErrUserNotFound):
		outcome = Outcome{Kind: OutcomeExpired}
	case err != nil:
		metrics.SessionStoreFailures.WithLabelValues("find_user").Inc()
		return Outcome{}, commonerrors.ErrStoreUnavailable.WithCause(err)
	default:
		outcome = evaluate(user, m.clock.Now())
	}

	metrics.SessionOutcomes.WithLabelValues(string(outcome.Kind)).Inc()
	m.log.WithFields(ctx, logger.Fields{
		"guid":    guid,
		"conn_id": s.conn.ID(),
		"outcome": string(outcome.Kind),
		"days":    outcome.Days,
		"action":  "ws_identified",
	}).Info("device identified")

	var event presence.Event
	switch outcome.Kind {
	case OutcomeExpired:
		s.markExpired()
		event = ExpiredEvent()
	case OutcomeWarning:
		event = WarningEvent(outcome.Days)
	default:
		return outcome, nil
	}

	if err := s.conn.Send(ctx, event); err != nil {
		m.log.WithFields(ctx, logger.Fields{
			"guid":    guid,
			"conn_id": s.conn.ID(),
			"action":  "ws_outcome_send_failed",
		}).Warnf("failed to send %s: %v", event.Type, err)
	}
	return outcome, nil
}

func evaluate(user domain.User, now time.Time) Outcome {
	standing, days := domain.EvaluateStanding(user, now)
	switch standing {
	case domain.StandingExpired:
		return Outcome{Kind: OutcomeExpired}
	case domain.StandingWarning:
		return Outcome{Kind: OutcomeWarning, Days: days}
	default:
		return Outcome{Kind: OutcomeNone}
	}
}

// owns reports whether s is still the registered connection for its guid.
func (m *SessionManager) owns(s *Session, guid string) bool {
	current, ok := m.registry.Lookup(guid)
	return ok && current == s.conn
}

func (m *SessionManager) OpenApp(ctx context.Context, s *Session, name string) error {
	if _, err := s.Transition(EventOpenApp); err != nil {
		return err
	}

	guid := s.GUID()
	unlock := m.locks.lock(guid)
	defer unlock()

	if !m.owns(s, guid) {
		m.log.WithFields(ctx, logger.Fields{
			"guid":    guid,
			"conn_id": s.conn.ID(),
			"action":  "ws_open_app_superseded",
		}).Info("ignoring openApp from superseded connection")
		return nil
	}

	app := domain.RunningApp{UserID: domain.ID(guid), Name: name, StartAt: m.clock.Now()}
	if err := m.storeCall(ctx, func(ctx context.Context) error {
		return m.store.UpsertRunningApp(ctx, app)
	}); err != nil {
		if db.IsForeignKeyViolation(err) {
			return commonerrors.ErrUserNotFound.WithCause(err)
		}
		metrics.SessionStoreFailures.WithLabelValues("upsert_running_app").Inc()
		return commonerrors.ErrStoreUnavailable.WithCause(err)
	}

	m.log.WithFields(ctx, logger.Fields{
		"guid":   guid,
		"app":    name,
		"action": "ws_open_app",
	}).Debug("running app recorded")
	return nil
}

func (m *SessionManager) RemoveApp(ctx context.Context, s *Session) error {
	if _, err := s.Transition(EventRemoveApp); err != nil {
		return err
	}

	guid := s.GUID()
	unlock := m.locks.lock(guid)
	defer unlock()

	if !m.owns(s, guid) {
		m.log.WithFields(ctx, logger.Fields{
			"guid":    guid,
			"conn_id": s.conn.ID(),
			"action":  "ws_remove_app_superseded",
		}).Info("ignoring removeApp from superseded connection")
		return nil
	}

	if err := m.storeCall(ctx, func(ctx context.Context) error {
		return m.store.DeleteRunningApps(ctx, domain.ID(guid))
	}); err != nil {
		metrics.SessionStoreFailures.WithLabelValues("delete_running_apps").Inc()
		return commonerrors.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Disconnect terminates s. Only the connection still owning the presence
// entry clears isLogged and the running app; a superseded one leaves the
// newer session's state alone. Store failures are logged, not returned.
func (m *SessionManager) Disconnect(ctx context.Context, s *Session) {
	if _, err := s.Transition(EventDisconnect); err != nil {
		return
	}
	defer m.forget(s)

	guid := s.GUID()
	if guid == "" {
		return
	}

	unlock := m.locks.lock(guid)
	defer unlock()

	if !m.registry.Unregister(guid, s.conn) {
		m.log.WithFields(ctx, logger.Fields{
			"guid":    guid,
			"conn_id": s.conn.ID(),
			"action":  "ws_teardown_stale",
		}).Debug("skipping teardown of superseded connection")
		return
	}

	id := domain.ID(guid)
	if err := m.storeCall(ctx, func(ctx context.Context) error {
		return m.store.SetLogged(ctx, id, false)
	}); err != nil {
		metrics.SessionStoreFailures.WithLabelValues("clear_logged").Inc()
		m.log.WithFields(ctx, logger.Fields{
			"guid":   guid,
			"action": "ws_teardown_clear_logged_failed",
		}).Errorf("failed to clear isLogged: %v", err)
	}

	if err := m.storeCall(ctx, func(ctx context.Context) error {
		return m.store.DeleteRunningApps(ctx, id)
	}); err != nil {
		metrics.SessionStoreFailures.WithLabelValues("delete_running_apps").Inc()
		m.log.WithFields(ctx, logger.Fields{
			"guid":   guid,
			"action": "ws_teardown_delete_apps_failed",
		}).Errorf("failed to delete running apps: %v", err)
	}

	m.log.WithFields(ctx, logger.Fields{
		"guid":    guid,
		"conn_id": s.conn.ID(),
		"action":  "ws_session_terminated",
	}).Info("device session terminated")
}

// CloseAll closes every open connection and waits for their teardown
// until ctx expires.
func (m *SessionManager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	conns := make([]presence.Conn, 0, len(m.sessions))
	for s := range m.sessions {
		conns = append(conns, s.conn)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		m.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Infof("closed %d device connections", len(conns))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
