package websocket

import (
	"fmt"
	"sync"

	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/presence"
)

type State int

const (
	StateOpen State = iota
	StateIdentified
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateIdentified:
		return "identified"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type SessionEvent int

const (
	EventIdentify SessionEvent = iota
	EventOpenApp
	EventRemoveApp
	EventDisconnect
)

func (e SessionEvent) String() string {
	switch e {
	case EventIdentify:
		return "identify"
	case EventOpenApp:
		return "openApp"
	case EventRemoveApp:
		return "removeApp"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// next is the whole transition table. ok is false for events the state
// does not accept.
func next(state State, event SessionEvent) (State, bool) {
	switch state {
	case StateOpen:
		switch event {
		case EventIdentify:
			return StateIdentified, true
		case EventDisconnect:
			return StateTerminated, true
		}
	case StateIdentified:
		switch event {
		case EventOpenApp, EventRemoveApp:
			return StateIdentified, true
		case EventDisconnect:
			return StateTerminated, true
		}
	}
	return state, false
}

// Session is the per-connection state. The guid is bound once, on the
// Open to Identified transition. An expired session stays Identified until
// disconnect but no longer accepts app events.
type Session struct {
	mu      sync.Mutex
	state   State
	guid    string
	expired bool
	conn    presence.Conn
}

func NewSession(conn presence.Conn) *Session {
	return &Session{state: StateOpen, conn: conn}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) GUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guid
}

func (s *Session) Conn() presence.Conn {
	return s.conn
}

func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

func (s *Session) markExpired() {
	s.mu.Lock()
	s.expired = true
	s.mu.Unlock()
}

// Allow reports whether event is valid now without changing state.
func (s *Session) Allow(event SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := next(s.state, event); !ok {
		return invalidTransition(s.state, event)
	}
	return nil
}

func (s *Session) Transition(event SessionEvent) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	to, ok := next(s.state, event)
	if !ok {
		return s.state, invalidTransition(s.state, event)
	}
	if s.expired && (event == EventOpenApp || event == EventRemoveApp) {
		return s.state, commonerrors.ErrInvalidTransition.WithCause(fmt.Errorf("%s not allowed after expired", event))
	}
	s.state = to
	return to, nil
}

func (s *Session) identify(guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	to, ok := next(s.state, EventIdentify)
	if !ok {
		return invalidTransition(s.state, EventIdentify)
	}
	s.state = to
	s.guid = guid
	return nil
}

func invalidTransition(state State, event SessionEvent) error {
	return commonerrors.ErrInvalidTransition.WithCause(fmt.Errorf("%s not allowed in state %s", event, state))
}
