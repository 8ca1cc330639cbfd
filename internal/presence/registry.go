package presence

import (
	"context"
	"sync"

	"github.com/AlibekovAA/devicehub/internal/observability/metrics"
)

// Event is a server-to-device message addressed by type.
type Event struct {
	Type    string
	Payload any
}

// Conn is a live device connection handle. Handles compare by identity.
type Conn interface {
	ID() string
	Send(ctx context.Context, event Event) error
	Close()
}

// Registry maps a user guid to at most one live connection. It lives only
// in memory and starts empty on every process start.
type Registry struct {
	mu    sync.Mutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register binds guid to conn. When another handle was bound it is returned
// with superseded set; the caller owns closing it.
func (r *Registry) Register(guid string, conn Conn) (Conn, bool) {
	r.mu.Lock()
	previous, exists := r.conns[guid]
	r.conns[guid] = conn
	size := len(r.conns)
	r.mu.Unlock()

	metrics.PresenceEntries.Set(float64(size))

	if exists && previous != conn {
		metrics.PresenceSuperseded.Inc()
		return previous, true
	}
	return nil, false
}

func (r *Registry) Lookup(guid string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[guid]
	return conn, ok
}

// Unregister removes guid only while it is still bound to conn. A false
// result means a newer connection owns the entry.
func (r *Registry) Unregister(guid string, conn Conn) bool {
	r.mu.Lock()
	current, ok := r.conns[guid]
	if !ok || current != conn {
		r.mu.Unlock()
		metrics.PresenceStaleUnregisters.Inc()
		return false
	}
	delete(r.conns, guid)
	size := len(r.conns)
	r.mu.Unlock()

	metrics.PresenceEntries.Set(float64(size))
	return true
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
