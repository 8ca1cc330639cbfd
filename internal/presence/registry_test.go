package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string
}

func (c *fakeConn) ID() string                        { return c.id }
func (c *fakeConn) Send(context.Context, Event) error { return nil }
func (c *fakeConn) Close()                            {}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{id: "c1"}

	prev, superseded := r.Register("g1", c1)
	assert.Nil(t, prev)
	assert.False(t, superseded)

	got, ok := r.Lookup("g1")
	require.True(t, ok)
	assert.Same(t, c1, got)
	assert.Equal(t, 1, r.Count())

	_, ok = r.Lookup("g2")
	assert.False(t, ok)
}

func TestRegistry_SupersedeReturnsPrevious(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}

	r.Register("g1", c1)
	prev, superseded := r.Register("g1", c2)

	assert.True(t, superseded)
	assert.Same(t, c1, prev)

	got, _ := r.Lookup("g1")
	assert.Same(t, c2, got)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_ReRegisterSameConnIsNotSupersede(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{id: "c1"}

	r.Register("g1", c1)
	prev, superseded := r.Register("g1", c1)

	assert.Nil(t, prev)
	assert.False(t, superseded)
}

func TestRegistry_StaleUnregisterKeepsNewer(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}

	r.Register("g1", c1)
	r.Register("g1", c2)

	assert.False(t, r.Unregister("g1", c1))
	got, ok := r.Lookup("g1")
	require.True(t, ok)
	assert.Same(t, c2, got)

	assert.True(t, r.Unregister("g1", c2))
	_, ok = r.Lookup("g1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_UnregisterUnknown(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Unregister("missing", &fakeConn{id: "c"}))
}

func TestRegistry_ConcurrentRegisterKeepsOneEntry(t *testing.T) {
	r := NewRegistry()
	const workers = 64

	conns := make([]*fakeConn, workers)
	for i := range conns {
		conns[i] = &fakeConn{id: fmt.Sprintf("c%d", i)}
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		supersedes int
	)
	for _, c := range conns {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			if _, superseded := r.Register("g1", c); superseded {
				mu.Lock()
				supersedes++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 1, r.Count())
	assert.Equal(t, workers-1, supersedes)

	winner, ok := r.Lookup("g1")
	require.True(t, ok)

	removed := 0
	for _, c := range conns {
		if r.Unregister("g1", c) {
			removed++
			assert.Same(t, winner, c)
		}
	}
	assert.Equal(t, 1, removed)
}
