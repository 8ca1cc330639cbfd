package crypto

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type IDGenerator interface {
	NewID() (string, error)
}

// UUIDGenerator produces user guids.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	return uuid.NewString(), nil
}

// ULIDGenerator produces sortable ids for connections and traces.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var defaultULID = NewULIDGenerator()

// NewULID never fails; on entropy exhaustion it falls back to a fresh reader.
func NewULID() string {
	id, err := defaultULID.NewID()
	if err != nil {
		return ulid.MustNew(ulid.Now(), rand.Reader).String()
	}
	return id
}
