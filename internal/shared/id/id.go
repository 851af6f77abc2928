// Package id generates the identifiers the bridge attaches to requests.
//
// IDs are ULIDs, so they sort by creation time and read well in logs. A
// short prefix marks what kind of thing an ID names.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one request through the bridge
type RequestID string

func (id RequestID) String() string { return string(id) }

const RequestPrefix = "req"

// Generator produces ULIDs from a shared entropy source.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0), now: time.Now}
}

// NewGeneratorWithEntropy creates a generator with a fixed entropy source
// and clock, for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// WithPrefix returns "<prefix>_<ulid>"
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().WithPrefix(RequestPrefix))
}

// IsRequestID reports whether s looks like an ID from NewRequestID. The
// bridge uses it to decide whether an incoming X-Request-ID can be kept.
func IsRequestID(s string) bool {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok || prefix != RequestPrefix {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}

