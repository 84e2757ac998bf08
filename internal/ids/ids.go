// Package ids generates identifiers for stored entities and requests.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a ULID for platforms, organizations, users, roles, modules and audit entries.
func New() string {
	return At(time.Now())
}

// At returns a ULID carrying timestamp t. IDs from the same millisecond stay ordered.
func At(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// RequestID returns a random correlation id for an inbound request.
func RequestID() string {
	return uuid.NewString()
}
