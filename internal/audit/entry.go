package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	DefaultListLimit = 30
	MaxListLimit     = 100
)

// ErrWriteFailed marks a sink failure. It is logged and counted, never returned to callers
// of the guard.
var ErrWriteFailed = errors.New("audit: write failed")

// Entry is one immutable audit record of a guarded request.
type Entry struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	RequestID  string    `json:"request_id,omitempty"`
	PlatformID string    `json:"platform_id"`
	OrgID      string    `json:"org_id,omitempty"`
	UserID     string    `json:"user_id"`
	RoleKey    string    `json:"role_key"`
	ModuleKey  string    `json:"module_key"`
	Action     string    `json:"action"`
	Method     string    `json:"method,omitempty"`
	Path       string    `json:"path,omitempty"`
	StatusCode int       `json:"status_code"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Sink appends entries. Implementations must not mutate previously written entries.
type Sink interface {
	AppendAudit(ctx context.Context, e Entry) error
}

// Filter narrows an audit query. PlatformID and OrgID are tenant bounds, not optional filters.
type Filter struct {
	PlatformID string
	OrgID      string
	ModuleKey  string
	Action     string
	Limit      int
}

// Normalize trims filter values and clamps Limit into [1, MaxListLimit].
func (f Filter) Normalize() Filter {
	f.ModuleKey = strings.TrimSpace(f.ModuleKey)
	f.Action = strings.ToLower(strings.TrimSpace(f.Action))
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	return f
}

// Reader lists entries newest first.
type Reader interface {
	ListAudit(ctx context.Context, f Filter) ([]Entry, error)
}
