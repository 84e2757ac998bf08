package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"orgguard.dev/internal/access"
)

// RequestMeta is the transport metadata copied into each entry.
type RequestMeta struct {
	RequestID string
	Method    string
	Path      string
	IP        string
	UserAgent string
	Started   time.Time
}

// Intent is the pending audit record set by the guard.
type Intent struct {
	Actor     access.Actor
	ModuleKey string
	Action    access.Action
}

// Trail tracks the audit state of a single request. It is flushed at most once.
type Trail struct {
	meta RequestMeta

	mu     sync.Mutex
	intent *Intent
	logged atomic.Bool
}

func NewTrail(meta RequestMeta) *Trail {
	if meta.Started.IsZero() {
		meta.Started = time.Now()
	}
	return &Trail{meta: meta}
}

// Intend records the decision target. A later call replaces an earlier one.
func (t *Trail) Intend(actor access.Actor, moduleKey string, action access.Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intent = &Intent{Actor: actor, ModuleKey: strings.TrimSpace(moduleKey), Action: action}
}

func (t *Trail) Intent() (Intent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.intent == nil {
		return Intent{}, false
	}
	return *t.intent, true
}

func (t *Trail) Meta() RequestMeta { return t.meta }

// Logged reports whether the trail has already been flushed.
func (t *Trail) Logged() bool { return t.logged.Load() }

// claim flips the logged flag; only the first caller wins.
func (t *Trail) claim() bool { return t.logged.CompareAndSwap(false, true) }

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	trailKey     ctxKey = "audit_trail"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithTrail(ctx context.Context, t *Trail) context.Context {
	return context.WithValue(ctx, trailKey, t)
}

func TrailFromContext(ctx context.Context) (*Trail, bool) {
	if ctx == nil {
		return nil, false
	}
	t, ok := ctx.Value(trailKey).(*Trail)
	return t, ok && t != nil
}
