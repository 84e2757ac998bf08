package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"orgguard.dev/internal/ids"
	"orgguard.dev/internal/obs"
)

const writeTimeout = 5 * time.Second

// Recorder turns a flushed Trail into a single Entry on the sink.
// With WithQueue the sink write runs on a background worker.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
	now    func() time.Time

	queueSize int
	queue     chan Entry
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

type Option func(*Recorder)

func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.logger = obs.OrNop(l) }
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithQueue hands entries to a single background writer through a buffer of size n.
// Entries that find the buffer full are dropped and counted.
func WithQueue(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

func NewRecorder(sink Sink, opts ...Option) (*Recorder, error) {
	if sink == nil {
		return nil, errors.New("audit: sink is required")
	}
	r := &Recorder{sink: sink, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.queueSize > 0 {
		r.queue = make(chan Entry, r.queueSize)
		r.done = make(chan struct{})
		go r.drain()
	}
	return r, nil
}

func (r *Recorder) drain() {
	defer close(r.done)
	for e := range r.queue {
		r.write(context.Background(), e)
	}
}

// Close stops accepting entries and waits for queued ones to be written or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	if r.queue == nil {
		return nil
	}
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush writes, or queues, the trail's entry with the final status code. It returns true
// only for the call that claimed the trail. Trails without an intent or without a platform
// are skipped. Sink errors are logged and swallowed.
func (r *Recorder) Flush(ctx context.Context, t *Trail, status int) bool {
	if t == nil {
		return false
	}
	intent, ok := t.Intent()
	if !ok || intent.Actor.PlatformID == "" {
		return false
	}
	if !t.claim() {
		return false
	}

	meta := t.Meta()
	now := r.now()
	entry := Entry{
		ID:         ids.New(),
		CreatedAt:  now.UTC(),
		RequestID:  meta.RequestID,
		PlatformID: intent.Actor.PlatformID,
		OrgID:      intent.Actor.OrgID,
		UserID:     intent.Actor.ID,
		RoleKey:    intent.Actor.RoleKey,
		ModuleKey:  intent.ModuleKey,
		Action:     string(intent.Action),
		Method:     meta.Method,
		Path:       meta.Path,
		StatusCode: status,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		DurationMS: now.Sub(meta.Started).Milliseconds(),
	}
	if entry.RequestID == "" {
		entry.RequestID = RequestIDFromContext(ctx)
	}

	if r.queue == nil {
		r.write(ctx, entry)
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(entry, "recorder closed")
		return true
	}
	select {
	case r.queue <- entry:
	default:
		r.drop(entry, "queue full")
	}
	return true
}

func (r *Recorder) drop(e Entry, reason string) {
	obs.RecordAuditWrite("dropped")
	r.logger.Warn("audit entry dropped",
		zap.String("reason", reason),
		zap.String("request_id", e.RequestID),
		zap.String("module", e.ModuleKey),
		zap.String("action", e.Action),
		zap.String("user_id", e.UserID),
	)
}

func (r *Recorder) write(ctx context.Context, entry Entry) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := r.sink.AppendAudit(writeCtx, entry); err != nil {
		obs.RecordAuditWrite("failed")
		r.logger.Warn("audit write failed",
			zap.Error(fmt.Errorf("%w: %v", ErrWriteFailed, err)),
			zap.String("request_id", entry.RequestID),
			zap.String("module", entry.ModuleKey),
			zap.String("action", entry.Action),
			zap.String("user_id", entry.UserID),
		)
		return
	}
	obs.RecordAuditWrite("ok")
}
