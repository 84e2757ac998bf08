package audit

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type fanout []Sink

// Fanout writes every entry to all sinks and joins their errors.
func Fanout(sinks ...Sink) Sink {
	out := make(fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f fanout) AppendAudit(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range f {
		if err := s.AppendAudit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink emits entries as structured audit log lines.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(l *zap.Logger) *LogSink {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogSink{logger: l}
}

func (s *LogSink) AppendAudit(_ context.Context, e Entry) error {
	s.logger.Info("audit",
		zap.String("type", "audit"),
		zap.String("id", e.ID),
		zap.String("request_id", e.RequestID),
		zap.String("platform_id", e.PlatformID),
		zap.String("org_id", e.OrgID),
		zap.String("user_id", e.UserID),
		zap.String("role_key", e.RoleKey),
		zap.String("module", e.ModuleKey),
		zap.String("action", e.Action),
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.Int("status", e.StatusCode),
		zap.Int64("duration_ms", e.DurationMS),
	)
	return nil
}
