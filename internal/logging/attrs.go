package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Time(key string, value time.Time) Attr { return slog.Time(key, value) }

// Error renders a nil error explicitly so the key is always present.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// ExternalID tags the external item a log line is about.
func ExternalID(id string) Attr { return slog.String(FieldExternalID, id) }

// SongID tags the catalog song a log line is about.
func SongID(id int64) Attr { return slog.Int64(FieldSongID, id) }

// Decision returns the decision_type/result/reason triple followed by extra.
// An empty reason is omitted.
func Decision(kind, result, reason string, extra ...Attr) []any {
	args := make([]any, 0, 3+len(extra))
	args = append(args, slog.String(FieldDecisionType, kind))
	if result != "" {
		args = append(args, slog.String(FieldDecisionResult, result))
	}
	if reason != "" {
		args = append(args, slog.String(FieldDecisionReason, reason))
	}
	for _, attr := range extra {
		args = append(args, attr)
	}
	return args
}

func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(nopHandler{})
}

// NewComponentLogger tags logger with component; a nil logger discards.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// WarnWithContext logs a warning that always carries event_type, error_hint,
// and impact. Caller-supplied values win over the fallbacks.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	fallbacks := []Attr{
		String(FieldEventType, eventType),
		String(FieldErrorHint, "check logs for details"),
		String(FieldImpact, "operation completed with warnings"),
	}
	present := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		present[a.Key] = true
	}
	for _, fb := range fallbacks {
		if !present[fb.Key] {
			attrs = append(attrs, fb)
		}
	}
	logger.Warn(msg, Args(attrs...)...)
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (nopHandler) Handle(context.Context, slog.Record) error { return nil }

func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h nopHandler) WithGroup(string) slog.Handler { return h }
