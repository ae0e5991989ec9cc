// Package audit records security events to append-only sinks. Recording never
// fails the caller: a sink error degrades to local diagnostic output.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"studentsnet/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type Sink interface {
	Append(ctx context.Context, ev domain.AuditEvent) error
}

// Observer is told about every recorded event, e.g. to feed metrics.
type Observer interface {
	ObserveAuditEvent(category domain.AuditCategory)
}

type Options struct {
	Sinks    []Sink
	Fallback *slog.Logger
	Observer Observer
	Now      func() time.Time
	// DegradedLogInterval throttles the "sink failing" diagnostic.
	DegradedLogInterval time.Duration
}

type Logger struct {
	sinks    []Sink
	fallback *slog.Logger
	observer Observer
	now      func() time.Time
	degraded *rate.Sometimes
}

func New(opts Options) *Logger {
	if opts.Fallback == nil {
		opts.Fallback = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DegradedLogInterval <= 0 {
		opts.DegradedLogInterval = time.Minute
	}
	return &Logger{
		sinks:    opts.Sinks,
		fallback: opts.Fallback,
		observer: opts.Observer,
		now:      opts.Now,
		degraded: &rate.Sometimes{First: 1, Interval: opts.DegradedLogInterval},
	}
}

func (l *Logger) Record(ctx context.Context, ev domain.AuditEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now().UTC()
	}
	if ev.Subject == "" {
		ev.Subject = domain.AuditSubjectUnknown
	}

	for _, s := range l.sinks {
		if err := appendSafely(ctx, s, ev); err != nil {
			l.degrade(ctx, ev, err)
		}
	}

	if l.observer != nil {
		l.observer.ObserveAuditEvent(ev.Category)
	}
}

func appendSafely(ctx context.Context, s Sink, ev domain.AuditEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("audit sink panic: %v", rec)
		}
	}()
	return s.Append(ctx, ev)
}

func (l *Logger) degrade(ctx context.Context, ev domain.AuditEvent, err error) {
	l.degraded.Do(func() {
		l.fallback.ErrorContext(ctx, "audit sink failing", "err", err)
	})
	l.fallback.WarnContext(ctx, "audit event not persisted", eventAttrs(ev)...)
}

func eventAttrs(ev domain.AuditEvent) []any {
	return []any{
		"event_id", ev.ID,
		"ts", ev.Timestamp.UTC().Format(time.RFC3339Nano),
		"category", string(ev.Category),
		"subject", ev.Subject,
		"client_ip", ev.ClientIP,
		"detail", ev.Detail,
	}
}

// SlogSink writes one JSON object per event.
type SlogSink struct {
	mu      sync.Mutex
	handler slog.Handler
}

func NewSlogSink(w io.Writer) *SlogSink {
	return &SlogSink{handler: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})}
}

func (s *SlogSink) Append(ctx context.Context, ev domain.AuditEvent) error {
	rec := slog.NewRecord(ev.Timestamp, slog.LevelInfo, "audit", 0)
	rec.Add(eventAttrs(ev)...)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler.Handle(ctx, rec)
}

// MemorySink keeps events in memory for inspection.
type MemorySink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (m *MemorySink) Append(_ context.Context, ev domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemorySink) Events() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemorySink) Count(category domain.AuditCategory) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Category == category {
			n++
		}
	}
	return n
}
