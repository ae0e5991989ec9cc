// Package ratelimit counts requests per (client, endpoint class) over a sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// Class is a named bucket of endpoints sharing one limit.
type Class int

const (
	ClassGeneral Class = iota
	ClassLogin
	ClassRegister
	ClassPayment
)

func (c Class) String() string {
	switch c {
	case ClassLogin:
		return "login"
	case ClassRegister:
		return "register"
	case ClassPayment:
		return "payment"
	default:
		return "general"
	}
}

const DefaultWindow = time.Minute

type Config struct {
	Window          time.Duration
	Limits          map[Class]int
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Window: DefaultWindow,
		Limits: map[Class]int{
			ClassLogin:    5,
			ClassRegister: 3,
			ClassPayment:  10,
			ClassGeneral:  60,
		},
		CleanupInterval: 5 * time.Minute,
	}
}

type key struct {
	client string
	class  Class
}

// Decision is the outcome of one Allow call. RetryAfter is set only when the
// request was rejected and tells how long until the oldest counted request ages out.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter keeps a log of request timestamps per key, so a burst straddling a
// window boundary is still counted against the same rolling 60s.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	entries map[key][]time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	def := DefaultConfig()
	limits := make(map[Class]int, len(def.Limits))
	for c, n := range def.Limits {
		limits[c] = n
	}
	for c, n := range cfg.Limits {
		if n > 0 {
			limits[c] = n
		}
	}
	cfg.Limits = limits

	return &Limiter{
		cfg:     cfg,
		entries: make(map[key][]time.Time),
		stopCh:  make(chan struct{}),
	}
}

// StartCleanup drops idle keys in the background until Stop is called.
func (l *Limiter) StartCleanup() {
	interval := l.cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultConfig().CleanupInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				l.Cleanup(now)
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) Limit(class Class) int {
	return l.cfg.Limits[class]
}

func (l *Limiter) Window() time.Duration {
	return l.cfg.Window
}

func (l *Limiter) Allow(client string, class Class, now time.Time) Decision {
	limit := l.Limit(class)
	k := key{client: client, class: class}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := prune(l.entries[k], now.Add(-l.cfg.Window))
	if len(ts) >= limit {
		l.entries[k] = ts
		retry := ts[0].Add(l.cfg.Window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Decision{Allowed: false, Limit: limit, RetryAfter: retry}
	}

	ts = append(ts, now)
	l.entries[k] = ts
	return Decision{Allowed: true, Limit: limit, Remaining: limit - len(ts)}
}

// Cleanup removes keys whose whole log has aged out of the window.
func (l *Limiter) Cleanup(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, ts := range l.entries {
		ts = prune(ts, cutoff)
		if len(ts) == 0 {
			delete(l.entries, k)
			continue
		}
		l.entries[k] = ts
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
