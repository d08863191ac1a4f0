package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const pruneThreshold = 4096

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter хранит окна в памяти процесса; подходит для одного инстанса и тестов.
type MemoryLimiter struct {
	mu      sync.Mutex
	clock   domain.Clock
	windows map[string]*window
}

// NewMemoryLimiter создает лимитер; clock может быть nil.
func NewMemoryLimiter(clock domain.Clock) *MemoryLimiter {
	if clock == nil {
		clock = domain.SystemClock
	}
	return &MemoryLimiter{clock: clock, windows: make(map[string]*window)}
}

func (l *MemoryLimiter) Allow(_ context.Context, rule Rule, ip string) (Decision, error) {
	now := l.clock.Now()
	key := bucketKey(rule, ip)

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) >= pruneThreshold {
		l.prune(now)
	}

	w, ok := l.windows[key]
	if !ok || !w.resetAt.After(now) {
		w = &window{resetAt: now.Add(rule.Window)}
		l.windows[key] = w
	}
	if w.count <= rule.Limit {
		w.count++
	}
	return decide(rule, w.count, w.resetAt), nil
}

func (l *MemoryLimiter) prune(now time.Time) {
	for key, w := range l.windows {
		if !w.resetAt.After(now) {
			delete(l.windows, key)
		}
	}
}
