package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DeleteIdempotencyBefore удаляет до limit самых старых записей, созданных раньше before.
func (s *Store) DeleteIdempotencyBefore(_ context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]domain.IdempotencyRecord, 0)
	for _, rec := range s.idempotency {
		if rec.CreatedAt.Before(before) {
			expired = append(expired, rec)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].CreatedAt.Before(expired[j].CreatedAt)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}

	for _, rec := range expired {
		delete(s.idempotency, rec.ID)
	}
	return len(expired), nil
}

// IdempotencyCount возвращает число записей идемпотентности (используется в тестах).
func (s *Store) IdempotencyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idempotency)
}
