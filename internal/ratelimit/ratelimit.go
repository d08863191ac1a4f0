// Package ratelimit ограничивает частоту публичных запросов фиксированным окном на пару (ключ, IP).
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Rule задаёт лимит для одной группы запросов.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

var (
	CreateOrder   = Rule{Key: "create-order", Limit: 20, Window: time.Minute}
	SubmitPayment = Rule{Key: "submit-payment", Limit: 15, Window: time.Minute}
	Track         = Rule{Key: "track", Limit: 30, Window: time.Minute}
)

// Decision описывает результат проверки лимита.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter возвращает время до сброса окна, не меньше секунды.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait.Round(time.Second)
}

// Limiter считает запросы в окне.
type Limiter interface {
	Allow(ctx context.Context, rule Rule, ip string) (Decision, error)
}

// Enforce возвращает ErrRateLimited, если лимит исчерпан.
func Enforce(ctx context.Context, limiter Limiter, rule Rule, ip string) (Decision, error) {
	decision, err := limiter.Allow(ctx, rule, ip)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", rule.Key, err)
	}
	if !decision.Allowed {
		return decision, fmt.Errorf("%w: %s", domain.ErrRateLimited, rule.Key)
	}
	return decision, nil
}

// bucketKey скрывает IP в ключе хранилища.
func bucketKey(rule Rule, ip string) string {
	sum := sha256.Sum256([]byte(rule.Key + ":" + ip))
	return hex.EncodeToString(sum[:])[:32]
}

func decide(rule Rule, count int, resetAt time.Time) Decision {
	return Decision{
		Allowed:   count <= rule.Limit,
		Remaining: max(rule.Limit-count, 0),
		ResetAt:   resetAt,
	}
}
