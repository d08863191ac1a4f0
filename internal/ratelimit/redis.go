package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const redisKeyPrefix = "storefront:ratelimit:"

// fixedWindow увеличивает счётчик и ставит TTL окна при первом обращении.
// Возвращает {count, ttl_ms}.
var fixedWindow = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter делит окна между инстансами через Redis.
type RedisLimiter struct {
	client redis.Scripter
	clock  domain.Clock
}

// NewRedisLimiter создает лимитер поверх клиента go-redis.
func NewRedisLimiter(client redis.Scripter, clock domain.Clock) *RedisLimiter {
	if clock == nil {
		clock = domain.SystemClock
	}
	return &RedisLimiter{client: client, clock: clock}
}

func (l *RedisLimiter) Allow(ctx context.Context, rule Rule, ip string) (Decision, error) {
	key := redisKeyPrefix + bucketKey(rule, ip)
	res, err := fixedWindow.Run(ctx, l.client, []string{key}, rule.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis fixed window: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("redis fixed window: unexpected reply %v", res)
	}

	resetAt := l.clock.Now().Add(time.Duration(res[1]) * time.Millisecond)
	return decide(rule, int(res[0]), resetAt), nil
}

// NewRedisClient создает клиента с короткими таймаутами.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}
