package grpcsvc

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ratelimit"
)

var methodRules = map[string]ratelimit.Rule{
	MethodCreateOrder:   ratelimit.CreateOrder,
	MethodSubmitPayment: ratelimit.SubmitPayment,
	MethodTrackOrder:    ratelimit.Track,
}

// RateLimitInterceptor применяет те же лимиты, что и HTTP API.
// Ошибка хранилища лимитов не блокирует запрос.
func RateLimitInterceptor(limiter ratelimit.Limiter, clock domain.Clock, logger *log.Entry) grpc.UnaryServerInterceptor {
	if clock == nil {
		clock = domain.SystemClock
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rule, limited := methodRules[info.FullMethod]
		if !limited || limiter == nil {
			return handler(ctx, req)
		}

		decision, err := limiter.Allow(ctx, rule, actorFromContext(ctx).ClientIP())
		if err != nil {
			logger.WithError(err).WithField("method", info.FullMethod).Warn("rate limiter unavailable, allowing request")
			return handler(ctx, req)
		}
		if !decision.Allowed {
			retry := decision.RetryAfter(clock.Now())
			_ = grpc.SetHeader(ctx, metadata.Pairs("retry-after", strconv.Itoa(int(retry/time.Second))))
			return nil, toStatus(domain.ErrRateLimited)
		}
		return handler(ctx, req)
	}
}
