package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ratelimit"
)

const (
	headerCronSecret     = "X-Cron-Secret"
	headerIdempotencyKey = "X-Idempotency-Key"
)

type actorKey struct{}

// ClientIP берёт первый адрес из X-Forwarded-For, затем X-Real-IP.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return domain.DefaultClientIP
}

// UserAgent возвращает User-Agent или DefaultUserAgent.
func UserAgent(r *http.Request) string {
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		return ua
	}
	return domain.DefaultUserAgent
}

func (a *api) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.PublicActor(ClientIP(r), UserAgent(r))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) domain.ActorContext {
	if actor, ok := ctx.Value(actorKey{}).(domain.ActorContext); ok {
		return actor
	}
	return domain.PublicActor(domain.DefaultClientIP, domain.DefaultUserAgent)
}

func (a *api) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := a.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
			"request_id":  chimw.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}

// rateLimit отклоняет запрос с 429; при недоступном хранилище лимитов пропускает его.
func (a *api) rateLimit(rule ratelimit.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			ip := actorFrom(r.Context()).ClientIP()
			decision, err := a.limiter.Allow(r.Context(), rule, ip)
			if err != nil {
				a.logger.WithError(err).WithField("rule", rule.Key).Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				retry := decision.RetryAfter(a.clock.Now())
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
				writeError(w, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *api) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.admin == nil {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		public := actorFrom(r.Context())
		actor, err := a.admin.AdminActor(raw, public.IP, public.UserAgent)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func (a *api) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.CronSecretMatches(a.cronSecret, r.Header.Get(headerCronSecret)) {
			writeError(w, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
