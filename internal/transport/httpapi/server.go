// Package httpapi — HTTP API витрины и бэк-офиса поверх chi.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ratelimit"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

// OrderService описывает операции ядра, которые обслуживает HTTP API.
type OrderService interface {
	CreateOrder(ctx context.Context, actor domain.ActorContext, in order.CreateOrderInput) (order.CreateOrderResult, error)
	SubmitPayment(ctx context.Context, actor domain.ActorContext, in order.SubmitPaymentInput) (order.SubmitPaymentResult, error)
	TrackOrder(ctx context.Context, actor domain.ActorContext, in order.TrackOrderInput) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, actor domain.ActorContext, orderID string, next domain.OrderStatus) error
	ListOrders(ctx context.Context, actor domain.ActorContext, q domain.OrderQuery) ([]domain.Order, error)
	SweepExpiredReservations(ctx context.Context, now time.Time) (int, error)
	UpsertProduct(ctx context.Context, actor domain.ActorContext, in order.UpsertProductInput) (domain.Product, error)
	ListProducts(ctx context.Context, actor domain.ActorContext, in order.ListProductsInput) ([]domain.Product, error)
	GetProduct(ctx context.Context, actor domain.ActorContext, slug string) (domain.Product, error)
	GetSettings(ctx context.Context) (domain.StoreSettings, error)
	UpdateSettings(ctx context.Context, actor domain.ActorContext, in domain.StoreSettings) (domain.StoreSettings, error)
}

// AdminVerifier проверяет bearer-токен администратора.
type AdminVerifier interface {
	AdminActor(raw, ip, userAgent string) (domain.ActorContext, error)
}

// Config содержит зависимости HTTP API.
type Config struct {
	Service    OrderService
	Limiter    ratelimit.Limiter
	Admin      AdminVerifier
	CronSecret string
	Clock      domain.Clock
	Logger     *log.Entry
	// RequestTimeout ограничивает обработку одного запроса.
	RequestTimeout time.Duration
}

type api struct {
	svc        OrderService
	limiter    ratelimit.Limiter
	admin      AdminVerifier
	cronSecret string
	clock      domain.Clock
	logger     *log.Entry
}

// NewRouter собирает маршруты API.
func NewRouter(cfg Config) http.Handler {
	a := &api{
		svc:        cfg.Service,
		limiter:    cfg.Limiter,
		admin:      cfg.Admin,
		cronSecret: cfg.CronSecret,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	if a.clock == nil {
		a.clock = domain.SystemClock
	}
	if a.logger == nil {
		a.logger = log.NewEntry(log.StandardLogger())
	}
	a.logger = a.logger.WithField("component", "http-api")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))
	r.Use(a.requestLogger)
	r.Use(a.withActor)

	r.Route("/api", func(r chi.Router) {
		r.With(a.rateLimit(ratelimit.CreateOrder)).Post("/create-order", a.createOrder)
		r.With(a.rateLimit(ratelimit.SubmitPayment)).Post("/submit-payment", a.submitPayment)
		r.With(a.rateLimit(ratelimit.Track)).Post("/track", a.trackOrder)

		r.Get("/products", a.listProducts)
		r.Get("/products/{slug}", a.getProduct)
		r.Get("/settings", a.publicSettings)

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Post("/orders/update-status", a.updateOrderStatus)
			r.Get("/orders", a.listOrders)
			r.Post("/products/upsert", a.upsertProduct)
			r.Get("/settings", a.getSettings)
			r.Post("/settings", a.updateSettings)
		})

		r.With(a.requireCronSecret).Post("/cron/release-expired", a.releaseExpired)
	})

	return r
}

// NewServer оборачивает роутер в http.Server с таймаутами.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
