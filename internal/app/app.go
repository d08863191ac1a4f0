package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/expiry"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/transport/httpapi"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает HTTP API, gRPC, сервер метрик и фоновые воркеры и ждёт отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("dependencies closed with errors")
		}
	}()
	logger.WithField("storage", deps.driver).Info("storage initialized")

	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	startWorkers(workersCtx, &workers, cfg, deps)
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	errCh := make(chan error, 3)

	var apiSrv *http.Server
	if cfg.HTTPAddr != "" {
		apiSrv = httpapi.NewServer(cfg.HTTPAddr, newAPIRouter(cfg, deps))
		go func() {
			logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
			if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var (
		grpcServer   *grpc.Server
		healthServer *grpchealth.Server
	)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			shutdownHTTP(apiSrv, logger)
			return err
		}
		grpcServer, healthServer = newGRPCServer(deps, logger)
		go func() {
			logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, deps.Health)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("server failed")
	}

	if grpcServer != nil {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stopGRPC(grpcServer, logger)
	}
	shutdownHTTP(apiSrv, logger)
	shutdownHTTP(metricsSrv, logger)
	return runErr
}

func newAPIRouter(cfg Config, deps *Dependencies) http.Handler {
	apiCfg := httpapi.Config{
		Service:        deps.Orders,
		Limiter:        deps.Limiter,
		CronSecret:     cfg.CronSecret,
		Clock:          deps.Clock,
		Logger:         deps.Logger,
		RequestTimeout: cfg.RequestTimeout,
	}
	if deps.Admin != nil {
		apiCfg.Admin = deps.Admin
	}
	return httpapi.NewRouter(apiCfg)
}

func newGRPCServer(deps *Dependencies, logger *log.Entry) (*grpc.Server, *grpchealth.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		grpcsvc.RateLimitInterceptor(deps.Limiter, deps.Clock, logger),
	))

	var admin grpcsvc.AdminVerifier
	if deps.Admin != nil {
		admin = deps.Admin
	}
	grpcsvc.RegisterOrderServiceServer(grpcServer, grpcsvc.NewOrderService(deps.Orders, admin, logger.WithField("layer", "grpc")))
	grpcMetrics.InitializeMetrics(grpcServer)
	reflection.Register(grpcServer)

	healthServer := grpchealth.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	return grpcServer, healthServer
}

// startWorkers запускает outbox, очистку резервов и очистку идемпотентности.
func startWorkers(ctx context.Context, wg *sync.WaitGroup, cfg Config, deps *Dependencies) {
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	if deps.Producer != nil {
		worker := outbox.NewWorker(deps.Outbox, kafka.NewOutboxPublisher(deps.Producer),
			outbox.WithLogger(deps.Logger.WithField("worker", "outbox")),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(deps.Producer)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
			outbox.WithClock(deps.Clock),
		)
		run(worker.Run)
	} else {
		deps.Logger.Warn("kafka is not configured, outbox events stay pending")
	}

	sweeper := expiry.NewWorker(deps.Orders,
		expiry.WithLogger(deps.Logger.WithField("worker", "expiry")),
		expiry.WithInterval(cfg.ExpirySweepInterval),
		expiry.WithClock(deps.Clock),
	)
	run(sweeper.Run)

	cleanup := idempotency.NewCleanupWorker(deps.Store,
		idempotency.WithLogger(deps.Logger.WithField("worker", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithRetention(cfg.IdempotencyRetention),
		idempotency.WithClock(deps.Clock),
	)
	run(cleanup.Run)
}

// startMetricsServer запускает /metrics и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *health.Handler) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
