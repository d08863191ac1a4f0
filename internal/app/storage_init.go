package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/firestore"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// storeBackend объединяет хранилище, его outbox и функцию закрытия.
type storeBackend interface {
	domain.Store
	domain.OutboxRepository
}

type runtimeStorage struct {
	store  storeBackend
	driver StorageDriver
	close  func() error
}

// initRuntimeStorage открывает хранилище, выбранное в конфигурации.
func initRuntimeStorage(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeStorage, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		logger.Warn("using in-memory storage, data is lost on restart")
		return &runtimeStorage{store: memory.NewStore(), driver: StorageDriverMemory, close: func() error { return nil }}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN,
			postgres.WithMaxTxAttempts(cfg.PostgresMaxTxAttempts),
			postgres.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		return &runtimeStorage{store: store, driver: StorageDriverPostgres, close: store.Close}, nil

	case StorageDriverFirestore:
		store, err := firestore.Open(ctx, firestore.Config{
			ProjectID:       cfg.FirestoreProjectID,
			EmulatorHost:    cfg.FirestoreEmulatorHost,
			CredentialsFile: cfg.FirestoreCredentialsFile,
			MaxTxAttempts:   cfg.FirestoreMaxTxAttempts,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open firestore: %w", err)
		}
		return &runtimeStorage{store: store, driver: StorageDriverFirestore, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
