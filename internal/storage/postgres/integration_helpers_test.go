//go:build integration

package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// openPostgresStoreForIntegrationTest подключается к STOREFRONT_POSTGRES_TEST_DSN,
// иначе поднимает контейнер Postgres.
func openPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("storefront"),
			tcpostgres.WithUsername("storefront"),
			tcpostgres.WithPassword("storefront"),
			tcpostgres.BasicWaitStrategies(),
		)
		testcontainers.CleanupContainer(t, container)
		if err != nil {
			t.Skipf("postgres container is not available: %v", err)
		}
		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("container connection string: %v", err)
		}
	}

	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	truncateAllTablesForIntegrationTest(t, store)
	return store
}

func truncateAllTablesForIntegrationTest(t *testing.T, store *Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := store.DB().ExecContext(ctx, `
		TRUNCATE TABLE
			outbox_messages,
			audit_logs,
			stock_logs,
			store_settings,
			counters,
			payment_operations,
			idempotency_keys,
			orders,
			products
	`)
	if err != nil {
		t.Fatalf("truncate integration tables: %v", err)
	}
}
