package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":50051", cfg.GRPCAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.True(t, cfg.PostgresAutoMigrate)
	assert.Positive(t, cfg.OutboxPollInterval)
	assert.Positive(t, cfg.OutboxBatchSize)
	assert.Positive(t, cfg.OutboxMaxAttempts)
	assert.Equal(t, time.Minute, cfg.ExpirySweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyRetention)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "postgres without dsn", mutate: func(c *Config) { c.StorageDriver = StorageDriverPostgres }, wantErr: "STOREFRONT_POSTGRES_DSN"},
		{name: "firestore without project", mutate: func(c *Config) { c.StorageDriver = StorageDriverFirestore }, wantErr: "STOREFRONT_FIRESTORE_PROJECT_ID"},
		{name: "unknown driver", mutate: func(c *Config) { c.StorageDriver = "sqlite" }, wantErr: "unsupported storage driver"},
		{name: "no listeners", mutate: func(c *Config) { c.HTTPAddr, c.GRPCAddr = "", "" }, wantErr: "at least one"},
		{name: "zero sweep interval", mutate: func(c *Config) { c.ExpirySweepInterval = 0 }, wantErr: "sweep interval"},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.StorageDriver = StorageDriverPostgres
			c.PostgresDSN = "postgres://storefront@localhost/storefront"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(DefaultConfig(), mapLookup(map[string]string{
		"STOREFRONT_HTTP_ADDR":             "127.0.0.1:8088",
		"STOREFRONT_STORAGE_DRIVER":        "Postgres",
		"STOREFRONT_POSTGRES_DSN":          "postgres://storefront@db/storefront",
		"STOREFRONT_POSTGRES_AUTO_MIGRATE": "false",
		"STOREFRONT_KAFKA_BROKERS":         "k1:9092, k2:9092,,",
		"STOREFRONT_REDIS_DB":              "2",
		"STOREFRONT_ADMIN_ALLOWLIST":       "owner@example.com,ops@example.com",
		"STOREFRONT_EXPIRY_SWEEP_INTERVAL": "30s",
		"STOREFRONT_SMTP_PORT":             "2525",
		"STOREFRONT_GRPC_ADDR":             "   ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8088", cfg.HTTPAddr)
	assert.Equal(t, ":50051", cfg.GRPCAddr, "blank values keep defaults")
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.False(t, cfg.PostgresAutoMigrate)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"owner@example.com", "ops@example.com"}, cfg.AdminAllowlist)
	assert.Equal(t, 30*time.Second, cfg.ExpirySweepInterval)
	assert.Equal(t, 2525, cfg.SMTP.Port)
}

func TestFromEnv_CollectsParseErrors(t *testing.T) {
	_, err := FromEnv(DefaultConfig(), mapLookup(map[string]string{
		"STOREFRONT_OUTBOX_BATCH_SIZE":     "many",
		"STOREFRONT_REQUEST_TIMEOUT":       "soon",
		"STOREFRONT_POSTGRES_AUTO_MIGRATE": "perhaps",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STOREFRONT_OUTBOX_BATCH_SIZE")
	assert.Contains(t, err.Error(), "STOREFRONT_REQUEST_TIMEOUT")
	assert.Contains(t, err.Error(), "STOREFRONT_POSTGRES_AUTO_MIGRATE")
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a ,, b ,"))
	assert.Empty(t, splitCSV(""))
}
