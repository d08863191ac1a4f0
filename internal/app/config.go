package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/notify"
)

// StorageDriver выбирает реализацию domain.Store.
type StorageDriver string

const (
	StorageDriverMemory    StorageDriver = "memory"
	StorageDriverPostgres  StorageDriver = "postgres"
	StorageDriverFirestore StorageDriver = "firestore"
)

// Config описывает настройки запуска сервиса витрины.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver         StorageDriver
	PostgresDSN           string
	PostgresAutoMigrate   bool
	PostgresMaxTxAttempts int

	FirestoreProjectID       string
	FirestoreEmulatorHost    string
	FirestoreCredentialsFile string
	FirestoreMaxTxAttempts   int

	KafkaBrokers  []string
	KafkaClientID string

	// RedisAddr включает общий лимитер запросов; пустой адрес оставляет лимитер в памяти.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AdminJWTSecret  string
	AdminIssuer     string
	AdminAllowlist  []string
	AdminMaxAuthAge time.Duration
	CronSecret      string

	SMTP          notify.SMTPConfig
	PublicBaseURL string

	RequestTimeout time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	ExpirySweepInterval time.Duration

	IdempotencyRetention        time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает настройки для локального запуска с хранилищем в памяти.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:          StorageDriverMemory,
		PostgresAutoMigrate:    true,
		PostgresMaxTxAttempts:  5,
		FirestoreMaxTxAttempts: 5,

		KafkaClientID: "storefront",

		AdminMaxAuthAge: 8 * time.Hour,

		RequestTimeout: 15 * time.Second,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		ExpirySweepInterval: time.Minute,

		IdempotencyRetention:        24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires STOREFRONT_POSTGRES_DSN"))
		}
	case StorageDriverFirestore:
		if strings.TrimSpace(c.FirestoreProjectID) == "" {
			errs = append(errs, errors.New("firestore storage requires STOREFRONT_FIRESTORE_PROJECT_ID"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.HTTPAddr == "" && c.GRPCAddr == "" {
		errs = append(errs, errors.New("at least one of http or grpc address must be set"))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox batch size and max attempts must be positive"))
	}
	if c.ExpirySweepInterval <= 0 {
		errs = append(errs, errors.New("expiry sweep interval must be positive"))
	}
	return errors.Join(errs...)
}

// LookupFunc читает переменную окружения; в бинарниках это os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv накладывает переменные STOREFRONT_* на базовую конфигурацию.
func FromEnv(base Config, lookup LookupFunc) (Config, error) {
	e := envReader{lookup: lookup}
	cfg := base

	e.str("STOREFRONT_HTTP_ADDR", &cfg.HTTPAddr)
	e.str("STOREFRONT_GRPC_ADDR", &cfg.GRPCAddr)
	e.str("STOREFRONT_METRICS_ADDR", &cfg.MetricsAddr)

	var driver string
	if e.str("STOREFRONT_STORAGE_DRIVER", &driver) {
		cfg.StorageDriver = StorageDriver(strings.ToLower(driver))
	}
	e.str("STOREFRONT_POSTGRES_DSN", &cfg.PostgresDSN)
	e.boolean("STOREFRONT_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	e.integer("STOREFRONT_POSTGRES_MAX_TX_ATTEMPTS", &cfg.PostgresMaxTxAttempts)

	e.str("STOREFRONT_FIRESTORE_PROJECT_ID", &cfg.FirestoreProjectID)
	e.str("FIRESTORE_EMULATOR_HOST", &cfg.FirestoreEmulatorHost)
	e.str("STOREFRONT_FIRESTORE_CREDENTIALS_FILE", &cfg.FirestoreCredentialsFile)
	e.integer("STOREFRONT_FIRESTORE_MAX_TX_ATTEMPTS", &cfg.FirestoreMaxTxAttempts)

	e.list("STOREFRONT_KAFKA_BROKERS", &cfg.KafkaBrokers)
	e.str("STOREFRONT_KAFKA_CLIENT_ID", &cfg.KafkaClientID)

	e.str("STOREFRONT_REDIS_ADDR", &cfg.RedisAddr)
	e.str("STOREFRONT_REDIS_PASSWORD", &cfg.RedisPassword)
	e.integer("STOREFRONT_REDIS_DB", &cfg.RedisDB)

	e.str("STOREFRONT_ADMIN_JWT_SECRET", &cfg.AdminJWTSecret)
	e.str("STOREFRONT_ADMIN_ISSUER", &cfg.AdminIssuer)
	e.list("STOREFRONT_ADMIN_ALLOWLIST", &cfg.AdminAllowlist)
	e.duration("STOREFRONT_ADMIN_MAX_AUTH_AGE", &cfg.AdminMaxAuthAge)
	e.str("STOREFRONT_CRON_SECRET", &cfg.CronSecret)

	e.str("STOREFRONT_SMTP_HOST", &cfg.SMTP.Host)
	e.integer("STOREFRONT_SMTP_PORT", &cfg.SMTP.Port)
	e.str("STOREFRONT_SMTP_USERNAME", &cfg.SMTP.Username)
	e.str("STOREFRONT_SMTP_PASSWORD", &cfg.SMTP.Password)
	e.str("STOREFRONT_SMTP_FROM", &cfg.SMTP.From)
	e.str("STOREFRONT_SMTP_FROM_NAME", &cfg.SMTP.FromName)
	e.str("STOREFRONT_PUBLIC_BASE_URL", &cfg.PublicBaseURL)

	e.duration("STOREFRONT_REQUEST_TIMEOUT", &cfg.RequestTimeout)

	e.duration("STOREFRONT_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	e.integer("STOREFRONT_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	e.integer("STOREFRONT_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	e.duration("STOREFRONT_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)

	e.duration("STOREFRONT_EXPIRY_SWEEP_INTERVAL", &cfg.ExpirySweepInterval)

	e.duration("STOREFRONT_IDEMPOTENCY_RETENTION", &cfg.IdempotencyRetention)
	e.duration("STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	e.integer("STOREFRONT_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(key string, dst *string) bool {
	v, ok := e.get(key)
	if ok {
		*dst = v
	}
	return ok
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid bool %q", key, v))
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return
	}
	*dst = d
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if ok {
		*dst = splitCSV(v)
	}
}

// splitCSV разбивает список через запятую, отбрасывая пустые элементы.
func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
