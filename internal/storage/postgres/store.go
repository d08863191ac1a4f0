// Package postgres — хранилище витрины в PostgreSQL: документы в JSONB, сериализуемые транзакции.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second

	defaultMaxTxAttempts = 5
	txRetryBaseDelay     = 20 * time.Millisecond

	defaultListLimit = 100
)

// SQLSTATE, при которых транзакцию имеет смысл повторить (23505 только для racingConstraints).
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// Store оборачивает SQL-подключение к PostgreSQL.
type Store struct {
	db            *sql.DB
	maxTxAttempts int
	logger        *log.Entry
}

// Option настраивает Store.
type Option func(*Store)

// WithMaxTxAttempts задаёт число попыток транзакции при конфликте.
func WithMaxTxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTxAttempts = n
		}
	}
}

// WithLogger задаёт логгер хранилища.
func WithLogger(logger *log.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{
		db:            db,
		maxTxAttempts: defaultMaxTxAttempts,
		logger:        log.WithField("component", "postgres-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunInTx выполняет fn в SERIALIZABLE-транзакции и повторяет её при конфликте.
// После исчерпания попыток возвращает ошибку, разворачивающуюся в domain.ErrTxConflict.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxTxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		s.logger.WithError(err).WithField("attempt", attempt).Debug("transaction conflict, retrying")

		timer := time.NewTimer(txRetryBaseDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", domain.ErrTxConflict, s.maxTxAttempts, lastErr)
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// racingConstraints перечисляет уникальные ключи, на которых сталкиваются параллельные
// запросы с одинаковыми данными. Повтор транзакции перечитает победившую запись.
var racingConstraints = map[string]struct{}{
	"idempotency_keys_pkey":   {},
	"payment_operations_pkey": {},
	"orders_public_code_key":  {},
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	case sqlStateUniqueViolation:
		_, ok := racingConstraints[pgErr.ConstraintName]
		return ok
	default:
		return false
	}
}

var _ domain.Store = (*Store)(nil)
