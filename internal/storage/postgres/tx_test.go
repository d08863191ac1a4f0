package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// keyedTablesDriver принимает только INSERT в таблицы с текстовым первичным ключом
// первым аргументом и отвечает на дубликат так же, как PostgreSQL (23505 + имя ключа).
type keyedTablesDriver struct {
	mu        sync.Mutex
	committed map[string]map[string]struct{}
	staged    map[string][]string
	begins    int
}

func newKeyedTablesDriver() *keyedTablesDriver {
	return &keyedTablesDriver{committed: make(map[string]map[string]struct{})}
}

func (d *keyedTablesDriver) Open(string) (driver.Conn, error) { return &keyedTablesConn{d: d}, nil }

func (d *keyedTablesDriver) Connect(context.Context) (driver.Conn, error) {
	return &keyedTablesConn{d: d}, nil
}

func (d *keyedTablesDriver) Driver() driver.Driver { return d }

func (d *keyedTablesDriver) seed(table, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.committed[table] == nil {
		d.committed[table] = make(map[string]struct{})
	}
	d.committed[table][id] = struct{}{}
}

func (d *keyedTablesDriver) ids(table string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.committed[table]))
	for id := range d.committed[table] {
		out = append(out, id)
	}
	return out
}

func (d *keyedTablesDriver) beginCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.begins
}

func (d *keyedTablesDriver) insert(query string, args []driver.NamedValue) (driver.Result, error) {
	fields := strings.Fields(query)
	if len(fields) < 3 || fields[0] != "INSERT" || fields[1] != "INTO" || len(args) == 0 {
		return nil, fmt.Errorf("unexpected statement: %s", query)
	}
	table := fields[2]
	id, ok := args[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("%s: first argument is %T, want string", table, args[0].Value)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, exists := d.committed[table][id]
	for _, staged := range d.staged[table] {
		exists = exists || staged == id
	}
	if exists {
		return nil, &pgconn.PgError{
			Code:           sqlStateUniqueViolation,
			TableName:      table,
			ConstraintName: table + "_pkey",
		}
	}
	d.staged[table] = append(d.staged[table], id)
	return driver.RowsAffected(1), nil
}

type keyedTablesConn struct {
	d *keyedTablesDriver
}

func (c *keyedTablesConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements are not supported")
}

func (c *keyedTablesConn) Close() error { return nil }

func (c *keyedTablesConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *keyedTablesConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.begins++
	c.d.staged = make(map[string][]string)
	return &keyedTablesTx{d: c.d}, nil
}

func (c *keyedTablesConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return c.d.insert(query, args)
}

type keyedTablesTx struct {
	d *keyedTablesDriver
}

func (t *keyedTablesTx) Commit() error {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	for table, ids := range t.d.staged {
		if t.d.committed[table] == nil {
			t.d.committed[table] = make(map[string]struct{})
		}
		for _, id := range ids {
			t.d.committed[table][id] = struct{}{}
		}
	}
	t.d.staged = nil
	return nil
}

func (t *keyedTablesTx) Rollback() error {
	t.d.mu.Lock()
	t.d.staged = nil
	t.d.mu.Unlock()
	return nil
}

func newKeyedTablesStore(t *testing.T, d *keyedTablesDriver) *Store {
	t.Helper()
	db := sql.OpenDB(d)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return &Store{db: db, maxTxAttempts: 3, logger: log.WithField("component", "postgres-test")}
}

var txTestNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func TestPgTx_LogRowsGetDistinctIDs(t *testing.T) {
	reserve := func(variant string) domain.StockLogEntry {
		return domain.StockLogEntry{
			ProductID: "polo-basico",
			VariantID: variant,
			Delta:     -1,
			Reason:    domain.StockReasonReserve,
			OrderID:   "order-1",
			CreatedAt: txTestNow,
		}
	}
	audit := func(action string) domain.AuditEntry {
		return domain.AuditEntry{
			Actor:     domain.Actor{UID: domain.PublicActorUID},
			Action:    action,
			Target:    domain.AuditTarget{Type: domain.AuditTargetOrder, ID: "order-1", PublicCode: "OD-0001"},
			CreatedAt: txTestNow,
		}
	}

	tests := []struct {
		name    string
		table   string
		write   func(ctx context.Context, tx domain.Tx) error
		wantLen int
		wantID  string
	}{
		{
			name:  "stock logs of a multi-line order",
			table: "stock_logs",
			write: func(ctx context.Context, tx domain.Tx) error {
				if err := tx.AppendStockLog(ctx, reserve("m")); err != nil {
					return err
				}
				return tx.AppendStockLog(ctx, reserve("l"))
			},
			wantLen: 2,
		},
		{
			name:  "audit entries of consecutive operations",
			table: "audit_logs",
			write: func(ctx context.Context, tx domain.Tx) error {
				if err := tx.AppendAudit(ctx, audit(domain.AuditOrderCreated)); err != nil {
					return err
				}
				return tx.AppendAudit(ctx, audit(domain.AuditPaymentSubmitted))
			},
			wantLen: 2,
		},
		{
			name:  "explicit id is kept",
			table: "stock_logs",
			write: func(ctx context.Context, tx domain.Tx) error {
				entry := reserve("m")
				entry.ID = "log-fixed"
				return tx.AppendStockLog(ctx, entry)
			},
			wantLen: 1,
			wantID:  "log-fixed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newKeyedTablesDriver()
			store := newKeyedTablesStore(t, d)

			require.NoError(t, store.RunInTx(context.Background(), tt.write))

			ids := d.ids(tt.table)
			require.Len(t, ids, tt.wantLen)
			for _, id := range ids {
				assert.NotEmpty(t, id)
			}
			if tt.wantID != "" {
				assert.Equal(t, []string{tt.wantID}, ids)
			}
			assert.Equal(t, 1, d.beginCount())
		})
	}
}

func TestRunInTx_DuplicateLogRowIsNotRetried(t *testing.T) {
	d := newKeyedTablesDriver()
	d.seed("audit_logs", "audit-1")
	store := newKeyedTablesStore(t, d)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.AppendAudit(ctx, domain.AuditEntry{
			ID:        "audit-1",
			Action:    domain.AuditOrderCreated,
			Target:    domain.AuditTarget{Type: domain.AuditTargetOrder, ID: "order-1"},
			CreatedAt: txTestNow,
		})
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrTxConflict))

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "audit_logs_pkey", pgErr.ConstraintName)
	assert.Equal(t, 1, d.beginCount())
}

func TestRunInTx_RetriesIdempotencyKeyRace(t *testing.T) {
	d := newKeyedTablesDriver()
	d.seed("idempotency_keys", "key-1")
	store := newKeyedTablesStore(t, d)

	attempts := 0
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		attempts++
		if attempts > 1 {
			// Повтор видит запись победителя и ничего не пишет.
			return nil
		}
		return tx.PutIdempotency(ctx, domain.IdempotencyRecord{
			ID:        "key-1",
			OrderID:   "order-1",
			CreatedAt: txTestNow,
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, d.beginCount())
}

func TestIsRetryable(t *testing.T) {
	unique := func(constraint string) error {
		return &pgconn.PgError{Code: sqlStateUniqueViolation, ConstraintName: constraint}
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: sqlStateSerializationFailure}, want: true},
		{name: "deadlock", err: &pgconn.PgError{Code: sqlStateDeadlockDetected}, want: true},
		{name: "idempotency key race", err: unique("idempotency_keys_pkey"), want: true},
		{name: "operation code race", err: unique("payment_operations_pkey"), want: true},
		{name: "public code race", err: unique("orders_public_code_key"), want: true},
		{name: "wrapped race", err: fmt.Errorf("insert idempotency: %w", unique("idempotency_keys_pkey")), want: true},
		{name: "stock log duplicate", err: unique("stock_logs_pkey"), want: false},
		{name: "audit duplicate", err: unique("audit_logs_pkey"), want: false},
		{name: "foreign key violation", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "not a postgres error", err: assert.AnError, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}
