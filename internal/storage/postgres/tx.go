package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/docs"
)

const settingsID = "store"

// pgTx реализует domain.Tx. Чтения берут строки FOR UPDATE, поэтому конкурирующие
// транзакции над теми же товарами выстраиваются в очередь.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var raw []byte
	err := t.tx.QueryRowContext(ctx, `SELECT doc FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product %s: %w", id, err)
	}
	return decodeProduct(raw)
}

func (t *pgTx) PutProduct(ctx context.Context, p domain.Product) error {
	if errs := p.ValidateInvariants(); len(errs) > 0 {
		return fmt.Errorf("product %s: %w", p.ID, errs[0])
	}
	raw, err := json.Marshal(docs.FromProduct(p))
	if err != nil {
		return fmt.Errorf("encode product %s: %w", p.ID, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO products (id, status, updated_at, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at, doc = EXCLUDED.doc
	`, p.ID, string(p.Status), p.UpdatedAt, raw)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return t.selectOrder(ctx, `SELECT doc FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) FindOrderByPublicCode(ctx context.Context, publicCode string) (domain.Order, error) {
	return t.selectOrder(ctx, `SELECT doc FROM orders WHERE public_code = $1 FOR UPDATE`, publicCode)
}

func (t *pgTx) selectOrder(ctx context.Context, query, arg string) (domain.Order, error) {
	var raw []byte
	err := t.tx.QueryRowContext(ctx, query, arg).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return decodeOrder(raw)
}

func (t *pgTx) PutOrder(ctx context.Context, o domain.Order) error {
	raw, err := json.Marshal(docs.FromOrder(o))
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	var reservedUntil sql.NullTime
	if !o.ReservedUntil.IsZero() {
		reservedUntil = sql.NullTime{Time: o.ReservedUntil, Valid: true}
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, public_code, status, reserved_until, created_at, updated_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET public_code = EXCLUDED.public_code,
		    status = EXCLUDED.status,
		    reserved_until = EXCLUDED.reserved_until,
		    updated_at = EXCLUDED.updated_at,
		    doc = EXCLUDED.doc
	`, o.ID, o.PublicCode, string(o.Status), reservedUntil, o.CreatedAt, o.UpdatedAt, raw)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.ID, err)
	}
	return nil
}

func (t *pgTx) GetIdempotency(ctx context.Context, id string) (domain.IdempotencyRecord, error) {
	var raw []byte
	err := t.tx.QueryRowContext(ctx, `SELECT doc FROM idempotency_keys WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("select idempotency %s: %w", id, err)
	}
	var doc docs.IdempotencyDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency %s: %w", id, err)
	}
	return doc.Record(id), nil
}

func (t *pgTx) PutIdempotency(ctx context.Context, rec domain.IdempotencyRecord) error {
	raw, err := json.Marshal(docs.FromIdempotency(rec))
	if err != nil {
		return fmt.Errorf("encode idempotency %s: %w", rec.ID, err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO idempotency_keys (id, order_id, created_at, doc)
		VALUES ($1, $2, $3, $4)
	`, rec.ID, rec.OrderID, rec.CreatedAt, raw)
	if err != nil {
		return fmt.Errorf("insert idempotency %s: %w", rec.ID, err)
	}
	return nil
}

func (t *pgTx) GetPaymentOperation(ctx context.Context, operationCode string) (domain.PaymentOperation, error) {
	op := domain.PaymentOperation{OperationCode: operationCode}
	err := t.tx.QueryRowContext(ctx, `
		SELECT order_id, order_public_code, created_at
		FROM payment_operations
		WHERE operation_code = $1
	`, operationCode).Scan(&op.OrderID, &op.OrderPublicCode, &op.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PaymentOperation{}, domain.ErrPaymentOpNotFound
	}
	if err != nil {
		return domain.PaymentOperation{}, fmt.Errorf("select payment operation: %w", err)
	}
	op.CreatedAt = op.CreatedAt.UTC()
	return op, nil
}

func (t *pgTx) PutPaymentOperation(ctx context.Context, op domain.PaymentOperation) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO payment_operations (operation_code, order_id, order_public_code, created_at)
		VALUES ($1, $2, $3, $4)
	`, op.OperationCode, op.OrderID, op.OrderPublicCode, op.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment operation: %w", err)
	}
	return nil
}

func (t *pgTx) NextSequence(ctx context.Context, name string) (int64, error) {
	var value int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`, name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return value, nil
}

func (t *pgTx) GetSettings(ctx context.Context) (domain.StoreSettings, error) {
	return getSettings(ctx, t.tx)
}

func (t *pgTx) PutSettings(ctx context.Context, settings domain.StoreSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO store_settings (id, updated_at, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at, doc = EXCLUDED.doc
	`, settingsID, settings.UpdatedAt, raw)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// AppendStockLog пишет строку журнала остатков; пустой ID заменяется на новый UUID.
func (t *pgTx) AppendStockLog(ctx context.Context, e domain.StockLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var orderID sql.NullString
	if e.OrderID != "" {
		orderID = sql.NullString{String: e.OrderID, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_logs (id, product_id, variant_id, delta, reason, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.ProductID, e.VariantID, e.Delta, string(e.Reason), orderID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert stock log: %w", err)
	}
	return nil
}

func (t *pgTx) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	raw, err := json.Marshal(docs.FromAudit(e))
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, target_type, target_id, created_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Action, string(e.Target.Type), e.Target.ID, e.CreatedAt, raw)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (t *pgTx) EnqueueEvent(ctx context.Context, msg domain.OutboxMessage) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6, $6)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue outbox message: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSettings(ctx context.Context, q queryRower) (domain.StoreSettings, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, `SELECT doc FROM store_settings WHERE id = $1`, settingsID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoreSettings{}, domain.ErrSettingsNotFound
	}
	if err != nil {
		return domain.StoreSettings{}, fmt.Errorf("select settings: %w", err)
	}
	var settings domain.StoreSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return domain.StoreSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

func decodeProduct(raw []byte) (domain.Product, error) {
	var doc docs.ProductDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Product{}, fmt.Errorf("decode product: %w", err)
	}
	return doc.Product(), nil
}

func decodeOrder(raw []byte) (domain.Order, error) {
	var doc docs.OrderDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return doc.Order()
}

var _ domain.Tx = (*pgTx)(nil)
