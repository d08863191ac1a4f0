package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/docs"
)

// fsTx реализует domain.Tx. Firestore запрещает чтение после записи в транзакции,
// поэтому записи копятся в writes и применяются после успешного fn.
type fsTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
	writes []func() error
}

func (t *fsTx) stage(w func() error) error {
	t.writes = append(t.writes, w)
	return nil
}

func (t *fsTx) flush() error {
	for _, w := range t.writes {
		if err := w(); err != nil {
			return err
		}
	}
	t.writes = nil
	return nil
}

func (t *fsTx) GetProduct(_ context.Context, id string) (domain.Product, error) {
	snap, err := t.tx.Get(t.client.Collection(colProducts).Doc(id))
	if isNotFound(err) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return decodeProduct(snap)
}

func (t *fsTx) PutProduct(_ context.Context, p domain.Product) error {
	if errs := p.ValidateInvariants(); len(errs) > 0 {
		return fmt.Errorf("product %s: %w", p.ID, errs[0])
	}
	ref := t.client.Collection(colProducts).Doc(p.ID)
	doc := docs.FromProduct(p)
	return t.stage(func() error { return t.tx.Set(ref, doc) })
}

func (t *fsTx) GetOrder(_ context.Context, id string) (domain.Order, error) {
	snap, err := t.tx.Get(t.client.Collection(colOrders).Doc(id))
	if isNotFound(err) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return decodeOrder(snap)
}

func (t *fsTx) FindOrderByPublicCode(_ context.Context, publicCode string) (domain.Order, error) {
	q := t.client.Collection(colOrders).Where("publicCode", "==", publicCode).Limit(1)
	it := t.tx.Documents(q)
	defer it.Stop()

	snap, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("find order %s: %w", publicCode, err)
	}
	return decodeOrder(snap)
}

func (t *fsTx) PutOrder(_ context.Context, o domain.Order) error {
	ref := t.client.Collection(colOrders).Doc(o.ID)
	doc := docs.FromOrder(o)
	return t.stage(func() error { return t.tx.Set(ref, doc) })
}

func (t *fsTx) GetIdempotency(_ context.Context, id string) (domain.IdempotencyRecord, error) {
	snap, err := t.tx.Get(t.client.Collection(colIdempotency).Doc(id))
	if isNotFound(err) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency %s: %w", id, err)
	}
	var doc docs.IdempotencyDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency %s: %w", id, err)
	}
	return doc.Record(id), nil
}

func (t *fsTx) PutIdempotency(_ context.Context, rec domain.IdempotencyRecord) error {
	ref := t.client.Collection(colIdempotency).Doc(rec.ID)
	doc := docs.FromIdempotency(rec)
	return t.stage(func() error { return t.tx.Create(ref, doc) })
}

func (t *fsTx) GetPaymentOperation(_ context.Context, operationCode string) (domain.PaymentOperation, error) {
	snap, err := t.tx.Get(t.client.Collection(colPaymentOperations).Doc(operationCode))
	if isNotFound(err) {
		return domain.PaymentOperation{}, domain.ErrPaymentOpNotFound
	}
	if err != nil {
		return domain.PaymentOperation{}, fmt.Errorf("get payment operation %s: %w", operationCode, err)
	}
	var doc docs.PaymentOperationDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.PaymentOperation{}, fmt.Errorf("decode payment operation %s: %w", operationCode, err)
	}
	return domain.PaymentOperation{
		OperationCode:   operationCode,
		OrderID:         doc.OrderID,
		OrderPublicCode: doc.OrderPublicCode,
		CreatedAt:       doc.CreatedAt.UTC(),
	}, nil
}

func (t *fsTx) PutPaymentOperation(_ context.Context, op domain.PaymentOperation) error {
	ref := t.client.Collection(colPaymentOperations).Doc(op.OperationCode)
	doc := docs.PaymentOperationDoc{OrderID: op.OrderID, OrderPublicCode: op.OrderPublicCode, CreatedAt: op.CreatedAt}
	return t.stage(func() error { return t.tx.Create(ref, doc) })
}

// NextSequence читает счётчик и откладывает запись увеличенного значения до конца транзакции.
func (t *fsTx) NextSequence(_ context.Context, name string) (int64, error) {
	ref := t.client.Collection(colCounters).Doc(name)
	var current docs.CounterDoc
	snap, err := t.tx.Get(ref)
	switch {
	case isNotFound(err):
	case err != nil:
		return 0, fmt.Errorf("get counter %s: %w", name, err)
	default:
		if err := snap.DataTo(&current); err != nil {
			return 0, fmt.Errorf("decode counter %s: %w", name, err)
		}
	}
	next := docs.CounterDoc{Value: current.Value + 1}
	_ = t.stage(func() error { return t.tx.Set(ref, next) })
	return next.Value, nil
}

func (t *fsTx) GetSettings(_ context.Context) (domain.StoreSettings, error) {
	snap, err := t.tx.Get(t.client.Collection(colSettings).Doc(settingsDocID))
	return decodeSettings(snap, err)
}

func (t *fsTx) PutSettings(_ context.Context, s domain.StoreSettings) error {
	ref := t.client.Collection(colSettings).Doc(settingsDocID)
	doc := docs.FromSettings(s)
	return t.stage(func() error { return t.tx.Set(ref, doc) })
}

func (t *fsTx) AppendStockLog(_ context.Context, e domain.StockLogEntry) error {
	ref := t.newRef(colStockLogs, e.ID)
	doc := docs.FromStockLog(e)
	return t.stage(func() error { return t.tx.Create(ref, doc) })
}

func (t *fsTx) AppendAudit(_ context.Context, e domain.AuditEntry) error {
	ref := t.newRef(colAuditLogs, e.ID)
	doc := docs.FromAudit(e)
	return t.stage(func() error { return t.tx.Create(ref, doc) })
}

func (t *fsTx) EnqueueEvent(_ context.Context, msg domain.OutboxMessage) error {
	ref := t.newRef(colOutbox, msg.ID)
	doc := docs.OutboxDoc{
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		Status:        docs.OutboxPending,
		CreatedAt:     msg.CreatedAt,
		UpdatedAt:     msg.CreatedAt,
	}
	return t.stage(func() error { return t.tx.Create(ref, doc) })
}

func (t *fsTx) newRef(collection, id string) *firestore.DocumentRef {
	if id == "" {
		return t.client.Collection(collection).NewDoc()
	}
	return t.client.Collection(collection).Doc(id)
}

func decodeProduct(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var doc docs.ProductDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
	}
	if doc.ID == "" {
		doc.ID = snap.Ref.ID
	}
	return doc.Product(), nil
}

func decodeOrder(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc docs.OrderDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	if doc.ID == "" {
		doc.ID = snap.Ref.ID
	}
	return doc.Order()
}

func decodeSettings(snap *firestore.DocumentSnapshot, err error) (domain.StoreSettings, error) {
	if isNotFound(err) {
		return domain.StoreSettings{}, domain.ErrSettingsNotFound
	}
	if err != nil {
		return domain.StoreSettings{}, fmt.Errorf("get settings: %w", err)
	}
	var doc docs.SettingsDoc
	if err := snap.DataTo(&doc); err != nil {
		return domain.StoreSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	return doc.Settings(), nil
}

var _ domain.Tx = (*fsTx)(nil)
