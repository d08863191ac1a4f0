package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Store хранит данные витрины в памяти, для локальной разработки и тестов.
// Транзакции сериализуются одним мьютексом; записи применяются только при успешном fn.
type Store struct {
	mu sync.Mutex

	products     map[string]domain.Product
	orders       map[string]domain.Order
	ordersByCode map[string]string
	idempotency  map[string]domain.IdempotencyRecord
	paymentOps   map[string]domain.PaymentOperation
	counters     map[string]int64
	settings     *domain.StoreSettings

	stockLogs []domain.StockLogEntry
	audit     []domain.AuditEntry
	outbox    map[string]*outboxRecord
	outboxSeq []string
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		orders:       make(map[string]domain.Order),
		ordersByCode: make(map[string]string),
		idempotency:  make(map[string]domain.IdempotencyRecord),
		paymentOps:   make(map[string]domain.PaymentOperation),
		counters:     make(map[string]int64),
		outbox:       make(map[string]*outboxRecord),
	}
}

// RunInTx выполняет fn под эксклюзивной блокировкой хранилища.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error {
	return nil
}

// SeedProduct сохраняет товар в обход транзакций (используется в тестах и dev-режиме).
func (s *Store) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p.Clone()
}

// DeleteProduct удаляет товар из каталога. Снимки в заказах остаются как есть.
func (s *Store) DeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

type memTx struct {
	s *Store

	products    map[string]domain.Product
	orders      map[string]domain.Order
	idempotency map[string]domain.IdempotencyRecord
	paymentOps  map[string]domain.PaymentOperation
	counters    map[string]int64
	settings    *domain.StoreSettings

	stockLogs []domain.StockLogEntry
	audit     []domain.AuditEntry
	outbox    []domain.OutboxMessage
}

func newTx(s *Store) *memTx {
	return &memTx{
		s:           s,
		products:    make(map[string]domain.Product),
		orders:      make(map[string]domain.Order),
		idempotency: make(map[string]domain.IdempotencyRecord),
		paymentOps:  make(map[string]domain.PaymentOperation),
		counters:    make(map[string]int64),
	}
}

func (t *memTx) GetProduct(_ context.Context, id string) (domain.Product, error) {
	if p, ok := t.products[id]; ok {
		return p.Clone(), nil
	}
	p, ok := t.s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p.Clone(), nil
}

func (t *memTx) PutProduct(_ context.Context, p domain.Product) error {
	if errs := p.ValidateInvariants(); len(errs) > 0 {
		return fmt.Errorf("product %s: %w", p.ID, errs[0])
	}
	t.products[p.ID] = p.Clone()
	return nil
}

func (t *memTx) GetOrder(_ context.Context, id string) (domain.Order, error) {
	if o, ok := t.orders[id]; ok {
		return o.Clone(), nil
	}
	o, ok := t.s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (t *memTx) FindOrderByPublicCode(ctx context.Context, publicCode string) (domain.Order, error) {
	for _, o := range t.orders {
		if o.PublicCode == publicCode {
			return o.Clone(), nil
		}
	}
	id, ok := t.s.ordersByCode[publicCode]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return t.GetOrder(ctx, id)
}

func (t *memTx) PutOrder(_ context.Context, o domain.Order) error {
	if id, ok := t.s.ordersByCode[o.PublicCode]; ok && id != o.ID {
		return fmt.Errorf("public code %s already assigned: %w", o.PublicCode, domain.ErrTxConflict)
	}
	t.orders[o.ID] = o.Clone()
	return nil
}

func (t *memTx) GetIdempotency(_ context.Context, id string) (domain.IdempotencyRecord, error) {
	if rec, ok := t.idempotency[id]; ok {
		return rec, nil
	}
	rec, ok := t.s.idempotency[id]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return rec, nil
}

func (t *memTx) PutIdempotency(_ context.Context, rec domain.IdempotencyRecord) error {
	t.idempotency[rec.ID] = rec
	return nil
}

func (t *memTx) GetPaymentOperation(_ context.Context, code string) (domain.PaymentOperation, error) {
	if op, ok := t.paymentOps[code]; ok {
		return op, nil
	}
	op, ok := t.s.paymentOps[code]
	if !ok {
		return domain.PaymentOperation{}, domain.ErrPaymentOpNotFound
	}
	return op, nil
}

func (t *memTx) PutPaymentOperation(_ context.Context, op domain.PaymentOperation) error {
	t.paymentOps[op.OperationCode] = op
	return nil
}

func (t *memTx) NextSequence(_ context.Context, name string) (int64, error) {
	current, ok := t.counters[name]
	if !ok {
		current = t.s.counters[name]
	}
	current++
	t.counters[name] = current
	return current, nil
}

func (t *memTx) GetSettings(context.Context) (domain.StoreSettings, error) {
	if t.settings != nil {
		return *t.settings, nil
	}
	if t.s.settings == nil {
		return domain.StoreSettings{}, domain.ErrSettingsNotFound
	}
	return *t.s.settings, nil
}

func (t *memTx) PutSettings(_ context.Context, settings domain.StoreSettings) error {
	t.settings = &settings
	return nil
}

func (t *memTx) AppendStockLog(_ context.Context, entry domain.StockLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	t.stockLogs = append(t.stockLogs, entry)
	return nil
}

func (t *memTx) AppendAudit(_ context.Context, entry domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	t.audit = append(t.audit, entry)
	return nil
}

func (t *memTx) EnqueueEvent(_ context.Context, msg domain.OutboxMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	t.outbox = append(t.outbox, msg)
	return nil
}

// commit применяет накопленные записи; вызывается под s.mu.
func (t *memTx) commit() error {
	s := t.s
	for id, p := range t.products {
		s.products[id] = p
	}
	for id, o := range t.orders {
		if prev, ok := s.orders[id]; ok && prev.PublicCode != o.PublicCode {
			delete(s.ordersByCode, prev.PublicCode)
		}
		s.orders[id] = o
		s.ordersByCode[o.PublicCode] = id
	}
	for id, rec := range t.idempotency {
		s.idempotency[id] = rec
	}
	for code, op := range t.paymentOps {
		s.paymentOps[code] = op
	}
	for name, v := range t.counters {
		s.counters[name] = v
	}
	if t.settings != nil {
		settings := *t.settings
		s.settings = &settings
	}
	s.stockLogs = append(s.stockLogs, t.stockLogs...)
	s.audit = append(s.audit, t.audit...)
	for _, msg := range t.outbox {
		s.outbox[msg.ID] = &outboxRecord{msg: msg, status: outboxStatusPending, createdAt: msg.CreatedAt, updatedAt: msg.CreatedAt}
		s.outboxSeq = append(s.outboxSeq, msg.ID)
	}
	return nil
}

var (
	_ domain.Store            = (*Store)(nil)
	_ domain.Tx               = (*memTx)(nil)
	_ domain.OutboxRepository = (*Store)(nil)
)
