package domain

import (
	"context"
	"time"
)

// Tx — операции внутри одной атомарной транзакции хранилища.
//
// Хранилища с оптимистичными транзакциями (Firestore) запрещают чтение после записи,
// поэтому вызывающий код сначала выполняет все Get/Find/NextSequence, а затем Put/Append.
type Tx interface {
	// GetProduct читает свежий остаток внутри транзакции; ErrProductNotFound, если товара нет.
	GetProduct(ctx context.Context, id string) (Product, error)
	PutProduct(ctx context.Context, p Product) error

	GetOrder(ctx context.Context, id string) (Order, error)
	// FindOrderByPublicCode возвращает ErrOrderNotFound, если кода нет.
	FindOrderByPublicCode(ctx context.Context, publicCode string) (Order, error)
	// PutOrder создаёт или полностью перезаписывает заказ.
	PutOrder(ctx context.Context, o Order) error

	GetIdempotency(ctx context.Context, id string) (IdempotencyRecord, error)
	PutIdempotency(ctx context.Context, rec IdempotencyRecord) error

	GetPaymentOperation(ctx context.Context, operationCode string) (PaymentOperation, error)
	PutPaymentOperation(ctx context.Context, op PaymentOperation) error

	// NextSequence атомарно увеличивает именованный счётчик и возвращает новое значение.
	NextSequence(ctx context.Context, name string) (int64, error)

	GetSettings(ctx context.Context) (StoreSettings, error)
	PutSettings(ctx context.Context, s StoreSettings) error

	AppendStockLog(ctx context.Context, entry StockLogEntry) error
	AppendAudit(ctx context.Context, entry AuditEntry) error
	// EnqueueEvent кладёт событие в transactional outbox вместе с остальными записями.
	EnqueueEvent(ctx context.Context, msg OutboxMessage) error
}

type ProductQuery struct {
	// Нормализованный поисковый токен; пустой означает без фильтра.
	Token           string
	IncludeArchived bool
	Limit           int
}

// OrderQuery фильтрует список заказов для бэк-офиса.
type OrderQuery struct {
	Status OrderStatus
	Limit  int
}

// Store — хранилище документов с сериализуемыми транзакциями.
type Store interface {
	// RunInTx выполняет fn атомарно. При конфликте записи хранилище может
	// повторить fn, поэтому fn не должна иметь внешних побочных эффектов.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ListExpired возвращает заказы в статусе status с ReservedUntil строго раньше before.
	ListExpired(ctx context.Context, status OrderStatus, before time.Time, limit int) ([]Order, error)

	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context, q ProductQuery) ([]Product, error)
	ListOrders(ctx context.Context, q OrderQuery) ([]Order, error)
	GetSettings(ctx context.Context) (StoreSettings, error)

	// DeleteIdempotencyBefore удаляет до limit записей идемпотентности старше before.
	DeleteIdempotencyBefore(ctx context.Context, before time.Time, limit int) (int, error)

	Ping(ctx context.Context) error
}
