package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ListExpired возвращает заказы в статусе status с reserved_until строго раньше before.
func (s *Store) ListExpired(ctx context.Context, status domain.OrderStatus, before time.Time, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc
		FROM orders
		WHERE status = $1 AND reserved_until < $2
		ORDER BY reserved_until, id
		LIMIT $3
	`, string(status), before, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired %s orders: %w", status, err)
	}
	return scanOrders(rows, limit)
}

// ListOrders возвращает последние заказы, опционально по статусу.
func (s *Store) ListOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, string(q.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return scanOrders(rows, limit)
}

// GetOrder читает заказ вне транзакции.
func (s *Store) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM orders WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order %s: %w", id, err)
	}
	return decodeOrder(raw)
}

// GetProduct читает карточку товара вне транзакции.
func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM products WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product %s: %w", id, err)
	}
	return decodeProduct(raw)
}

// ListProducts фильтрует каталог по статусу и поисковому токену.
func (s *Store) ListProducts(ctx context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc
		FROM products
		WHERE ($1 = '' OR doc -> 'searchTokens' ? $1)
		  AND ($2 OR status = 'active')
		ORDER BY updated_at DESC, id
		LIMIT $3
	`, q.Token, q.IncludeArchived, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0, limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p, err := decodeProduct(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return result, nil
}

// GetSettings читает настройки магазина.
func (s *Store) GetSettings(ctx context.Context) (domain.StoreSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return getSettings(ctx, s.db)
}

// DeleteIdempotencyBefore удаляет до limit самых старых записей идемпотентности.
func (s *Store) DeleteIdempotencyBefore(ctx context.Context, before time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultListLimit
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM idempotency_keys
		WHERE id IN (
			SELECT id
			FROM idempotency_keys
			WHERE created_at < $1
			ORDER BY created_at
			LIMIT $2
		)
	`, before, limit)
	if err != nil {
		return 0, fmt.Errorf("delete idempotency records: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for idempotency cleanup: %w", err)
	}
	return int(affected), nil
}

func scanOrders(rows *sql.Rows, capacity int) ([]domain.Order, error) {
	defer rows.Close()

	result := make([]domain.Order, 0, capacity)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o, err := decodeOrder(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return result, nil
}
