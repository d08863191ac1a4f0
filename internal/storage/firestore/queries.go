package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ListExpired требует составного индекса (status, reservedUntil).
func (s *Store) ListExpired(ctx context.Context, st domain.OrderStatus, before time.Time, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := s.client.Collection(colOrders).
		Where("status", "==", string(st)).
		Where("reservedUntil", "<", before).
		OrderBy("reservedUntil", firestore.Asc).
		Limit(listLimit(limit))
	return collectOrders(q.Documents(ctx))
}

// ListOrders отдаёт последние заказы, опционально по статусу.
func (s *Store) ListOrders(ctx context.Context, filter domain.OrderQuery) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := s.client.Collection(colOrders).Query
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	q = q.OrderBy("createdAt", firestore.Desc).Limit(listLimit(filter.Limit))
	return collectOrders(q.Documents(ctx))
}

// GetOrder читает заказ вне транзакции.
func (s *Store) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	snap, err := s.client.Collection(colOrders).Doc(id).Get(ctx)
	if isNotFound(err) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return decodeOrder(snap)
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	snap, err := s.client.Collection(colProducts).Doc(id).Get(ctx)
	if isNotFound(err) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return decodeProduct(snap)
}

// ListProducts использует array-contains по searchTokens.
func (s *Store) ListProducts(ctx context.Context, filter domain.ProductQuery) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := s.client.Collection(colProducts).Query
	if filter.Token != "" {
		q = q.Where("searchTokens", "array-contains", filter.Token)
	}
	if !filter.IncludeArchived {
		q = q.Where("status", "==", string(domain.ProductStatusActive))
	}
	q = q.Limit(listLimit(filter.Limit))

	it := q.Documents(ctx)
	defer it.Stop()

	var result []domain.Product
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		p, err := decodeProduct(snap)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
}

func (s *Store) GetSettings(ctx context.Context) (domain.StoreSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	snap, err := s.client.Collection(colSettings).Doc(settingsDocID).Get(ctx)
	return decodeSettings(snap, err)
}

// DeleteIdempotencyBefore удаляет старые записи пачкой через BulkWriter.
func (s *Store) DeleteIdempotencyBefore(ctx context.Context, before time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	refs, err := s.client.Collection(colIdempotency).
		Where("createdAt", "<", before).
		OrderBy("createdAt", firestore.Asc).
		Limit(listLimit(limit)).
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, fmt.Errorf("query idempotency records: %w", err)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, snap := range refs {
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("enqueue idempotency delete: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	if len(errs) > 0 {
		return deleted, fmt.Errorf("delete idempotency records: %w", errors.Join(errs...))
	}
	return deleted, nil
}

func collectOrders(it *firestore.DocumentIterator) ([]domain.Order, error) {
	defer it.Stop()

	var result []domain.Order
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("iterate orders: %w", err)
		}
		o, err := decodeOrder(snap)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
