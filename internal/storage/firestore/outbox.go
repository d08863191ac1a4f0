package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/docs"
)

// PullPending отдаёт самые старые события со статусом pending.
func (s *Store) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	snaps, err := s.pendingQuery().Limit(listLimit(limit)).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}
	result := make([]domain.OutboxMessage, 0, len(snaps))
	for _, snap := range snaps {
		var doc docs.OutboxDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode outbox message %s: %w", snap.Ref.ID, err)
		}
		result = append(result, doc.Message(snap.Ref.ID))
	}
	return result, nil
}

// Stats считает backlog агрегирующим запросом и читает самое старое событие.
func (s *Store) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	q := s.client.Collection(colOutbox).
		Where("status", "==", docs.OutboxPending)
	res, err := q.NewAggregationQuery().
		WithCount("pending").
		Get(ctx)
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats query failed: %w", err)
	}

	var stats domain.OutboxStats
	if v, ok := res["pending"].(*firestorepb.Value); ok {
		stats.PendingCount = int(v.GetIntegerValue())
	}
	if stats.PendingCount == 0 {
		return stats, nil
	}

	oldest, err := s.pendingQuery().Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox oldest pending: %w", err)
	}
	if len(oldest) > 0 {
		var doc docs.OutboxDoc
		if err := oldest[0].DataTo(&doc); err == nil {
			stats.OldestPendingAt = doc.CreatedAt.UTC()
		}
	}
	return stats, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	return s.markOutbox(ctx, id, docs.OutboxSent)
}

func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.markOutbox(ctx, id, docs.OutboxFailed)
}

func (s *Store) markOutbox(ctx context.Context, id, st string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.client.Collection(colOutbox).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: st},
		{Path: "attempts", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if isNotFound(err) {
		return fmt.Errorf("%w: outbox message %s not found", domain.ErrOutboxPublish, id)
	}
	if err != nil {
		return fmt.Errorf("mark outbox message as %s: %w", st, err)
	}
	return nil
}

func (s *Store) pendingQuery() firestore.Query {
	return s.client.Collection(colOutbox).
		Where("status", "==", docs.OutboxPending).
		OrderBy("createdAt", firestore.Asc)
}

var _ domain.OutboxRepository = (*Store)(nil)
