package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// SweepExpiredReservations отменяет заказы, резерв которых истёк строго раньше now,
// и возвращает товар на склад. Каждый заказ обрабатывается в своей транзакции;
// ошибка по одному заказу логируется и не останавливает проход.
// Возвращает число отменённых заказов.
func (s *Service) SweepExpiredReservations(ctx context.Context, now time.Time) (int, error) {
	started := time.Now()
	defer func() { s.metrics.RecordSweepDuration(time.Since(started)) }()

	now = now.UTC()
	processed := 0
	var listErrs []error

	for _, status := range domain.ExpirableStatuses {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		candidates, err := s.store.ListExpired(ctx, status, now, sweepBatchLimit)
		if err != nil {
			s.logger.WithError(err).WithField("status", status).Error("list expired orders failed")
			listErrs = append(listErrs, fmt.Errorf("list expired %s: %w", status, err))
			continue
		}

		for _, candidate := range candidates {
			logger := s.logger.WithFields(log.Fields{
				"order_id":    candidate.ID,
				"public_code": candidate.PublicCode,
				"status":      status,
			})

			expired, err := s.expireOrder(ctx, candidate.ID, status, now)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return processed, ctxErr
				}
				s.metrics.RecordSweepFailure()
				logger.WithError(err).Warn("expire order failed")
				continue
			}
			if !expired {
				logger.Debug("order changed since listing, skipped")
				continue
			}
			processed++
			logger.Info("expired reservation released")
		}
	}

	return processed, errors.Join(listErrs...)
}

// expireOrder отменяет один заказ. false без ошибки означает, что заказ уже
// сменил статус или его резерв продлён, и трогать его нельзя.
func (s *Service) expireOrder(ctx context.Context, orderID string, status domain.OrderStatus, now time.Time) (bool, error) {
	started := time.Now()
	cron := domain.CronActor()

	var (
		expired  bool
		released int
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		expired, released = false, 0

		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			if domain.IsNotFound(err) {
				return nil
			}
			return err
		}
		if order.Status != status || !order.IsReservationElapsed(now) {
			return nil
		}

		plan, err := planRelease(ctx, tx, order, now)
		if err != nil {
			return err
		}
		if err := plan.apply(ctx, tx); err != nil {
			return err
		}
		released = plan.units

		order.Status = domain.OrderStatusCancelledExpired
		order.UpdatedAt = now
		if err := tx.PutOrder(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		if err := tx.AppendAudit(ctx, domain.AuditEntry{
			Actor:     cron.Actor,
			Action:    domain.AuditOrderExpiredCancelled,
			Target:    domain.AuditTarget{Type: domain.AuditTargetOrder, ID: order.ID, PublicCode: order.PublicCode},
			Before:    map[string]any{"status": string(status)},
			After:     map[string]any{"status": string(domain.OrderStatusCancelledExpired)},
			Meta:      cron.Meta(),
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		msg, err := domain.NewOrderEventMessage(uuid.NewString(), domain.EventOrderExpired, domain.OrderEvent{
			OrderID:    order.ID,
			PublicCode: order.PublicCode,
			Status:     order.Status,
			Previous:   status,
			ActorUID:   cron.Actor.UID,
			OccurredAt: now,
		})
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, msg); err != nil {
			return fmt.Errorf("enqueue order expired event: %w", err)
		}

		expired = true
		return nil
	})
	s.observe(opExpireOrder, started, err)
	if err != nil {
		return false, err
	}

	if expired {
		s.metrics.RecordExpiredReleased()
		s.metrics.RecordTransition(string(status), string(domain.OrderStatusCancelledExpired))
		s.metrics.RecordUnitsReleased(released)
	}
	return expired, nil
}
