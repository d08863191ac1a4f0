package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
)

// checkAdminTransition применяет правила смены статуса администратором.
// Отмена оплаченного заказа проверяется первой: для неё нужен отдельный возврат денег.
func checkAdminTransition(current, next domain.OrderStatus) error {
	if next == domain.OrderStatusCancelled && current.IsPaidOrBeyond() {
		return domain.ErrCannotCancelAfterPaid
	}
	if current.IsTerminal() && next != current {
		return domain.ErrOrderAlreadyTerminal
	}
	if !domain.IsAllowedTransition(current, next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, current, next)
	}
	return nil
}

// UpdateOrderStatus меняет статус заказа от имени администратора.
// Отмена возвращает остатки по всем позициям в той же транзакции.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor domain.ActorContext, orderID string, next domain.OrderStatus) error {
	started := time.Now()
	err := s.updateOrderStatus(ctx, actor, strings.TrimSpace(orderID), next)
	s.observe(opUpdateStatus, started, err)
	return err
}

func (s *Service) updateOrderStatus(ctx context.Context, actor domain.ActorContext, orderID string, next domain.OrderStatus) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if orderID == "" {
		return domain.NewValidationError("orderId", "required", "")
	}
	if !next.IsAdminSettable() {
		return domain.NewValidationError("nextStatus", "order_status", string(next))
	}

	now := s.now()
	var (
		before   domain.Order
		released int
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		released = 0

		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		before = order
		current := order.Status

		if err := checkAdminTransition(current, next); err != nil {
			return err
		}

		var plan releasePlan
		if next == domain.OrderStatusCancelled && current != next {
			if plan, err = planRelease(ctx, tx, order, now); err != nil {
				return err
			}
		}

		if err := plan.apply(ctx, tx); err != nil {
			return err
		}
		released = plan.units

		order.Status = next
		order.UpdatedAt = now
		if err := tx.PutOrder(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		if err := tx.AppendAudit(ctx, domain.AuditEntry{
			Actor:     actor.Actor,
			Action:    domain.AuditOrderStatusUpdate,
			Target:    domain.AuditTarget{Type: domain.AuditTargetOrder, ID: order.ID, PublicCode: order.PublicCode},
			Before:    map[string]any{"status": string(current)},
			After:     map[string]any{"status": string(next)},
			Meta:      actor.Meta(),
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		msg, err := domain.NewOrderEventMessage(uuid.NewString(), domain.EventOrderStatusChanged, domain.OrderEvent{
			OrderID:    order.ID,
			PublicCode: order.PublicCode,
			Status:     next,
			Previous:   current,
			ActorUID:   actor.Actor.UID,
			OccurredAt: now,
		})
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, msg); err != nil {
			return fmt.Errorf("enqueue status changed event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"from":     before.Status,
		"to":       next,
		"admin":    actor.Actor.Email,
	}).Info("order status updated")

	if before.Status == next {
		return nil
	}
	s.metrics.RecordTransition(string(before.Status), string(next))
	if released > 0 {
		s.metrics.RecordUnitsReleased(released)
	}
	if msg, ok := s.templates.StatusUpdated(s.storeName(ctx), before, next); ok && msg.To != "" {
		s.mailer.Dispatch(notify.TemplateStatusUpdated, msg)
	}
	return nil
}
