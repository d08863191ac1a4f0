package order

import (
	"context"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/validation"
)

type TrackOrderInput struct {
	PublicCode    string `json:"publicCode" validate:"required,min=3,max=32"`
	TrackingToken string `json:"trackingToken" validate:"required,min=8,max=128"`
}

// TrackOrder возвращает заказ по публичному коду, если токен совпадает.
func (s *Service) TrackOrder(ctx context.Context, _ domain.ActorContext, in TrackOrderInput) (domain.Order, error) {
	started := time.Now()
	in.PublicCode = strings.TrimSpace(in.PublicCode)
	in.TrackingToken = strings.TrimSpace(in.TrackingToken)
	if err := validation.Struct(in); err != nil {
		s.observe(opTrackOrder, started, err)
		return domain.Order{}, err
	}

	var found domain.Order
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.FindOrderByPublicCode(ctx, in.PublicCode)
		if err != nil {
			return err
		}
		if !tokensEqual(order.TrackingToken, in.TrackingToken) {
			return domain.ErrInvalidTrackingToken
		}
		found = order
		return nil
	})
	s.observe(opTrackOrder, started, err)
	if err != nil {
		return domain.Order{}, err
	}
	return found, nil
}

const (
	defaultOrdersLimit = 50
	maxOrdersLimit     = 200
)

// ListOrders возвращает последние заказы для бэк-офиса.
func (s *Service) ListOrders(ctx context.Context, actor domain.ActorContext, q domain.OrderQuery) ([]domain.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, domain.NewValidationError("status", "order_status", string(q.Status))
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultOrdersLimit
	case q.Limit > maxOrdersLimit:
		q.Limit = maxOrdersLimit
	}
	return s.store.ListOrders(ctx, q)
}
