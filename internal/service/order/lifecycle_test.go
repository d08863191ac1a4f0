package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

func TestOrderLifecycle_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.CreateOrder(ctx, publicActor(), createInput(line("tee", "m", 2)))
	require.NoError(t, err)
	require.Equal(t, 3, stockOf(t, f.store, "tee", "m"))
	require.Equal(t, domain.OrderStatusScheduled, mustOrder(t, f.store, res.OrderID).Status)
	require.Equal(t, baseTime.Add(20*time.Minute), res.ReservedUntil)

	tracked, err := f.service.TrackOrder(ctx, publicActor(), order.TrackOrderInput{PublicCode: res.PublicCode, TrackingToken: res.TrackingToken})
	require.NoError(t, err)
	require.Equal(t, res.OrderID, tracked.ID)

	out, err := f.service.SubmitPayment(ctx, publicActor(), paymentInput(res, "OP-1"))
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Equal(t, domain.OrderStatusPaymentSent, mustOrder(t, f.store, res.OrderID).Status)

	require.NoError(t, f.service.UpdateOrderStatus(ctx, adminActor(), res.OrderID, domain.OrderStatusPaid))
	require.Equal(t, domain.OrderStatusPaid, mustOrder(t, f.store, res.OrderID).Status)

	err = f.service.UpdateOrderStatus(ctx, adminActor(), res.OrderID, domain.OrderStatusCancelled)
	require.ErrorIs(t, err, domain.ErrCannotCancelAfterPaid)
	require.Equal(t, 3, stockOf(t, f.store, "tee", "m"))

	require.Equal(t, []string{
		domain.AuditOrderCreated,
		domain.AuditPaymentSubmitted,
		domain.AuditOrderStatusUpdate,
	}, auditActions(f.store))

	events := f.store.AllPending()
	require.Len(t, events, 3)
	require.Equal(t, domain.EventOrderStatusChanged, events[2].EventType)
}

func TestTrackOrder(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, createInput(line("tee", "m", 1)))

	_, err := f.service.TrackOrder(context.Background(), publicActor(), order.TrackOrderInput{PublicCode: res.PublicCode, TrackingToken: "wrong-token"})
	require.ErrorIs(t, err, domain.ErrInvalidTrackingToken)

	_, err = f.service.TrackOrder(context.Background(), publicActor(), order.TrackOrderInput{PublicCode: "OD-0404", TrackingToken: res.TrackingToken})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.service.TrackOrder(context.Background(), publicActor(), order.TrackOrderInput{PublicCode: "OD", TrackingToken: res.TrackingToken})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	first := mustCreate(t, f, createInput(line("tee", "m", 1)))
	f.clock.Advance(time.Minute)
	second := mustCreate(t, f, createInput(line("tee", "m", 1)))
	advanceTo(t, f, second, domain.OrderStatusPaymentSent)

	_, err := f.service.ListOrders(context.Background(), publicActor(), domain.OrderQuery{})
	require.ErrorIs(t, err, domain.ErrNotAdmin)

	all, err := f.service.ListOrders(context.Background(), adminActor(), domain.OrderQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, second.OrderID, all[0].ID)

	scheduled, err := f.service.ListOrders(context.Background(), adminActor(), domain.OrderQuery{Status: domain.OrderStatusScheduled})
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	require.Equal(t, first.OrderID, scheduled[0].ID)

	_, err = f.service.ListOrders(context.Background(), adminActor(), domain.OrderQuery{Status: "LOST"})
	require.ErrorIs(t, err, domain.ErrValidation)
}
