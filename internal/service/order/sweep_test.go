package order_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// flakyStore отклоняет первые failures транзакций.
type flakyStore struct {
	*memory.Store
	failures int32
}

func (s *flakyStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if atomic.AddInt32(&s.failures, -1) >= 0 {
		return errors.New("transaction aborted")
	}
	return s.Store.RunInTx(ctx, fn)
}

// staleListStore отдаёт заранее снятый список кандидатов.
type staleListStore struct {
	*memory.Store
	stale []domain.Order
}

func (s *staleListStore) ListExpired(_ context.Context, status domain.OrderStatus, _ time.Time, _ int) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range s.stale {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func TestSweep_UsesStrictDeadline(t *testing.T) {
	f := newFixture(t)
	res := mustCreate(t, f, createInput(line("tee", "m", 2)))
	deadline := res.ReservedUntil

	processed, err := f.service.SweepExpiredReservations(context.Background(), deadline)
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Equal(t, domain.OrderStatusScheduled, mustOrder(t, f.store, res.OrderID).Status)

	processed, err = f.service.SweepExpiredReservations(context.Background(), deadline.Add(time.Nanosecond))
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	assert.Equal(t, domain.OrderStatusCancelledExpired, mustOrder(t, f.store, res.OrderID).Status)
	assert.Equal(t, 5, stockOf(t, f.store, "tee", "m"))

	audit := f.store.AuditEntries()
	last := audit[len(audit)-1]
	assert.Equal(t, domain.AuditOrderExpiredCancelled, last.Action)
	assert.Equal(t, domain.Actor{UID: "cron", Email: "cron@local"}, last.Actor)
	assert.Equal(t, map[string]any{"ip": "cron", "userAgent": "cron"}, last.Meta)
	assert.Equal(t, map[string]any{"status": "SCHEDULED"}, last.Before)
}

func TestSweep_TouchesOnlyExpirableStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	scheduled := mustCreate(t, f, createInput(line("cap", "u", 1)))
	sent := mustCreate(t, f, createInput(line("cap", "u", 1)))
	paid := mustCreate(t, f, createInput(line("cap", "u", 1)))
	cancelled := mustCreate(t, f, createInput(line("cap", "u", 1)))

	advanceTo(t, f, sent, domain.OrderStatusPaymentSent)
	advanceTo(t, f, paid, domain.OrderStatusPaid)
	require.NoError(t, f.service.UpdateOrderStatus(ctx, adminActor(), cancelled.OrderID, domain.OrderStatusCancelled))
	require.Equal(t, 7, stockOf(t, f.store, "cap", "u"))

	processed, err := f.service.SweepExpiredReservations(ctx, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	assert.Equal(t, domain.OrderStatusCancelledExpired, mustOrder(t, f.store, scheduled.OrderID).Status)
	assert.Equal(t, domain.OrderStatusCancelledExpired, mustOrder(t, f.store, sent.OrderID).Status)
	assert.Equal(t, domain.OrderStatusPaid, mustOrder(t, f.store, paid.OrderID).Status)
	assert.Equal(t, domain.OrderStatusCancelled, mustOrder(t, f.store, cancelled.OrderID).Status)
	assert.Equal(t, 9, stockOf(t, f.store, "cap", "u"))

	processed, err = f.service.SweepExpiredReservations(ctx, baseTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Equal(t, 9, stockOf(t, f.store, "cap", "u"))
}

func TestSweep_FailureDoesNotAbortBatch(t *testing.T) {
	base := memory.NewStore()
	f := newFixtureWithStore(t, base)
	first := mustCreate(t, f, createInput(line("tee", "m", 1)))
	f.clock.Advance(time.Minute)
	second := mustCreate(t, f, createInput(line("tee", "m", 1)))

	flaky := &flakyStore{Store: base, failures: 1}
	sweeper := order.NewService(flaky, order.WithClock(f.clock))

	processed, err := sweeper.SweepExpiredReservations(context.Background(), baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, domain.OrderStatusScheduled, mustOrder(t, base, first.OrderID).Status)
	assert.Equal(t, domain.OrderStatusCancelledExpired, mustOrder(t, base, second.OrderID).Status)

	processed, err = sweeper.SweepExpiredReservations(context.Background(), baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 5, stockOf(t, base, "tee", "m"))
}

func TestSweep_SkipsOrderChangedAfterListing(t *testing.T) {
	base := memory.NewStore()
	f := newFixtureWithStore(t, base)
	ctx := context.Background()

	res := mustCreate(t, f, createInput(line("tee", "m", 2)))
	stale, err := base.ListExpired(ctx, domain.OrderStatusScheduled, baseTime.Add(time.Hour), 50)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	require.NoError(t, f.service.UpdateOrderStatus(ctx, adminActor(), res.OrderID, domain.OrderStatusCancelled))
	require.Equal(t, 5, stockOf(t, base, "tee", "m"))

	sweeper := order.NewService(&staleListStore{Store: base, stale: stale}, order.WithClock(f.clock))
	processed, err := sweeper.SweepExpiredReservations(ctx, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Equal(t, domain.OrderStatusCancelled, mustOrder(t, base, res.OrderID).Status)
	assert.Equal(t, 5, stockOf(t, base, "tee", "m"))
}
