package order_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var baseTime = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqTokens struct {
	n int64
}

func (g *seqTokens) Token(int) (string, error) {
	return fmt.Sprintf("track-token-%04d", atomic.AddInt64(&g.n, 1)), nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	template string
	msg      notify.Message
}

func (m *recordingMailer) Dispatch(template string, msg notify.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{template: template, msg: msg})
}

func (m *recordingMailer) templates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.template)
	}
	return out
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type fixture struct {
	store   *memory.Store
	clock   *fakeClock
	mailer  *recordingMailer
	service *order.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore())
}

func newFixtureWithStore(t *testing.T, store *memory.Store, opts ...order.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  store,
		clock:  newFakeClock(),
		mailer: &recordingMailer{},
	}
	f.store.SeedProduct(teeProduct(5, 1))
	f.store.SeedProduct(domain.Product{
		ID:         "cap",
		Status:     domain.ProductStatusActive,
		Name:       "Gorra",
		PriceMinor: 30_00,
		Variants:   []domain.Variant{{ID: "u", Stock: 10}},
	})

	base := []order.Option{
		order.WithClock(f.clock),
		order.WithTokens(&seqTokens{}),
		order.WithMailer(f.mailer),
	}
	f.service = order.NewService(store, append(base, opts...)...)
	return f
}

func teeProduct(stockM, stockL int) domain.Product {
	return domain.Product{
		ID:         "tee",
		Status:     domain.ProductStatusActive,
		Name:       "Polo Básico",
		PriceMinor: 50_00,
		Images: []domain.ProductImage{
			{URL: "https://cdn.example.com/tee-back.jpg", Order: 1},
			{URL: "https://cdn.example.com/tee.jpg", IsMain: true},
		},
		Variants: []domain.Variant{
			{ID: "m", Size: "M", Color: "negro", Stock: stockM},
			{ID: "l", Size: "L", Color: "negro", Stock: stockL},
		},
	}
}

func customer() domain.Customer {
	return domain.Customer{Name: "Ana Torres", Email: "ana@example.com", Phone: "999888777"}
}

func limaShipping() domain.Shipping {
	return domain.LimaDelivery{
		ReceiverName:  "Ana Torres",
		ReceiverDNI:   "12345678",
		ReceiverPhone: "999888777",
		District:      "Miraflores",
		AddressLine1:  "Av. Larco 123",
	}
}

func createInput(lines ...domain.OrderLine) order.CreateOrderInput {
	return order.CreateOrderInput{
		Items:    lines,
		Customer: customer(),
		Shipping: limaShipping(),
	}
}

func line(productID, variantID string, qty int) domain.OrderLine {
	return domain.OrderLine{ProductID: productID, VariantID: variantID, Qty: qty}
}

func publicActor() domain.ActorContext {
	return domain.PublicActor("203.0.113.7", "test-agent")
}

func adminActor() domain.ActorContext {
	return domain.AdminActor("admin-1", "admin@example.com", "198.51.100.1", "admin-agent")
}

func stockOf(t *testing.T, store *memory.Store, productID, variantID string) int {
	t.Helper()
	p, err := store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	idx := p.VariantIndex(variantID)
	require.GreaterOrEqual(t, idx, 0)
	return p.Variants[idx].Stock
}

func mustCreate(t *testing.T, f *fixture, in order.CreateOrderInput) order.CreateOrderResult {
	t.Helper()
	res, err := f.service.CreateOrder(context.Background(), publicActor(), in)
	require.NoError(t, err)
	return res
}

func mustOrder(t *testing.T, store *memory.Store, id string) domain.Order {
	t.Helper()
	o, err := store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func paymentInput(res order.CreateOrderResult, operationCode string) order.SubmitPaymentInput {
	return order.SubmitPaymentInput{
		PublicCode:    res.PublicCode,
		TrackingToken: res.TrackingToken,
		OperationCode: operationCode,
		Method:        domain.PaymentMethodYape,
	}
}

func auditActions(store *memory.Store) []string {
	entries := store.AuditEntries()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}
