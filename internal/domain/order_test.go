package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "order-1",
		PublicCode:    "OD-0001",
		TrackingToken: "token-token-token",
		Status:        domain.OrderStatusScheduled,
		Customer:      domain.Customer{Name: "Ana", Email: "ana@example.com", Phone: "999888777"},
		Shipping: domain.LimaDelivery{
			ReceiverName:  "Ana",
			ReceiverDNI:   "12345678",
			ReceiverPhone: "999888777",
			District:      "Miraflores",
			AddressLine1:  "Av. Larco 123",
		},
		Items: []domain.OrderItem{
			{
				ProductID:      "tee",
				Name:           "Tee",
				Variant:        domain.VariantSnapshot{ID: "m-black", Size: "M", Color: "black"},
				UnitPriceMinor: 50_00,
				Qty:            2,
			},
		},
		Totals: domain.Totals{
			SubtotalMinor: 100_00,
			ShippingMinor: 10_00,
			TotalMinor:    110_00,
		},
		ReservedUntil: now.Add(domain.ReservationTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{
			name: "no public code",
			mut:  func(o *domain.Order) { o.PublicCode = "" },
			want: domain.ErrPublicCodeRequired,
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
				o.Totals = domain.Totals{ShippingMinor: 10_00, TotalMinor: 10_00}
			},
			want: domain.ErrItemsRequired,
		},
		{
			name: "no shipping",
			mut:  func(o *domain.Order) { o.Shipping = nil },
			want: domain.ErrShippingRequired,
		},
		{
			name: "zero qty",
			mut:  func(o *domain.Order) { o.Items[0].Qty = 0 },
			want: domain.ErrItemQtyInvalid,
		},
		{
			name: "total mismatch",
			mut:  func(o *domain.Order) { o.Totals.TotalMinor = 1 },
			want: domain.ErrAmountMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			errs := order.ValidateInvariants()
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v in %v", tc.want, errs)
			}
		})
	}
}

func TestOrderIsReservationElapsed(t *testing.T) {
	order := makeOrder()
	deadline := order.ReservedUntil

	if order.IsReservationElapsed(deadline) {
		t.Fatal("reservation must not be elapsed exactly at the deadline")
	}
	if !order.IsReservationElapsed(deadline.Add(time.Millisecond)) {
		t.Fatal("reservation must be elapsed after the deadline")
	}
}

func TestOrderCloneDoesNotShareItems(t *testing.T) {
	order := makeOrder()
	sentAt := time.Now()
	order.Payment.SentAt = &sentAt

	clone := order.Clone()
	clone.Items[0].Qty = 40
	*clone.Payment.SentAt = sentAt.Add(time.Hour)

	if order.Items[0].Qty != 2 {
		t.Fatalf("clone mutated original items: %d", order.Items[0].Qty)
	}
	if !order.Payment.SentAt.Equal(sentAt) {
		t.Fatal("clone mutated original payment timestamp")
	}
}

func TestProductUnitPrice(t *testing.T) {
	sale := int64(80_00)
	cases := []struct {
		name    string
		product domain.Product
		want    int64
	}{
		{name: "regular", product: domain.Product{PriceMinor: 100_00}, want: 100_00},
		{name: "on sale", product: domain.Product{PriceMinor: 100_00, OnSale: true, SalePriceMinor: &sale}, want: 80_00},
		{name: "sale price without flag", product: domain.Product{PriceMinor: 100_00, SalePriceMinor: &sale}, want: 100_00},
		{name: "flag without sale price", product: domain.Product{PriceMinor: 100_00, OnSale: true}, want: 100_00},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.product.UnitPriceMinor(); got != tc.want {
				t.Fatalf("unit price = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestProductMainImageURL(t *testing.T) {
	p := domain.Product{Images: []domain.ProductImage{{URL: "a"}, {URL: "b", IsMain: true}}}
	if got := p.MainImageURL(); got != "b" {
		t.Fatalf("main image = %q, want b", got)
	}

	p.Images[1].IsMain = false
	if got := p.MainImageURL(); got != "a" {
		t.Fatalf("fallback image = %q, want a", got)
	}

	if got := (&domain.Product{}).MainImageURL(); got != "" {
		t.Fatalf("empty product image = %q", got)
	}
}

func TestProductValidateInvariants(t *testing.T) {
	p := domain.Product{Variants: []domain.Variant{{ID: "a", Stock: -1}, {ID: "a", Stock: 1}}}
	errs := p.ValidateInvariants()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}
