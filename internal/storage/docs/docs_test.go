package docs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOrderDoc_PreservesShippingVariant(t *testing.T) {
	sentAt := time.Date(2026, 3, 10, 15, 5, 0, 0, time.UTC)
	order := domain.Order{
		ID:         "order-1",
		PublicCode: "OD-0007",
		Status:     domain.OrderStatusPaymentSent,
		Shipping: domain.ProvinceAgency{
			ReceiverName:  "Ana",
			ReceiverDNI:   "12345678",
			ReceiverPhone: "999888777",
			Department:    "Cusco",
			Province:      "Cusco",
			AgencyName:    "Shalom",
			AgencyAddress: "Av. El Sol 100",
		},
		Items: []domain.OrderItem{{
			ProductID:      "tee",
			Variant:        domain.VariantSnapshot{ID: "m", Size: "M"},
			UnitPriceMinor: 50_00,
			Qty:            2,
		}},
		Totals:  domain.Totals{SubtotalMinor: 100_00, TotalMinor: 100_00},
		Payment: domain.Payment{Method: domain.PaymentMethodPlin, OperationCode: "OP-1", SentAt: &sentAt},
	}

	raw, err := json.Marshal(FromOrder(order))
	require.NoError(t, err)

	var doc OrderDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	got, err := doc.Order()
	require.NoError(t, err)

	agency, ok := got.Shipping.(domain.ProvinceAgency)
	require.True(t, ok)
	assert.Equal(t, "Shalom", agency.AgencyName)
	assert.Equal(t, "m", got.Items[0].Variant.ID)
	assert.Equal(t, sentAt, *got.Payment.SentAt)
	assert.Equal(t, order.Totals, got.Totals)
}

func TestOrderDoc_UnknownShippingMethod(t *testing.T) {
	_, err := OrderDoc{ID: "x", Shipping: domain.ShippingRecord{Method: "DRONE"}}.Order()
	assert.True(t, domain.IsValidation(err))
}

func TestProductDoc_CopiesSalePrice(t *testing.T) {
	sale := int64(79_90)
	p := domain.Product{ID: "hoodie", SalePriceMinor: &sale, Variants: []domain.Variant{{ID: "s", Stock: 3}}}

	doc := FromProduct(p)
	sale = 1

	back := doc.Product()
	require.NotNil(t, back.SalePriceMinor)
	assert.Equal(t, int64(79_90), *back.SalePriceMinor)
	assert.Equal(t, 3, back.Variants[0].Stock)
}

func TestSettingsDoc_RoundTrip(t *testing.T) {
	in := domain.StoreSettings{
		StoreName:           "ODERA",
		PublicContactEmail:  "hola@example.com",
		SocialLinks:         domain.SocialLinks{Instagram: "https://instagram.com/odera"},
		PaymentInstructions: domain.PaymentInstructions{YapeName: "Ana", YapeNumber: "999888777"},
		UpdatedAt:           time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	out := FromSettings(in).Settings()
	assert.Equal(t, in, out)
}
