package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type totalsView struct {
	Currency string `json:"currency"`
	Subtotal string `json:"subtotal"`
	Discount string `json:"discount"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
}

func toTotalsView(t domain.Totals) totalsView {
	return totalsView{
		Currency: domain.Currency,
		Subtotal: domain.FormatMinor(t.SubtotalMinor),
		Discount: domain.FormatMinor(t.DiscountMinor),
		Shipping: domain.FormatMinor(t.ShippingMinor),
		Total:    domain.FormatMinor(t.TotalMinor),
	}
}

type orderItemView struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	ImageURL  string `json:"imageUrl,omitempty"`
	VariantID string `json:"variantId"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	UnitPrice string `json:"unitPrice"`
	Qty       int    `json:"qty"`
	LineTotal string `json:"lineTotal"`
}

type paymentView struct {
	Method          domain.PaymentMethod `json:"method,omitempty"`
	OperationCode   string               `json:"operationCode,omitempty"`
	ReceiptImageURL string               `json:"receiptImageUrl,omitempty"`
	SentAt          *time.Time           `json:"sentAt,omitempty"`
}

// orderView — заказ для покупателя. Токен отслеживания наружу не отдаётся.
type orderView struct {
	ID            string                `json:"id,omitempty"`
	PublicCode    string                `json:"publicCode"`
	Status        domain.OrderStatus    `json:"status"`
	Customer      domain.Customer       `json:"customer"`
	Shipping      domain.ShippingRecord `json:"shipping"`
	Items         []orderItemView       `json:"items"`
	Totals        totalsView            `json:"totals"`
	CouponCode    string                `json:"couponCode,omitempty"`
	Payment       *paymentView          `json:"payment,omitempty"`
	ReservedUntil *time.Time            `json:"reservedUntil,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

func toOrderView(o domain.Order, withID bool) orderView {
	v := orderView{
		PublicCode: o.PublicCode,
		Status:     o.Status,
		Customer:   o.Customer,
		Shipping:   domain.RecordOf(o.Shipping),
		Items:      make([]orderItemView, 0, len(o.Items)),
		Totals:     toTotalsView(o.Totals),
		CouponCode: o.CouponCode,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	if withID {
		v.ID = o.ID
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			ImageURL:  it.ImageURL,
			VariantID: it.Variant.ID,
			Size:      it.Variant.Size,
			Color:     it.Variant.Color,
			UnitPrice: domain.FormatMinor(it.UnitPriceMinor),
			Qty:       it.Qty,
			LineTotal: domain.FormatMinor(it.LineTotalMinor()),
		})
	}
	if o.Payment.OperationCode != "" {
		v.Payment = &paymentView{
			Method:          o.Payment.Method,
			OperationCode:   o.Payment.OperationCode,
			ReceiptImageURL: o.Payment.ReceiptImageURL,
			SentAt:          o.Payment.SentAt,
		}
	}
	if !o.ReservedUntil.IsZero() && o.Status.IsExpirable() {
		until := o.ReservedUntil
		v.ReservedUntil = &until
	}
	return v
}

type variantView struct {
	ID    string `json:"id"`
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
	SKU   string `json:"sku,omitempty"`
	Stock int    `json:"stock"`
}

type imageView struct {
	URL    string `json:"url"`
	Alt    string `json:"alt,omitempty"`
	IsMain bool   `json:"isMain"`
	Order  int    `json:"order"`
}

type productView struct {
	Slug        string               `json:"slug"`
	Status      domain.ProductStatus `json:"status"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Brand       string               `json:"brand,omitempty"`
	Category    string               `json:"category,omitempty"`
	Price       string               `json:"price"`
	SalePrice   string               `json:"salePrice,omitempty"`
	OnSale      bool                 `json:"onSale"`
	UnitPrice   string               `json:"unitPrice"`
	Images      []imageView          `json:"images"`
	Variants    []variantView        `json:"variants"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

func toProductView(p domain.Product) productView {
	v := productView{
		Slug:        p.ID,
		Status:      p.Status,
		Name:        p.Name,
		Description: p.Description,
		Brand:       p.Brand,
		Category:    p.Category,
		Price:       domain.FormatMinor(p.PriceMinor),
		OnSale:      p.OnSale,
		UnitPrice:   domain.FormatMinor(p.UnitPriceMinor()),
		Images:      make([]imageView, 0, len(p.Images)),
		Variants:    make([]variantView, 0, len(p.Variants)),
		UpdatedAt:   p.UpdatedAt,
	}
	if p.SalePriceMinor != nil {
		v.SalePrice = domain.FormatMinor(*p.SalePriceMinor)
	}
	for _, img := range p.Images {
		v.Images = append(v.Images, imageView{URL: img.URL, Alt: img.Alt, IsMain: img.IsMain, Order: img.Order})
	}
	for _, vr := range p.Variants {
		v.Variants = append(v.Variants, variantView{ID: vr.ID, Size: vr.Size, Color: vr.Color, SKU: vr.SKU, Stock: vr.Stock})
	}
	return v
}
