// Package docs — документная форма сущностей для хранилищ (JSONB в Postgres, документы Firestore).
package docs

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type ImageDoc struct {
	URL    string `json:"url" firestore:"url"`
	Alt    string `json:"alt,omitempty" firestore:"alt,omitempty"`
	IsMain bool   `json:"isMain" firestore:"isMain"`
	Order  int    `json:"order" firestore:"order"`
}

type VariantDoc struct {
	ID    string `json:"id" firestore:"id"`
	Size  string `json:"size,omitempty" firestore:"size,omitempty"`
	Color string `json:"color,omitempty" firestore:"color,omitempty"`
	SKU   string `json:"sku,omitempty" firestore:"sku,omitempty"`
	Stock int    `json:"stock" firestore:"stock"`
}

// ProductDoc хранится в products/{slug}.
type ProductDoc struct {
	ID             string       `json:"id" firestore:"id"`
	Status         string       `json:"status" firestore:"status"`
	Name           string       `json:"name" firestore:"name"`
	Description    string       `json:"description" firestore:"description"`
	Brand          string       `json:"brand,omitempty" firestore:"brand,omitempty"`
	Category       string       `json:"category,omitempty" firestore:"category,omitempty"`
	PriceMinor     int64        `json:"priceMinor" firestore:"priceMinor"`
	SalePriceMinor *int64       `json:"salePriceMinor,omitempty" firestore:"salePriceMinor,omitempty"`
	OnSale         bool         `json:"onSale" firestore:"onSale"`
	Images         []ImageDoc   `json:"images" firestore:"images"`
	Variants       []VariantDoc `json:"variants" firestore:"variants"`
	SearchTokens   []string     `json:"searchTokens" firestore:"searchTokens"`
	CreatedAt      time.Time    `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt" firestore:"updatedAt"`
}

// FromProduct строит документ товара.
func FromProduct(p domain.Product) ProductDoc {
	d := ProductDoc{
		ID:           p.ID,
		Status:       string(p.Status),
		Name:         p.Name,
		Description:  p.Description,
		Brand:        p.Brand,
		Category:     p.Category,
		PriceMinor:   p.PriceMinor,
		OnSale:       p.OnSale,
		Images:       make([]ImageDoc, 0, len(p.Images)),
		Variants:     make([]VariantDoc, 0, len(p.Variants)),
		SearchTokens: append([]string{}, p.SearchTokens...),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.SalePriceMinor != nil {
		v := *p.SalePriceMinor
		d.SalePriceMinor = &v
	}
	for _, img := range p.Images {
		d.Images = append(d.Images, ImageDoc{URL: img.URL, Alt: img.Alt, IsMain: img.IsMain, Order: img.Order})
	}
	for _, v := range p.Variants {
		d.Variants = append(d.Variants, VariantDoc{ID: v.ID, Size: v.Size, Color: v.Color, SKU: v.SKU, Stock: v.Stock})
	}
	return d
}

// Product восстанавливает доменный товар.
func (d ProductDoc) Product() domain.Product {
	p := domain.Product{
		ID:           d.ID,
		Status:       domain.ProductStatus(d.Status),
		Name:         d.Name,
		Description:  d.Description,
		Brand:        d.Brand,
		Category:     d.Category,
		PriceMinor:   d.PriceMinor,
		OnSale:       d.OnSale,
		SearchTokens: append([]string(nil), d.SearchTokens...),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.SalePriceMinor != nil {
		v := *d.SalePriceMinor
		p.SalePriceMinor = &v
	}
	for _, img := range d.Images {
		p.Images = append(p.Images, domain.ProductImage{URL: img.URL, Alt: img.Alt, IsMain: img.IsMain, Order: img.Order})
	}
	for _, v := range d.Variants {
		p.Variants = append(p.Variants, domain.Variant{ID: v.ID, Size: v.Size, Color: v.Color, SKU: v.SKU, Stock: v.Stock})
	}
	return p
}

type ItemDoc struct {
	ProductID      string `json:"productId" firestore:"productId"`
	Name           string `json:"name" firestore:"name"`
	ImageURL       string `json:"imageUrl,omitempty" firestore:"imageUrl,omitempty"`
	VariantID      string `json:"variantId" firestore:"variantId"`
	Size           string `json:"size,omitempty" firestore:"size,omitempty"`
	Color          string `json:"color,omitempty" firestore:"color,omitempty"`
	UnitPriceMinor int64  `json:"unitPriceMinor" firestore:"unitPriceMinor"`
	Qty            int    `json:"qty" firestore:"qty"`
}

// Суммы в céntimos.
type TotalsDoc struct {
	SubtotalMinor int64 `json:"subtotalMinor" firestore:"subtotalMinor"`
	DiscountMinor int64 `json:"discountMinor" firestore:"discountMinor"`
	ShippingMinor int64 `json:"shippingMinor" firestore:"shippingMinor"`
	TotalMinor    int64 `json:"totalMinor" firestore:"totalMinor"`
}

func fromTotals(t domain.Totals) TotalsDoc {
	return TotalsDoc{SubtotalMinor: t.SubtotalMinor, DiscountMinor: t.DiscountMinor, ShippingMinor: t.ShippingMinor, TotalMinor: t.TotalMinor}
}

func (t TotalsDoc) totals() domain.Totals {
	return domain.Totals{SubtotalMinor: t.SubtotalMinor, DiscountMinor: t.DiscountMinor, ShippingMinor: t.ShippingMinor, TotalMinor: t.TotalMinor}
}

type PaymentDoc struct {
	Method          string     `json:"method,omitempty" firestore:"method,omitempty"`
	OperationCode   string     `json:"operationCode,omitempty" firestore:"operationCode,omitempty"`
	ReceiptImageURL string     `json:"receiptImageUrl,omitempty" firestore:"receiptImageUrl,omitempty"`
	SentAt          *time.Time `json:"sentAt,omitempty" firestore:"sentAt,omitempty"`
}

// OrderDoc хранится в orders/{id}.
type OrderDoc struct {
	ID            string                `json:"id" firestore:"id"`
	PublicCode    string                `json:"publicCode" firestore:"publicCode"`
	TrackingToken string                `json:"trackingToken" firestore:"trackingToken"`
	Status        string                `json:"status" firestore:"status"`
	Customer      domain.Customer       `json:"customer" firestore:"customer"`
	Shipping      domain.ShippingRecord `json:"shipping" firestore:"shipping"`
	Items         []ItemDoc             `json:"items" firestore:"items"`
	Totals        TotalsDoc             `json:"totals" firestore:"totals"`
	CouponCode    string                `json:"couponCode,omitempty" firestore:"couponCode,omitempty"`
	Payment       PaymentDoc            `json:"payment" firestore:"payment"`
	ReservedUntil time.Time             `json:"reservedUntil" firestore:"reservedUntil"`
	CreatedAt     time.Time             `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt" firestore:"updatedAt"`
}

// FromOrder строит документ заказа.
func FromOrder(o domain.Order) OrderDoc {
	d := OrderDoc{
		ID:            o.ID,
		PublicCode:    o.PublicCode,
		TrackingToken: o.TrackingToken,
		Status:        string(o.Status),
		Customer:      o.Customer,
		Shipping:      domain.RecordOf(o.Shipping),
		Items:         make([]ItemDoc, 0, len(o.Items)),
		Totals:        fromTotals(o.Totals),
		CouponCode:    o.CouponCode,
		Payment: PaymentDoc{
			Method:          string(o.Payment.Method),
			OperationCode:   o.Payment.OperationCode,
			ReceiptImageURL: o.Payment.ReceiptImageURL,
		},
		ReservedUntil: o.ReservedUntil,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.Payment.SentAt != nil {
		sentAt := *o.Payment.SentAt
		d.Payment.SentAt = &sentAt
	}
	for _, it := range o.Items {
		d.Items = append(d.Items, ItemDoc{
			ProductID:      it.ProductID,
			Name:           it.Name,
			ImageURL:       it.ImageURL,
			VariantID:      it.Variant.ID,
			Size:           it.Variant.Size,
			Color:          it.Variant.Color,
			UnitPriceMinor: it.UnitPriceMinor,
			Qty:            it.Qty,
		})
	}
	return d
}

// Order восстанавливает заказ; ошибка, если дискриминатор доставки неизвестен.
func (d OrderDoc) Order() (domain.Order, error) {
	shipping, err := d.Shipping.Shipping()
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: decode shipping: %w", d.ID, err)
	}
	o := domain.Order{
		ID:            d.ID,
		PublicCode:    d.PublicCode,
		TrackingToken: d.TrackingToken,
		Status:        domain.OrderStatus(d.Status),
		Customer:      d.Customer,
		Shipping:      shipping,
		Items:         make([]domain.OrderItem, 0, len(d.Items)),
		Totals:        d.Totals.totals(),
		CouponCode:    d.CouponCode,
		Payment: domain.Payment{
			Method:          domain.PaymentMethod(d.Payment.Method),
			OperationCode:   d.Payment.OperationCode,
			ReceiptImageURL: d.Payment.ReceiptImageURL,
		},
		ReservedUntil: d.ReservedUntil.UTC(),
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if d.Payment.SentAt != nil {
		sentAt := d.Payment.SentAt.UTC()
		o.Payment.SentAt = &sentAt
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID:      it.ProductID,
			Name:           it.Name,
			ImageURL:       it.ImageURL,
			Variant:        domain.VariantSnapshot{ID: it.VariantID, Size: it.Size, Color: it.Color},
			UnitPriceMinor: it.UnitPriceMinor,
			Qty:            it.Qty,
		})
	}
	return o, nil
}

// IdempotencyDoc хранится в idempotency/{sha256(ip:key)[:32]}.
type IdempotencyDoc struct {
	OrderID       string    `json:"orderId" firestore:"orderId"`
	PublicCode    string    `json:"publicCode" firestore:"publicCode"`
	TrackingToken string    `json:"trackingToken" firestore:"trackingToken"`
	ReservedUntil time.Time `json:"reservedUntil" firestore:"reservedUntil"`
	Totals        TotalsDoc `json:"totals" firestore:"totals"`
	IP            string    `json:"ip" firestore:"ip"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt"`
}

// FromIdempotency строит документ записи идемпотентности.
func FromIdempotency(rec domain.IdempotencyRecord) IdempotencyDoc {
	return IdempotencyDoc{
		OrderID:       rec.OrderID,
		PublicCode:    rec.PublicCode,
		TrackingToken: rec.TrackingToken,
		ReservedUntil: rec.ReservedUntil,
		Totals:        fromTotals(rec.Totals),
		IP:            rec.IP,
		CreatedAt:     rec.CreatedAt,
	}
}

// Record восстанавливает запись с идентификатором документа.
func (d IdempotencyDoc) Record(id string) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		ID:            id,
		OrderID:       d.OrderID,
		PublicCode:    d.PublicCode,
		TrackingToken: d.TrackingToken,
		ReservedUntil: d.ReservedUntil.UTC(),
		Totals:        d.Totals.totals(),
		IP:            d.IP,
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

type AuditDoc struct {
	ActorUID   string         `json:"actorUid" firestore:"actorUid"`
	ActorEmail string         `json:"actorEmail" firestore:"actorEmail"`
	Action     string         `json:"action" firestore:"action"`
	TargetType string         `json:"targetType" firestore:"targetType"`
	TargetID   string         `json:"targetId" firestore:"targetId"`
	PublicCode string         `json:"publicCode,omitempty" firestore:"publicCode,omitempty"`
	Before     map[string]any `json:"before,omitempty" firestore:"before,omitempty"`
	After      map[string]any `json:"after,omitempty" firestore:"after,omitempty"`
	Meta       map[string]any `json:"meta,omitempty" firestore:"meta,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" firestore:"createdAt"`
}

// FromAudit строит документ аудита.
func FromAudit(e domain.AuditEntry) AuditDoc {
	return AuditDoc{
		ActorUID:   e.Actor.UID,
		ActorEmail: e.Actor.Email,
		Action:     e.Action,
		TargetType: string(e.Target.Type),
		TargetID:   e.Target.ID,
		PublicCode: e.Target.PublicCode,
		Before:     e.Before,
		After:      e.After,
		Meta:       e.Meta,
		CreatedAt:  e.CreatedAt,
	}
}

type StockLogDoc struct {
	ProductID string    `json:"productId" firestore:"productId"`
	VariantID string    `json:"variantId" firestore:"variantId"`
	Delta     int       `json:"delta" firestore:"delta"`
	Reason    string    `json:"reason" firestore:"reason"`
	OrderID   string    `json:"orderId,omitempty" firestore:"orderId,omitempty"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// FromStockLog строит документ движения остатка.
func FromStockLog(e domain.StockLogEntry) StockLogDoc {
	return StockLogDoc{
		ProductID: e.ProductID,
		VariantID: e.VariantID,
		Delta:     e.Delta,
		Reason:    string(e.Reason),
		OrderID:   e.OrderID,
		CreatedAt: e.CreatedAt,
	}
}

// PaymentOperationDoc хранится в paymentOperations/{operationCode}.
type PaymentOperationDoc struct {
	OrderID         string    `json:"orderId" firestore:"orderId"`
	OrderPublicCode string    `json:"orderPublicCode" firestore:"orderPublicCode"`
	CreatedAt       time.Time `json:"createdAt" firestore:"createdAt"`
}

type OutboxDoc struct {
	AggregateType string    `json:"aggregateType" firestore:"aggregateType"`
	AggregateID   string    `json:"aggregateId" firestore:"aggregateId"`
	EventType     string    `json:"eventType" firestore:"eventType"`
	Payload       []byte    `json:"payload" firestore:"payload"`
	Status        string    `json:"status" firestore:"status"`
	Attempts      int       `json:"attempts" firestore:"attempts"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Статусы записей outbox.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// Message восстанавливает сообщение outbox.
func (d OutboxDoc) Message(id string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       d.Payload,
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

type SettingsDoc struct {
	StoreName          string    `json:"storeName" firestore:"storeName"`
	PublicContactEmail string    `json:"publicContactEmail,omitempty" firestore:"publicContactEmail,omitempty"`
	PublicWhatsapp     string    `json:"publicWhatsapp,omitempty" firestore:"publicWhatsapp,omitempty"`
	Instagram          string    `json:"instagram,omitempty" firestore:"instagram,omitempty"`
	TikTok             string    `json:"tiktok,omitempty" firestore:"tiktok,omitempty"`
	Facebook           string    `json:"facebook,omitempty" firestore:"facebook,omitempty"`
	WhatsApp           string    `json:"whatsapp,omitempty" firestore:"whatsapp,omitempty"`
	YapeName           string    `json:"yapeName,omitempty" firestore:"yapeName,omitempty"`
	YapeNumber         string    `json:"yapeNumber,omitempty" firestore:"yapeNumber,omitempty"`
	PlinName           string    `json:"plinName,omitempty" firestore:"plinName,omitempty"`
	PlinNumber         string    `json:"plinNumber,omitempty" firestore:"plinNumber,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// FromSettings строит плоский документ настроек.
func FromSettings(s domain.StoreSettings) SettingsDoc {
	return SettingsDoc{
		StoreName:          s.StoreName,
		PublicContactEmail: s.PublicContactEmail,
		PublicWhatsapp:     s.PublicWhatsapp,
		Instagram:          s.SocialLinks.Instagram,
		TikTok:             s.SocialLinks.TikTok,
		Facebook:           s.SocialLinks.Facebook,
		WhatsApp:           s.SocialLinks.WhatsApp,
		YapeName:           s.PaymentInstructions.YapeName,
		YapeNumber:         s.PaymentInstructions.YapeNumber,
		PlinName:           s.PaymentInstructions.PlinName,
		PlinNumber:         s.PaymentInstructions.PlinNumber,
		UpdatedAt:          s.UpdatedAt,
	}
}

// Settings восстанавливает настройки магазина.
func (d SettingsDoc) Settings() domain.StoreSettings {
	return domain.StoreSettings{
		StoreName:          d.StoreName,
		PublicContactEmail: d.PublicContactEmail,
		PublicWhatsapp:     d.PublicWhatsapp,
		SocialLinks: domain.SocialLinks{
			Instagram: d.Instagram,
			TikTok:    d.TikTok,
			Facebook:  d.Facebook,
			WhatsApp:  d.WhatsApp,
		},
		PaymentInstructions: domain.PaymentInstructions{
			YapeName:   d.YapeName,
			YapeNumber: d.YapeNumber,
			PlinName:   d.PlinName,
			PlinNumber: d.PlinNumber,
		},
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type CounterDoc struct {
	Value int64 `json:"value" firestore:"value"`
}
