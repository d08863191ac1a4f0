package domain

import "time"

// OrderStatus описывает жизненный цикл заказа витрины.
type OrderStatus string

const (
	// Создан без оплаты, товар удерживается до ReservedUntil.
	OrderStatusScheduled OrderStatus = "SCHEDULED"
	// Ждёт ручной проверки оплаты администратором.
	OrderStatusPendingValidation OrderStatus = "PENDING_VALIDATION"
	// Клиент сообщил номер операции, оплата ещё не подтверждена.
	OrderStatusPaymentSent OrderStatus = "PAYMENT_SENT"
	// Оплата подтверждена.
	OrderStatusPaid OrderStatus = "PAID"
	// Передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// Получен клиентом.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// Отмена администратором.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// Отмена по истечении резерва.
	OrderStatusCancelledExpired OrderStatus = "CANCELLED_EXPIRED"
)

// ReservationTTL задаёт время удержания товара за неоплаченным заказом.
const ReservationTTL = 20 * time.Minute

type Customer struct {
	Name  string `json:"name" validate:"required,min=2,max=120"`
	Email string `json:"email" validate:"required,email,max=200"`
	Phone string `json:"phone" validate:"required,min=6,max=40"`
}

// VariantSnapshot фиксирует вариант товара на момент покупки.
type VariantSnapshot struct {
	ID    string
	Size  string
	Color string
}

// OrderItem хранит неизменяемый снимок позиции заказа.
type OrderItem struct {
	ProductID string
	Name      string
	ImageURL  string
	Variant   VariantSnapshot
	// Цена за единицу в céntimos на момент создания заказа.
	UnitPriceMinor int64
	Qty            int
}

// LineTotalMinor возвращает стоимость позиции.
func (i OrderItem) LineTotalMinor() int64 {
	return i.UnitPriceMinor * int64(i.Qty)
}

// Totals вычисляются один раз при создании заказа.
type Totals struct {
	SubtotalMinor int64
	DiscountMinor int64
	ShippingMinor int64
	TotalMinor    int64
}

// Payment хранит данные, присланные клиентом при сообщении об оплате.
type Payment struct {
	Method          PaymentMethod
	OperationCode   string
	ReceiptImageURL string
	SentAt          *time.Time
}

// Order агрегирует состояние заказа.
type Order struct {
	ID            string
	PublicCode    string
	TrackingToken string
	Status        OrderStatus
	Customer      Customer
	Shipping      Shipping
	Items         []OrderItem
	Totals        Totals
	CouponCode    string
	Payment       Payment
	ReservedUntil time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsReservationElapsed сообщает, истёк ли резерв к моменту now (строго раньше now).
func (o *Order) IsReservationElapsed(now time.Time) bool {
	return !o.ReservedUntil.IsZero() && o.ReservedUntil.Before(now)
}

// Clone возвращает копию заказа без общих срезов и указателей.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		copy(out.Items, o.Items)
	}
	if o.Payment.SentAt != nil {
		sentAt := *o.Payment.SentAt
		out.Payment.SentAt = &sentAt
	}
	return out
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.PublicCode == "" {
		errs = append(errs, ErrPublicCodeRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.Shipping == nil {
		errs = append(errs, ErrShippingRequired)
	}

	var subtotal int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		subtotal += item.LineTotalMinor()
	}
	if subtotal != o.Totals.SubtotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	afterDiscount := o.Totals.SubtotalMinor - o.Totals.DiscountMinor
	if afterDiscount < 0 {
		afterDiscount = 0
	}
	if afterDiscount+o.Totals.ShippingMinor != o.Totals.TotalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
