package domain

import "strings"

const (
	// Лимиты корзины.
	MaxOrderLines = 50
	// MaxLineQty действует и после слияния дублей.
	MaxLineQty = 50

	// Единственный действующий купон, скидка 10%.
	ActiveCoupon          = "ODERA10"
	activeCouponPercent   = 10
	freeShippingFromMinor = 200_00
	flatShippingMinor     = 10_00
)

// OrderLine описывает запрошенную покупателем позицию корзины.
type OrderLine struct {
	ProductID string `json:"productId" validate:"required"`
	VariantID string `json:"variantId" validate:"required"`
	Qty       int    `json:"qty" validate:"min=1,max=50"`
}

// MergeLines объединяет позиции с одинаковой парой (товар, вариант), суммируя количество
// с ограничением MaxLineQty. Порядок первых вхождений сохраняется.
func MergeLines(lines []OrderLine) []OrderLine {
	type key struct{ product, variant string }

	index := make(map[key]int, len(lines))
	merged := make([]OrderLine, 0, len(lines))
	for _, line := range lines {
		k := key{line.ProductID, line.VariantID}
		if i, ok := index[k]; ok {
			merged[i].Qty = min(MaxLineQty, merged[i].Qty+line.Qty)
			continue
		}
		index[k] = len(merged)
		line.Qty = min(MaxLineQty, line.Qty)
		merged = append(merged, line)
	}
	return merged
}

// NormalizeCoupon приводит код купона к каноническому виду.
func NormalizeCoupon(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ApplyCoupon возвращает применённый код (пустой, если купон не распознан) и скидку.
func ApplyCoupon(code string, subtotalMinor int64) (string, int64) {
	normalized := NormalizeCoupon(code)
	if normalized != ActiveCoupon {
		return "", 0
	}
	return normalized, PercentOfMinor(subtotalMinor, activeCouponPercent)
}

// ShippingCostMinor: доставка бесплатна от 200.00 включительно, иначе 10.00.
func ShippingCostMinor(subtotalMinor int64) int64 {
	if subtotalMinor >= freeShippingFromMinor {
		return 0
	}
	return flatShippingMinor
}

// ComputeTotals считает итоги заказа по сумме позиций и купону.
func ComputeTotals(subtotalMinor int64, couponCode string) (Totals, string) {
	applied, discount := ApplyCoupon(couponCode, subtotalMinor)
	shipping := ShippingCostMinor(subtotalMinor)
	afterDiscount := max(0, subtotalMinor-discount)

	return Totals{
		SubtotalMinor: subtotalMinor,
		DiscountMinor: discount,
		ShippingMinor: shipping,
		TotalMinor:    afterDiscount + shipping,
	}, applied
}
