package domain

import "github.com/shopspring/decimal"

// Currency магазина: перуанский соль.
const Currency = "PEN"

// MinorToDecimal переводит céntimos в сумму в основных единицах.
func MinorToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// DecimalToMinor округляет сумму до 2 знаков и переводит в céntimos.
func DecimalToMinor(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// FormatMinor печатает сумму с двумя знаками после запятой.
func FormatMinor(minor int64) string {
	return MinorToDecimal(minor).StringFixed(2)
}

// PercentOfMinor возвращает percent% от суммы, округлённые до 2 знаков в основных единицах.
func PercentOfMinor(minor int64, percent int64) int64 {
	share := MinorToDecimal(minor).Mul(decimal.New(percent, -2))
	return DecimalToMinor(share)
}
