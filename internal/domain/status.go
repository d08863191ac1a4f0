package domain

// Терминальные статусы отображаются в пустое множество.
var allowedNext = map[OrderStatus][]OrderStatus{
	OrderStatusPendingValidation: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusScheduled:         {OrderStatusPaymentSent, OrderStatusCancelled},
	OrderStatusPaymentSent:       {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:              {OrderStatusShipped},
	OrderStatusShipped:           {OrderStatusDelivered},
	OrderStatusDelivered:         {},
	OrderStatusCancelled:         {},
	OrderStatusCancelledExpired:  {},
}

// ExpirableStatuses перечисляет статусы, в которых заказ отменяется по истечении резерва.
// Порядок совпадает с порядком обхода при очистке просроченных резервов.
var ExpirableStatuses = []OrderStatus{
	OrderStatusPendingValidation,
	OrderStatusScheduled,
	OrderStatusPaymentSent,
}

var AdminSettableStatuses = []OrderStatus{
	OrderStatusPendingValidation,
	OrderStatusScheduled,
	OrderStatusPaymentSent,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// AllOrderStatuses перечисляет все известные статусы.
var AllOrderStatuses = []OrderStatus{
	OrderStatusScheduled,
	OrderStatusPendingValidation,
	OrderStatusPaymentSent,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusCancelledExpired,
}

// Valid сообщает, является ли статус известным.
func (s OrderStatus) Valid() bool {
	_, ok := allowedNext[s]
	return ok
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusCancelledExpired:
		return true
	default:
		return false
	}
}

// IsExpirable сообщает, может ли заказ в этом статусе быть отменён по таймауту.
func (s OrderStatus) IsExpirable() bool {
	for _, st := range ExpirableStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// IsPaidOrBeyond сообщает, что оплата подтверждена и отмена возможна только через возврат.
func (s OrderStatus) IsPaidOrBeyond() bool {
	switch s {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// IsAdminSettable сообщает, может ли администратор запросить этот статус.
func (s OrderStatus) IsAdminSettable() bool {
	for _, st := range AdminSettableStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// AllowedNext возвращает копию множества статусов, достижимых из from за один шаг.
func AllowedNext(from OrderStatus) []OrderStatus {
	next := allowedNext[from]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// IsAllowedTransition сообщает, разрешён ли переход from -> to.
// Оставаться в текущем статусе разрешено всегда.
func IsAllowedTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, s := range allowedNext[from] {
		if s == to {
			return true
		}
	}
	return false
}
