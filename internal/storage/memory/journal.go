package memory

import "github.com/vladislavdragonenkov/storefront/internal/domain"

// StockLogs возвращает копию журнала остатков.
func (s *Store) StockLogs() []domain.StockLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StockLogEntry(nil), s.stockLogs...)
}

// AuditEntries возвращает копию журнала аудита.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.audit...)
}

// PaymentOperations возвращает число привязанных номеров операций.
func (s *Store) PaymentOperations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paymentOps)
}
