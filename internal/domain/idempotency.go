package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// IdempotencyRecord хранит результат создания заказа по ключу клиента.
// Повторный запрос с тем же ключом и адресом получает этот результат без новых побочных эффектов.
type IdempotencyRecord struct {
	ID            string
	OrderID       string
	PublicCode    string
	TrackingToken string
	ReservedUntil time.Time
	Totals        Totals
	IP            string
	CreatedAt     time.Time
}

// IdempotencyDocID строит идентификатор записи: первые 32 hex-символа sha256(ip:key).
func IdempotencyDocID(ip, key string) string {
	sum := sha256.Sum256([]byte(ip + ":" + key))
	return hex.EncodeToString(sum[:])[:32]
}
