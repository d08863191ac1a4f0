package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TrackingTokenBytes задаёт энтропию токена отслеживания заказа.
const TrackingTokenBytes = 18

// RandomTokens генерирует токены из crypto/rand в base64url без паддинга.
type RandomTokens struct{}

// Token возвращает nBytes случайных байт в base64url.
func (RandomTokens) Token(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

var _ TokenGenerator = RandomTokens{}
