// Package auth проверяет bearer-токены администраторов бэк-офиса.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultMaxAuthAge ограничивает возраст входа; после него нужна повторная аутентификация.
const DefaultMaxAuthAge = 8 * time.Hour

// Claims содержит полезную нагрузку токена администратора.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Admin    bool   `json:"admin,omitempty"`
	AuthTime int64  `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

type Identity struct {
	UID      string
	Email    string
	AuthTime time.Time
}

// Option настраивает Verifier.
type Option func(*Verifier)

// WithAllowlist задает email, которые считаются администраторами без claim admin.
func WithAllowlist(emails []string) Option {
	return func(v *Verifier) {
		for _, email := range emails {
			if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
				v.allowlist[email] = struct{}{}
			}
		}
	}
}

// WithMaxAuthAge задает допустимый возраст auth_time.
func WithMaxAuthAge(age time.Duration) Option {
	return func(v *Verifier) {
		if age > 0 {
			v.maxAuthAge = age
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(clock domain.Clock) Option {
	return func(v *Verifier) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// WithIssuer требует совпадения iss.
func WithIssuer(issuer string) Option {
	return func(v *Verifier) {
		v.issuer = issuer
	}
}

// Verifier проверяет HS256 токены и права администратора.
type Verifier struct {
	secret     []byte
	allowlist  map[string]struct{}
	maxAuthAge time.Duration
	clock      domain.Clock
	issuer     string
	parser     *jwt.Parser
}

// NewVerifier создает проверку токенов с общим секретом.
func NewVerifier(secret []byte, opts ...Option) *Verifier {
	v := &Verifier{
		secret:     secret,
		allowlist:  make(map[string]struct{}),
		maxAuthAge: DefaultMaxAuthAge,
		clock:      domain.SystemClock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify разбирает токен и проверяет подпись, срок действия, права и свежесть входа.
func (v *Verifier) Verify(raw string) (Identity, error) {
	if len(v.secret) == 0 {
		return Identity{}, fmt.Errorf("%w: verifier has no secret", domain.ErrUnauthenticated)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, domain.ErrUnauthenticated
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	now := v.clock.Now()
	if !claims.VerifyExpiresAt(now, true) {
		return Identity{}, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return Identity{}, fmt.Errorf("%w: unexpected issuer", domain.ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: subject is required", domain.ErrUnauthenticated)
	}

	if !v.isAdmin(claims) {
		return Identity{}, domain.ErrNotAdmin
	}

	authTime := time.Unix(claims.AuthTime, 0).UTC()
	if claims.AuthTime == 0 || now.Sub(authTime) > v.maxAuthAge {
		return Identity{}, domain.ErrAuthTooOld
	}

	return Identity{UID: claims.Subject, Email: claims.Email, AuthTime: authTime}, nil
}

func (v *Verifier) isAdmin(claims Claims) bool {
	if claims.Admin {
		return true
	}
	_, ok := v.allowlist[strings.ToLower(claims.Email)]
	return ok && claims.Email != ""
}

// AdminActor проверяет токен и строит контекст администратора.
func (v *Verifier) AdminActor(raw, ip, userAgent string) (domain.ActorContext, error) {
	id, err := v.Verify(raw)
	if err != nil {
		return domain.ActorContext{}, err
	}
	return domain.AdminActor(id.UID, id.Email, ip, userAgent), nil
}

// Sign выпускает токен тем же секретом; используется в тестах и утилитах.
func (v *Verifier) Sign(claims Claims) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("auth: verifier has no secret")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ParseAllowlist разбирает список email через запятую.
func ParseAllowlist(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CronSecretMatches сравнивает секрет планировщика за постоянное время.
// Пустой ожидаемый секрет запрещает вызов.
func CronSecretMatches(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
