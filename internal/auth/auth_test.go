package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func testVerifier(opts ...Option) *Verifier {
	base := []Option{WithClock(domain.ClockFunc(func() time.Time { return testNow }))}
	return NewVerifier([]byte("test-secret"), append(base, opts...)...)
}

func claimsFor(email string, admin bool, authAge time.Duration) Claims {
	return Claims{
		Email:    email,
		Admin:    admin,
		AuthTime: testNow.Add(-authAge).Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "uid-1",
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
}

func TestVerify(t *testing.T) {
	v := testVerifier(WithAllowlist([]string{" Owner@Example.com "}))

	tests := []struct {
		name    string
		claims  Claims
		wantErr error
	}{
		{"admin claim", claimsFor("staff@example.com", true, time.Hour), nil},
		{"allowlisted email", claimsFor("owner@example.com", false, time.Hour), nil},
		{"not admin", claimsFor("buyer@example.com", false, time.Hour), domain.ErrNotAdmin},
		{"auth too old", claimsFor("staff@example.com", true, 8*time.Hour+time.Second), domain.ErrAuthTooOld},
		{"auth exactly eight hours", claimsFor("staff@example.com", true, 8*time.Hour), nil},
		{"missing auth time", func() Claims {
			c := claimsFor("staff@example.com", true, 0)
			c.AuthTime = 0
			return c
		}(), domain.ErrAuthTooOld},
		{"expired", func() Claims {
			c := claimsFor("staff@example.com", true, time.Hour)
			c.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Minute))
			return c
		}(), domain.ErrUnauthenticated},
		{"no subject", func() Claims {
			c := claimsFor("staff@example.com", true, time.Hour)
			c.Subject = ""
			return c
		}(), domain.ErrUnauthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token, err := v.Sign(tc.claims)
			require.NoError(t, err)

			id, err := v.Verify(token)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "uid-1", id.UID)
		})
	}
}

func TestVerify_RejectsForeignSignatureAndAlgorithm(t *testing.T) {
	v := testVerifier()

	other := NewVerifier([]byte("other-secret"))
	token, err := other.Sign(claimsFor("staff@example.com", true, time.Hour))
	require.NoError(t, err)
	_, err = v.Verify(token)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claimsFor("staff@example.com", true, time.Hour)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(unsigned)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = v.Verify("")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAdminActor(t *testing.T) {
	v := testVerifier()
	token, err := v.Sign(claimsFor("staff@example.com", true, time.Minute))
	require.NoError(t, err)

	actor, err := v.AdminActor(token, "198.51.100.1", "curl/8")
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin)
	assert.Equal(t, domain.Actor{UID: "uid-1", Email: "staff@example.com"}, actor.Actor)
	assert.Equal(t, "198.51.100.1", actor.IP)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	token, ok = BearerToken("bearer   xyz")
	assert.True(t, ok)
	assert.Equal(t, "xyz", token)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}

func TestParseAllowlistAndCronSecret(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, ParseAllowlist(" A@x.com, ,b@Y.com "))
	assert.Nil(t, ParseAllowlist(""))

	assert.True(t, CronSecretMatches("s3cret", "s3cret"))
	assert.False(t, CronSecretMatches("s3cret", "s3cre"))
	assert.False(t, CronSecretMatches("", ""))
}
