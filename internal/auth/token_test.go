package auth

import (
	"alumni_network/internal/models"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()

	tc, err := NewTokenCodec("test-secret", "alumni-network", time.Hour)
	require.NoError(t, err)

	return tc
}

func TestTokenRoundTrip(t *testing.T) {
	tc := newTestCodec(t)
	want := models.Principal{ID: 42, Email: "a@x.com", Role: models.RoleStudent}

	token, err := tc.Issue(want)
	require.NoError(t, err)

	got, err := tc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTokensAreDistinct(t *testing.T) {
	tc := newTestCodec(t)
	p := models.Principal{ID: 1, Email: "a@x.com", Role: models.RoleGraduate}

	first, err := tc.Issue(p)
	require.NoError(t, err)
	second, err := tc.Issue(p)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenExpiry(t *testing.T) {
	tc := newTestCodec(t)
	issuedAt := time.Now().Add(-2 * time.Hour)
	tc.now = func() time.Time { return issuedAt }

	token, err := tc.Issue(models.Principal{ID: 7, Email: "b@x.com", Role: models.RoleTeacher})
	require.NoError(t, err)

	_, err = tc.Verify(token)
	require.NoError(t, err, "valid at issuance time")

	tc.now = time.Now
	_, err = tc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenTamperedSignature(t *testing.T) {
	tc := newTestCodec(t)

	token, err := tc.Issue(models.Principal{ID: 3, Email: "c@x.com", Role: models.RoleStudent})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// swap the role inside the payload, keep the old signature
	forged, err := NewTokenCodec("test-secret", "alumni-network", time.Hour)
	require.NoError(t, err)
	adminToken, err := forged.Issue(models.Principal{ID: 3, Email: "c@x.com", Role: models.RoleAdmin})
	require.NoError(t, err)
	adminParts := strings.Split(adminToken, ".")

	tampered := parts[0] + "." + adminParts[1] + "." + parts[2]
	_, err = tc.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	tc := newTestCodec(t)
	other, err := NewTokenCodec("other-secret", "alumni-network", time.Hour)
	require.NoError(t, err)

	token, err := other.Issue(models.Principal{ID: 3, Email: "c@x.com", Role: models.RoleStudent})
	require.NoError(t, err)

	_, err = tc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	tc := newTestCodec(t)

	claims := &Claims{
		UserID: 5,
		Email:  "d@x.com",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "5",
			Issuer:    "alumni-network",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tc.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenMalformed(t *testing.T) {
	tc := newTestCodec(t)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := tc.Verify(token)
		assert.True(t, errors.Is(err, ErrInvalidToken), "token %q", token)
	}
}

func TestNewTokenCodecValidation(t *testing.T) {
	_, err := NewTokenCodec("", "issuer", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenCodec("secret", "issuer", 0)
	assert.Error(t, err)
}
