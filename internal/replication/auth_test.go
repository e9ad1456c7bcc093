package replication

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	a, err := NewAuth(nil)
	require.NoError(t, err)

	token, err := a.Issue("match-1")
	require.NoError(t, err)
	match, err := a.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "match-1", match)

	other, err := NewAuth([]byte("another-secret-of-enough-length"))
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpires(t *testing.T) {
	a, err := NewAuth([]byte("0123456789abcdef"))
	require.NoError(t, err)
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }
	token, err := a.Issue("m")
	require.NoError(t, err)

	a.now = func() time.Time { return issued.Add(tokenExpiry + time.Minute) }
	_, err = a.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	a, err := NewAuth([]byte("0123456789abcdef"))
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   tokenSubject,
		Audience:  jwt.ClaimStrings{"m"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "player",
		Audience: jwt.ClaimStrings{"m"},
	})
	raw, err = wrongSubject.SignedString(a.secret)
	require.NoError(t, err)
	_, err = a.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestWeakSecret(t *testing.T) {
	_, err := NewAuth([]byte("short"))
	assert.ErrorIs(t, err, ErrWeakSecret)
}
