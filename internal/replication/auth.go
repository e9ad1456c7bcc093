package replication

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenExpiry   = 2 * time.Hour
	tokenSubject  = "observer"
	secretLength  = 32
	minSecretSize = 16
)

var (
	ErrInvalidToken = errors.New("invalid observer token")
	ErrWeakSecret   = errors.New("observer token secret too short")
)

// Auth issues and checks observer tokens. A token grants read access to the
// replication feed of exactly one match.
type Auth struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewAuth creates an Auth signing with secret. An empty secret is replaced by
// a random one, which invalidates tokens across restarts.
func NewAuth(secret []byte) (*Auth, error) {
	if len(secret) == 0 {
		secret = make([]byte, secretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	if len(secret) < minSecretSize {
		return nil, ErrWeakSecret
	}
	return &Auth{secret: secret, expiry: tokenExpiry, now: time.Now}, nil
}

// Issue returns a signed token for observing match
func (a *Auth) Issue(match string) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   tokenSubject,
		Audience:  jwt.ClaimStrings{match},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign observer token: %w", err)
	}
	return signed, nil
}

// Validate checks a token and returns the match it grants access to
func (a *Auth) Validate(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithSubject(tokenSubject))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || len(claims.Audience) != 1 {
		return "", ErrInvalidToken
	}
	return claims.Audience[0], nil
}
