// Package livetoken issues and redeems short-lived, single-use tokens that
// authorize a live capture upload for a specific session. The token itself
// is a signed JWT; single use is enforced by a server-side store keyed on
// the token ID.
package livetoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"idverify/internal/verification/models"
)

// Redemption errors. Callers translate these to their own error taxonomy.
var (
	ErrInvalidToken = errors.New("live token is invalid")
	ErrTokenExpired = errors.New("live token has expired")
	ErrTokenUsed    = errors.New("live token has already been used")
	ErrWrongSession = errors.New("live token was issued for a different session")
)

// TokenStore tracks outstanding token IDs so each token redeems exactly once.
type TokenStore interface {
	// Save records a token ID with a time-to-live.
	Save(ctx context.Context, jti string, ttl time.Duration) error

	// Consume atomically removes a token ID, reporting whether it was
	// present. A second Consume of the same ID returns false.
	Consume(ctx context.Context, jti string) (bool, error)
}

// Claims are the JWT payload for a live-capture token.
type Claims struct {
	SessionID string `json:"sid"`
	Challenge string `json:"challenge"`
	jwt.RegisteredClaims
}

// Issuer creates and redeems live-capture tokens.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
	store      TokenStore
	now        func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer constructs a token issuer. The TTL bounds how long a client has
// to complete the live capture after requesting the token.
func NewIssuer(signingKey []byte, ttl time.Duration, store TokenStore, opts ...Option) *Issuer {
	i := &Issuer{
		signingKey: signingKey,
		ttl:        ttl,
		store:      store,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// IssuedToken is a signed token plus the metadata clients need to use it.
type IssuedToken struct {
	Token     string
	Challenge models.ChallengeType
	ExpiresAt time.Time
}

// Issue signs a token bound to the session and challenge and registers it
// for single use.
func (i *Issuer) Issue(ctx context.Context, sessionID string, challenge models.ChallengeType) (*IssuedToken, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	jti := uuid.New().String()

	claims := Claims{
		SessionID: sessionID,
		Challenge: string(challenge),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return nil, fmt.Errorf("sign live token: %w", err)
	}

	if err := i.store.Save(ctx, jti, i.ttl); err != nil {
		return nil, fmt.Errorf("register live token: %w", err)
	}

	return &IssuedToken{
		Token:     signed,
		Challenge: challenge,
		ExpiresAt: expiresAt,
	}, nil
}

// Redeem validates a token against the session and consumes it. The returned
// challenge is what the client was asked to perform.
func (i *Issuer) Redeem(ctx context.Context, tokenString, sessionID string) (models.ChallengeType, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.signingKey, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	if !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.SessionID != sessionID {
		return "", ErrWrongSession
	}

	ok, err := i.store.Consume(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("consume live token: %w", err)
	}
	if !ok {
		return "", ErrTokenUsed
	}
	return models.ChallengeType(claims.Challenge), nil
}
