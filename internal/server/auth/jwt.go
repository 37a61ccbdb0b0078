// Package auth mints and verifies session tokens: HS256 JWTs carrying the
// account identity, with logout handled by a jti denylist.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload: standard registered claims plus the account
// identity and role.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
}

// Session is a freshly minted token.
type Session struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// Issuer signs and verifies session tokens with a fixed lifetime.
type Issuer struct {
	secret   []byte
	validity time.Duration
	denylist Denylist
	now      func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the issuer clock.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret []byte, validity time.Duration, denylist Denylist, opts ...IssuerOption) *Issuer {
	i := &Issuer{secret: secret, validity: validity, denylist: denylist, now: time.Now}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Issue mints a token for accountID. Nothing is stored server-side.
func (i *Issuer) Issue(accountID, role string) (Session, error) {
	now := i.now()
	exp := now.Add(i.validity)
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: accountID,
		Role:   role,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}

	return Session{Token: signed, TokenID: jti, ExpiresAt: exp}, nil
}

// Verify checks signature, expiry and revocation. Failures are
// common.ErrInvalidToken, common.ErrTokenExpired or common.ErrTokenRevoked,
// all of which match common.ErrorUnauthorized.
func (i *Issuer) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if claims.UserID == "" || claims.ID == "" {
		return nil, common.ErrInvalidToken
	}

	revoked, err := i.denylist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: denylist: %v", common.ErrDependencyFailure, err)
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}

	return claims, nil
}

// Revoke denylists the token until it would have expired anyway.
func (i *Issuer) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(i.now())
	if ttl <= 0 {
		return nil
	}
	if err := i.denylist.Add(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("%w: denylist: %v", common.ErrDependencyFailure, err)
	}
	return nil
}
