// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v4"
)

// CookieName is the cookie checked when no Authorization header is sent.
const CookieName = "voting_token"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated caller. UserID is the token subject and is
// what votes are keyed on.
type Identity struct {
	UserID string
	Email  string
}

// Claims is the JWT payload: the standard claims plus the user's email.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SignToken mints an HS256 token for id valid for ttl from now. Production
// tokens come from the identity provider; this is used by tests and
// tooling that share the secret.
func SignToken(secret []byte, id Identity, ttl time.Duration, now time.Time) (string, error) {
	if id.UserID == "" {
		return "", errors.New("token subject required")
	}
	claims := Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// ParseToken verifies signature, algorithm and expiry and returns the
// identity carried in the token.
func ParseToken(secret []byte, token string) (Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, errors.Mark(errors.Wrap(err, "parse token"), ErrInvalidToken)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, errors.Wrap(ErrInvalidToken, "token has no subject")
	}
	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// TokenFromRequest returns the bearer token from the Authorization header,
// or the voting_token cookie when there is no header.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errors.Wrap(ErrInvalidToken, "malformed authorization header")
		}
		return strings.TrimSpace(token), nil
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", ErrMissingToken
}

// Authenticate extracts and verifies the caller's token.
func Authenticate(r *http.Request, secret []byte) (Identity, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return Identity{}, err
	}
	return ParseToken(secret, token)
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}
