package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is the bearer credential issued by the backend. The claims are
// decoded without verification and used for display only.
type AccessToken struct {
	Value     string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ParseAccessToken wraps a raw token, decoding JWT claims when present.
// Opaque tokens are accepted as-is.
func ParseAccessToken(raw string) AccessToken {
	token := AccessToken{Value: raw}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return token
	}
	if sub, err := claims.GetSubject(); err == nil {
		token.Subject = sub
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		token.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		token.ExpiresAt = exp.Time
	}
	return token
}

// Expired reports whether the token carries an expiry that has passed.
func (t AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
