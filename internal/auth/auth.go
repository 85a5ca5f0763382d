// Package auth decodes the access tokens issued by the node service.
//
// Tokens are read, never verified: the client has no key to verify them with,
// and the server is the only party that relies on the signature.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Errors
var (
	ErrEmptyToken = errors.New("access token is empty")
)

// UserIDClaim is the claim carrying the account's user id.
const UserIDClaim = "user_id"

// Claims holds the fields of an access token the client cares about.
type Claims struct {
	UserID    string    // Empty if the claim is absent
	ExpiresAt time.Time // Zero if the token carries no exp claim
	IssuedAt  time.Time // Zero if the token carries no iat claim
}

// Expired reports whether the token expired before now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseClaims decodes the payload of a JWT access token without verifying
// its signature.
func ParseClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	claims := &Claims{
		UserID: stringClaim(mc, UserIDClaim),
	}

	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	return claims, nil
}

// stringClaim returns a claim as a string. JSON numbers are formatted
// without a fractional part when they are whole.
func stringClaim(mc jwt.MapClaims, key string) string {
	switch v := mc[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
