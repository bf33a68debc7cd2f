// Package utils issues identity tokens.  The production issuer is the
// identity service; these helpers mint compatible tokens for tests and
// operator tooling.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessToken is a signed JWT along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewSessionID returns a fresh browsing session id.
func NewSessionID() string {
	return uuid.NewString()
}

// NewAccessToken builds and signs an HS256 JWT carrying the user id
// (sub), the browsing session (sid) and the role.
func NewAccessToken(secret string, userID uint64, sessionID, role string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  userID,
		"sid":  sessionID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
