// Package middleware contains the HTTP middleware shared by the booking
// routes: identity extraction, role checks and rate limiting.
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID    = "user_id"
	ctxSessionID = "session_id"
	ctxRole      = "role"
)

// JWTAuth validates a Bearer access token issued by the identity
// service and stores its subject (user id), session id ("sid") and role
// claims in the request context.  The provided secret must match the one
// used when issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			uid, ok := claimUint(claims["sub"])
			if !ok || uid == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}

			c.Set(ctxUserID, uid)
			if sid, ok := claims["sid"].(string); ok {
				c.Set(ctxSessionID, sid)
			}
			if role, ok := claims["role"].(string); ok {
				c.Set(ctxRole, role)
			}
			return next(c)
		}
	}
}

// claimUint accepts the numeric forms a JSON claim may take.
func claimUint(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// UserID returns the authenticated user id, or 0.
func UserID(c echo.Context) uint64 {
	v, _ := c.Get(ctxUserID).(uint64)
	return v
}

// SessionID returns the caller's session id, or "".
func SessionID(c echo.Context) string {
	v, _ := c.Get(ctxSessionID).(string)
	return v
}

// Role returns the caller's role claim, or "".
func Role(c echo.Context) string {
	v, _ := c.Get(ctxRole).(string)
	return v
}
