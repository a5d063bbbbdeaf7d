package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// UsernameKey is the echo context key holding the authenticated username.
const UsernameKey = "username"

// JWTAuth returns an Echo middleware that validates an HS256 Bearer access
// token and stores its subject claim (the username) in the request context
// under UsernameKey.  Tokens are issued elsewhere; this middleware only
// verifies them with the shared secret.
func JWTAuth(secret string) echo.MiddlewareFunc {
	// The outer function runs once when the middleware is registered.
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// The returned handler is invoked for each incoming HTTP request.
		return func(c echo.Context) error {
			// A valid header is "Bearer " followed by the token.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			// Remove the "Bearer " prefix to obtain the raw token string.
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Reject anything not signed with HMAC so a token cannot pick
			// its own verification algorithm.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			// Parsing also checks exp/nbf when present.  Any failure is a 401.
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			// The subject claim carries the username.  Tokens without one
			// cannot identify a tenant or landlord.
			sub, err := tok.Claims.GetSubject()
			if err != nil || sub == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			// Store the username for handlers and call the next handler.
			c.Set(UsernameKey, sub)
			return next(c)
		}
	}
}
