package middleware

import "github.com/labstack/echo/v4"

// Username returns the authenticated username stored by JWTAuth, or "" when
// the request is anonymous.
func Username(c echo.Context) string {
	if v, ok := c.Get(UsernameKey).(string); ok {
		return v
	}
	return ""
}
