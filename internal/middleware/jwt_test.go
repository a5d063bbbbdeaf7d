package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func serve(header string) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, Username(c))
	}, JWTAuth(secret))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthSetsUsername(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"sub": "bob",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	rec := serve("Bearer " + tok)
	if rec.Code != http.StatusOK || rec.Body.String() != "bob" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestJWTAuthRejects(t *testing.T) {
	cases := map[string]string{
		"missing":   "",
		"no bearer": "Token abc",
		"garbage":   "Bearer not-a-jwt",
		"wrong key": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "bob"}),
		"expired": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
			"sub": "bob", "exp": time.Now().Add(-time.Minute).Unix(),
		}),
		"no subject": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"role": "x"}),
		"hs512":      "Bearer " + sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"sub": "bob"}),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			if rec := serve(header); rec.Code != http.StatusUnauthorized {
				t.Fatalf("code = %d, want 401", rec.Code)
			}
		})
	}
}
