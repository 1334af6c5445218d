package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/domain"
	"github.com/boddenberg/chimu-org-go/internal/handler"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims handler.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestJWTAuthMiddleware(t *testing.T) {
	api := newTestAPI(t, handler.Options{JWTSecret: testSecret})
	valid := signToken(t, testSecret, handler.Claims{
		ID: "user-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	expired := signToken(t, testSecret, handler.Claims{
		ID: "user-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", handler.Claims{ID: "x"}), http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			rec := api.do(http.MethodGet, "/api/customer", nil, headers...)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	// Operational endpoints stay open.
	rec := api.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthMiddleware_StampsLogAuthor(t *testing.T) {
	api := newTestAPI(t, handler.Options{JWTSecret: testSecret})
	tok := signToken(t, testSecret, handler.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-7"},
	})

	rec := api.do(http.MethodPost, "/api/customer", map[string]any{
		"email":    "a@x.com",
		"logEntry": map[string]any{"summary": "intro call"},
	}, "Authorization", "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	c := decode[domain.Customer](t, rec)
	require.Len(t, c.LogHistory, 1)
	require.Equal(t, "sub-7", c.LogHistory[0].AuthorID)
	require.Equal(t, "a@x.com", c.LogHistory[0].Email)
}
