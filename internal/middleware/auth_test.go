package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestRequireRoleSetsCallerFromCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := NewAuth([]byte("s3cret"), false)

	var userID, role, store string
	router := gin.New()
	router.GET("/x", auth.RequireRole("manager"), func(c *gin.Context) {
		userID, role, store = c.GetString(ContextUserID), c.GetString(ContextRole), c.GetString(ContextStoreID)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: signed(t, auth.Secret(), jwt.MapClaims{
		"sub": "u1", "role": "manager", "store": "s1", "exp": time.Now().Add(time.Hour).Unix(),
	})})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "manager", role)
	assert.Equal(t, "s1", store)
}

func TestRequireRoleRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := NewAuth([]byte("s3cret"), false)
	router := gin.New()
	router.GET("/x", auth.RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Token abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signed(t, []byte("other"), jwt.MapClaims{"role": "admin"}), http.StatusUnauthorized},
		{"wrong role", "Bearer " + signed(t, auth.Secret(), jwt.MapClaims{"role": "staff"}), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
