package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, ttl time.Duration) *Issuer {
	t.Helper()
	issuer, err := NewIssuer("test-secret", ttl)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestGenerateToken(t *testing.T) {
	issuer := newTestIssuer(t, 0)

	token, err := issuer.GenerateToken("calibre")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestValidateToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	token, err := issuer.GenerateToken("calibre")
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "calibre", claims.Client)
	assert.Equal(t, "aladinkr", claims.Issuer)
}

func TestValidateToken_Invalid(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	_, err := issuer.ValidateToken("invalid-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := newTestIssuer(t, time.Hour).GenerateToken("calibre")
	require.NoError(t, err)

	other, err := NewIssuer("other-secret", time.Hour)
	require.NoError(t, err)
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Expired(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	issuer.ttl = -time.Hour

	token, err := issuer.GenerateToken("calibre")
	require.NoError(t, err)

	_, err = issuer.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRefreshToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	token, err := issuer.GenerateToken("calibre")
	require.NoError(t, err)

	refreshed, err := issuer.RefreshToken(token)
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, "calibre", claims.Client)
}

func setupRouter(issuer *Issuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(issuer))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetClient(c))
	})
	return r
}

func TestMiddleware(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	token, err := issuer.GenerateToken("calibre")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + token, http.StatusOK, "calibre"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}

	router := setupRouter(issuer)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	router := setupRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
