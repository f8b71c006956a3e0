package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking_checkout/internal/backend"
	"parking_checkout/internal/service"
)

// tokenEcho reports the bearer token forwarded to backend calls.
type tokenEcho struct{ seen string }

func (e *tokenEcho) handler(c *gin.Context) {
	e.seen = backendToken(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user": c.GetString(UserIDKey)})
}

// backendToken recovers the forwarded token by round-tripping through a
// client pointed at a local server.
func backendToken(ctx context.Context) string {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := backend.NewClient(backend.Options{BaseURL: srv.URL}, zerolog.Nop())
	_, _ = client.Locations(ctx)
	return got
}

func setupRouter(secret string) (*gin.Engine, *tokenEcho) {
	gin.SetMode(gin.TestMode)
	echo := &tokenEcho{}
	mw := NewAuthMiddleware(service.NewAuthService(secret))
	r := gin.New()
	r.GET("/protected", mw.Authenticate(), echo.handler)
	return r, echo
}

func sign(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "driver@example.com",
		"role": "USER",
		"exp":  exp.Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthenticate_RejectsMissingOrMalformedHeader(t *testing.T) {
	r, _ := setupRouter("")

	for _, header := range []string{"", "Token abc", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set(AuthorizationHeaderKey, header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestAuthenticate_ForwardsTokenWithoutSecret(t *testing.T) {
	r, echo := setupRouter("")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(AuthorizationHeaderKey, "Bearer opaque-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer opaque-token", echo.seen)
}

func TestAuthenticate_ValidatesWithSecret(t *testing.T) {
	r, echo := setupRouter("s3cret")

	valid := sign(t, "s3cret", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(AuthorizationHeaderKey, "Bearer "+valid)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"driver@example.com"}`, rec.Body.String())
	assert.Equal(t, "Bearer "+valid, echo.seen)

	expired := sign(t, "s3cret", time.Now().Add(-time.Hour))
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(AuthorizationHeaderKey, "Bearer "+expired)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
