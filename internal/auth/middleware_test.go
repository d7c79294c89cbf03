package auth

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

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseToken(t *testing.T) {
	a := NewAuthenticator("secret")

	tok, err := a.GenerateToken("user-1", time.Minute)
	require.NoError(t, err)

	id, err := a.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	id, err = a.ParseToken("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestParseTokenClaims(t *testing.T) {
	a := NewAuthenticator("secret")
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Minute).Unix()

	id, err := a.ParseToken(sign(jwt.MapClaims{"user_id": float64(42), "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	id, err = a.ParseToken(sign(jwt.MapClaims{"sub": "u-sub", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, "u-sub", id)

	_, err = a.ParseToken(sign(jwt.MapClaims{"exp": exp}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejects(t *testing.T) {
	a := NewAuthenticator("secret")

	_, err := a.ParseToken("")
	assert.ErrorIs(t, err, ErrNoToken)

	expired, err := a.GenerateToken("u1", -time.Minute)
	require.NoError(t, err)
	_, err = a.ParseToken(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	foreign, err := NewAuthenticator("other").GenerateToken("u1", time.Minute)
	require.NoError(t, err)
	_, err = a.ParseToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/", mw, func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func serve(r http.Handler, target, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	a := NewAuthenticator("secret")
	tok, _ := a.GenerateToken("u1", time.Minute)
	r := newRouter(a.Middleware())

	w := serve(r, "/", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "NO_AUTH_HEADER")

	w = serve(r, "/", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")

	w = serve(r, "/?token="+tok, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "query tokens are only for streams")

	w = serve(r, "/", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestStreamMiddlewareAcceptsQueryToken(t *testing.T) {
	a := NewAuthenticator("secret")
	tok, _ := a.GenerateToken("u1", time.Minute)

	w := serve(newRouter(a.StreamMiddleware()), "/?token="+tok, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestOptionalMiddleware(t *testing.T) {
	a := NewAuthenticator("secret")
	tok, _ := a.GenerateToken("u1", time.Minute)
	r := newRouter(a.OptionalMiddleware())

	w := serve(r, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = serve(r, "/", "Bearer "+tok)
	assert.Equal(t, "u1", w.Body.String())
}
