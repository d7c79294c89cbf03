package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"draw_queue/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userID"

var (
	ErrNoToken      = errors.New("auth: no access token")
	ErrInvalidToken = errors.New("auth: invalid access token")
	ErrTokenExpired = errors.New("auth: access token expired")
)

type Config struct {
	AccessSecret string        `mapstructure:"access_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// Authenticator validates HS256 access tokens issued by the account service. The user
// id travels in the user_id claim, falling back to sub.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// GenerateToken mints an access token for userID.
func (a *Authenticator) GenerateToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken returns the user id carried by raw. A "Bearer " prefix is ignored.
func (a *Authenticator) ParseToken(raw string) (string, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return "", ErrNoToken
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	switch id := claims["user_id"].(type) {
	case string:
		if id != "" {
			return id, nil
		}
	case float64:
		return strconv.FormatInt(int64(id), 10), nil
	}
	if sub, _ := claims.GetSubject(); sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("%w: no user id claim", ErrInvalidToken)
}

// Middleware проверяет валидность access токена из заголовка Authorization
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.authenticate(c, c.GetHeader("Authorization"))
	}
}

// StreamMiddleware дополнительно принимает токен из параметра token: браузерные
// EventSource и WebSocket не умеют ставить заголовки.
func (a *Authenticator) StreamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			raw = c.Query("token")
		}
		a.authenticate(c, raw)
	}
}

// OptionalMiddleware sets the user id when a valid token is present and lets anonymous
// requests through otherwise.
func (a *Authenticator) OptionalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := a.ParseToken(c.GetHeader("Authorization")); err == nil {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context, raw string) {
	userID, err := a.ParseToken(raw)
	if err != nil {
		Abort(c, err)
		return
	}
	c.Set(UserIDKey, userID)
	c.Next()
}

// Abort answers 401 with the error code matching err.
func Abort(c *gin.Context, err error) {
	body := response.ErrorResponse{
		Code:    "INVALID_TOKEN",
		Message: "invalid access token",
	}
	switch {
	case errors.Is(err, ErrNoToken):
		body = response.ErrorResponse{Code: "NO_AUTH_HEADER", Message: "authorization required"}
	case errors.Is(err, ErrTokenExpired):
		body = response.ErrorResponse{Code: "TOKEN_EXPIRED", Message: "access token expired"}
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, body)
}

// UserID returns the id stored by the middleware, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
