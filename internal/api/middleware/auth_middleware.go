package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parking_checkout/internal/backend"
	"parking_checkout/internal/service"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	UserIDKey               = "userID"
	UserRoleKey             = "userRole"
)

type AuthMiddleware struct {
	authService *service.AuthService
}

func NewAuthMiddleware(authService *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate requires a bearer token and forwards it to backend calls made
// for this request. The token is verified locally only when a JWT secret is
// configured; otherwise the backend is the one to reject it.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeaderKey)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) < 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}
		accessToken := fields[1]

		if m.authService.Enabled() {
			_, claims, err := m.authService.ValidateToken(accessToken)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "details": err.Error()})
				return
			}
			c.Set(UserIDKey, service.Subject(claims))
			if role, ok := claims["role"].(string); ok {
				c.Set(UserRoleKey, role)
			}
		}

		c.Request = c.Request.WithContext(backend.WithToken(c.Request.Context(), accessToken))
		c.Next()
	}
}
