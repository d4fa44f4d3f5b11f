package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/medicab/scheduler/internal/service"
	"github.com/medicab/scheduler/pkg/auth"
)

const callerKey = "caller"

// Authenticate validates the Bearer token and attaches the resolved
// service.Caller to the gin context.
func Authenticate(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be a bearer token"})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			status := http.StatusUnauthorized
			msg := "invalid token"
			if err == auth.ErrTokenExpired {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		c.Set(callerKey, service.Caller{
			UserID:    claims.UserID,
			Role:      claims.Role,
			PatientID: claims.PatientID,
			IP:        c.ClientIP(),
		})
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not in the allowed set.
// Must run after Authenticate.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		for _, role := range roles {
			if caller.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}

func CallerFrom(c *gin.Context) (service.Caller, bool) {
	v, exists := c.Get(callerKey)
	if !exists {
		return service.Caller{}, false
	}
	caller, ok := v.(service.Caller)
	return caller, ok
}
