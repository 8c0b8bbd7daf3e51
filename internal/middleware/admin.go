package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminAuth guards the admin routes with HTTP basic auth. An empty
// passwordHash disables them.
func AdminAuth(username, passwordHash string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if passwordHash == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access is disabled"})
			c.Abort()
			return
		}

		user, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="admin"`)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		valid, err := VerifyPassword(passwordHash, password)
		if err != nil {
			logger.Error("Admin password hash is unusable", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 || !valid {
			logger.Warn("Rejected admin credentials", zap.String("username", user), zap.String("ip", c.ClientIP()))
			c.Header("WWW-Authenticate", `Basic realm="admin"`)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			c.Abort()
			return
		}

		c.Set("admin", user)
		c.Next()
	}
}
