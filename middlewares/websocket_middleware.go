package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/food-checkout/utils"
)

// WebSocketAuthMiddleware -> browser tidak bisa mengirim header saat upgrade, token dibaca dari query
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil || claims.UserID == 0 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		// role di path harus sama dengan role di token
		if role := c.Param("role"); role != "" && role != claims.Role {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Set("role", claims.Role)
		c.Set("userID", claims.UserID)
		c.Next()
	}
}
