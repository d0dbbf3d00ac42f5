package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/utils"
)

// PaymentSecurityHeaders adds security headers for payment endpoints
func PaymentSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}

// PaymentRateLimiter -> 10 request per detik per IP
func PaymentRateLimiter() gin.HandlerFunc {
	rl := NewRateLimiter(10, time.Second)
	rl.message = "Please wait before making another payment request"
	return rl.RateLimit()
}

// LogPaymentRequest logs payment request details
func LogPaymentRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		utils.InfoLogger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"order_id":   c.Param("order_id"),
			"payment_id": c.Param("payment_id"),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Info("payment request")
	}
}
