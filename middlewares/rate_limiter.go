package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter membatasi request per IP dengan token bucket.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	visitors  map[string]*visitor
	nextSweep time.Time
	mu        sync.Mutex
	message   string
}

// NewRateLimiter -> requests per interval, dengan burst sebesar requests
func NewRateLimiter(requests int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Every(interval / time.Duration(requests)),
		burst:    requests,
		idleTTL:  10 * time.Minute,
		visitors: make(map[string]*visitor),
		message:  "Too many requests",
	}
}

// NewStrictRateLimiter -> lebih ketat untuk endpoint login/register, 5 request per menit per IP
func NewStrictRateLimiter() gin.HandlerFunc {
	rl := NewRateLimiter(5, time.Minute)
	rl.message = "Terlalu banyak percobaan, silakan tunggu beberapa saat"
	return rl.RateLimit()
}

func (rl *RateLimiter) get(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// sapu visitor idle paling sering sekali per idleTTL
	if !now.Before(rl.nextSweep) {
		for key, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.idleTTL {
				delete(rl.visitors, key)
			}
		}
		rl.nextSweep = now.Add(rl.idleTTL)
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.get(c.ClientIP(), time.Now()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": rl.message})
			c.Abort()
			return
		}
		c.Next()
	}
}
