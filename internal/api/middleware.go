// Package api is the REST surface of spec §6.1, built on gin-gonic/gin.
package api

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiters is a per-client-IP token bucket registry (spec §5 "per-client-IP
// token buckets with limits per route").
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newIPLimiters(perMinute int) *ipLimiters {
	return &ipLimiters{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
		l.limiters[ip] = lim
	}
	return lim.Allow()
}

// rateLimit builds gin middleware enforcing a per-route, per-IP limit
// (spec §6.1's per-route rate limit column; exceedance returns
// ErrorKind.RateLimited).
func rateLimit(perMinute int) gin.HandlerFunc {
	limiters := newIPLimiters(perMinute)
	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			writeError(c, http.StatusTooManyRequests, "RateLimited", "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// adminAuth requires header X-Auth-Token to match the configured admin
// token via a constant-time comparison (spec §9 resolution of the admin
// auth Open Question: authentication token comparison itself is out of
// scope per §1, but the comparison mechanics live here).
func adminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := c.GetHeader("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			writeError(c, http.StatusUnauthorized, "InvalidInput", "missing or invalid admin token")
			c.Abort()
			return
		}
		c.Next()
	}
}
