package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit sheds requests above rps with a shared token bucket. rps <= 0
// disables it.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			fail(c, http.StatusTooManyRequests, ErrorBody{Code: "RATE_LIMITED", Message: "too many requests"})
			return
		}
		c.Next()
	}
}
