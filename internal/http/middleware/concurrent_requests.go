package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LimitConcurrentRequests returns a Gin middleware that limits the number
// of concurrent HTTP requests being processed. If the number of active
// requests exceeds `maxConcurrent`, new requests are rejected with HTTP 429.
//
// Sync endpoints hold a request open for the whole fan-out, so this bounds
// how many syncs the API can start at once.
//
// Example usage:
//
//	router.Use(LimitConcurrentRequests(100)) // allow up to 100 concurrent requests
func LimitConcurrentRequests(maxConcurrent int) gin.HandlerFunc {
	if maxConcurrent <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	semaphore := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			c.Next()
		default:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "too many concurrent requests",
			})
		}
	}
}
