package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireValidIDs ensures each named path param is a plausible identifier:
// 1..128 characters from [A-Za-z0-9_.-]. Property ids come from the
// property-management side and channel ids are UUIDs; both fit.
func RequireValidIDs(params ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range params {
			if !validID(c.Param(p)) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid " + p})
				return
			}
		}
		c.Next()
	}
}

func validID(id string) bool {
	if l := len(id); l < 1 || l > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}
