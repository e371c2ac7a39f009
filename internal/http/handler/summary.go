package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Summary handles GET /api/channels/summary.
//
// Behavior:
//   - Serves every channel's status view from a short-lived snapshot.
//   - X-Cache tells whether the snapshot was reused (HIT) or rebuilt (MISS).
//
// Status Codes:
//   - 200 OK → {channels, counts}
//   - 404 Not Found → Summary disabled
//   - 500 Internal Server Error
func (h *Handler) Summary(c *gin.Context) {
	if h.summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "summary disabled"})
		return
	}
	res, err := h.summary.Get(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.CacheHit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Header("X-Summary-Generated-At", res.GeneratedAt.UTC().Format(time.RFC3339Nano))
	c.JSON(http.StatusOK, gin.H{"channels": res.Data, "counts": res.Counts})
}
