package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/edirooss/chansync/internal/http/dto"
	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Sync handles POST /api/properties/{pid}/sync/{type}.
//
// Behavior:
//   - type is one of inventory, rates, availability.
//   - Body is optional; see dto.SyncRequest.
//   - Per-channel failures are reported inside the results, not as HTTP errors.
//
// Status Codes:
//   - 200 OK → {results, succeeded, failed}
//   - 400 Bad Request → Unknown sync type, invalid JSON or schema
//   - 404 Not Found → Property not found
//   - 422 Unprocessable Entity → Property has no rooms, invalid date range
//   - 500 Internal Server Error
func (h *Handler) Sync(c *gin.Context) {
	typ, err := syncresult.ParseType(c.Param("type"))
	if err != nil {
		badRequest(c, err)
		return
	}

	var req dto.SyncRequest
	if err := bindOptional(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}
	rng, err := req.DateRange()
	if err != nil {
		badRequest(c, err)
		return
	}
	if rng != nil && typ != syncresult.Availability {
		badRequest(c, errors.New("start/end apply to availability syncs only"))
		return
	}

	results, err := h.orch.Sync(c.Request.Context(), typ, c.Param("pid"), req.ChannelIDs, rng)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.invalidateSummary()
	c.JSON(http.StatusOK, dto.NewSyncResponse(results))
}

// SyncStatus handles GET /api/properties/{pid}/sync/status.
//
// Status Codes:
//   - 200 OK → JSON object of status views keyed by channel id
//   - 500 Internal Server Error
func (h *Handler) SyncStatus(c *gin.Context) {
	st, err := h.orch.GetSyncStatus(c.Request.Context(), c.Param("pid"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// History handles GET /api/channels/{id}/history?limit=N (default 20, max 100).
//
// Status Codes:
//   - 200 OK → JSON array of results, newest first
//   - 400 Bad Request → Invalid limit
//   - 404 Not Found
//   - 500 Internal Server Error
func (h *Handler) History(c *gin.Context) {
	limit := int64(defaultHistoryLimit)
	if s := c.Query("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 1 || n > maxHistoryLimit {
			badRequest(c, errors.New("limit must be an integer in [1, 100]"))
			return
		}
		limit = n
	}
	list, err := h.orch.GetSyncHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
