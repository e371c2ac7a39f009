package handler

import (
	"net/http"

	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/http/dto"
	"github.com/gin-gonic/gin"
)

// GetBookings handles GET /api/properties/{pid}/channels/{id}/bookings?from=YYYY-MM-DD&to=YYYY-MM-DD.
//
// Behavior:
//   - Without from/to the default horizon (today + 365 days) is used.
//   - A channel-side failure yields an empty list.
//
// Status Codes:
//   - 200 OK → JSON array of bookings
//   - 400 Bad Request → Malformed dates, or only one of from/to
//   - 404 Not Found
//   - 422 Unprocessable Entity → to is before from
//   - 501 Not Implemented → No connector for the channel type
//   - 500 Internal Server Error
func (h *Handler) GetBookings(c *gin.Context) {
	rng := property.DefaultRange(h.now())
	if from, to := c.Query("from"), c.Query("to"); from != "" || to != "" {
		r, err := dto.ParseDateRange(from, to)
		if err != nil {
			badRequest(c, err)
			return
		}
		rng = r
	}

	list, err := h.orch.GetBookings(c.Request.Context(), c.Param("pid"), c.Param("id"), rng)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// UpdateBooking handles PATCH /api/properties/{pid}/channels/{id}/bookings/{bid}.
//
// Behavior:
//   - Pushes status and/or notes to the channel; the outcome is recorded in history.
//   - A channel-side failure is still 200; see the result's success flag.
//
// Status Codes:
//   - 200 OK → JSON sync result
//   - 400 Bad Request → Invalid JSON or schema
//   - 404 Not Found
//   - 422 Unprocessable Entity → Neither status nor notes given
//   - 500 Internal Server Error
func (h *Handler) UpdateBooking(c *gin.Context) {
	var req dto.BookingUpdate
	if err := bind(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := req.ToUpdate()
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	res, err := h.orch.UpdateBooking(c.Request.Context(), c.Param("pid"), c.Param("id"), c.Param("bid"), u)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
