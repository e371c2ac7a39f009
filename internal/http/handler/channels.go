package handler

import (
	"fmt"
	"net/http"

	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/http/dto"
	"github.com/gin-gonic/gin"
)

// ListChannels handles GET /api/properties/{pid}/channels.
//
// Status Codes:
//   - 200 OK → JSON array of channels (credentials masked)
//   - 500 Internal Server Error
func (h *Handler) ListChannels(c *gin.Context) {
	chs, err := h.orch.ListChannels(c.Request.Context(), c.Param("pid"))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]*channel.Channel, len(chs))
	for i, ch := range chs {
		out[i] = ch.AsRedactedView()
	}
	c.Header("X-Total-Count", fmt.Sprint(len(out)))
	c.JSON(http.StatusOK, out)
}

// CreateChannel handles POST /api/properties/{pid}/channels.
//
// Behavior:
//   - Status defaults to inactive; sync status starts as pending.
//   - Credentials, when given, are checked against the connector's required keys.
//   - Responds with resource location in `Location` header.
//
// Status Codes:
//   - 201 Created → JSON of created channel
//   - 400 Bad Request → Invalid JSON or schema
//   - 422 Unprocessable Entity → Validation failed
//   - 500 Internal Server Error
func (h *Handler) CreateChannel(c *gin.Context) {
	var req dto.ChannelCreate
	if err := bind(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}

	pid := c.Param("pid")
	ch, err := h.orch.CreateChannel(c.Request.Context(), req.ToChannel(pid))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.invalidateSummary()

	c.Header("Location", fmt.Sprintf("/api/properties/%s/channels/%s", pid, ch.ID))
	c.JSON(http.StatusCreated, ch.AsRedactedView())
}

// DeleteChannel handles DELETE /api/properties/{pid}/channels/{id}.
//
// Status Codes:
//   - 204 No Content
//   - 404 Not Found → Channel not found for this property
//   - 409 Conflict → Channel has sync history
//   - 500 Internal Server Error
func (h *Handler) DeleteChannel(c *gin.Context) {
	found, err := h.orch.DeleteChannel(c.Request.Context(), c.Param("pid"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		channelNotFound(c)
		return
	}
	h.invalidateSummary()
	c.Status(http.StatusNoContent)
}

// UpdateCredentials handles PUT /api/properties/{pid}/channels/{id}/credentials.
//
// Status Codes:
//   - 204 No Content
//   - 400 Bad Request → Invalid JSON or schema
//   - 404 Not Found
//   - 422 Unprocessable Entity → Required credential keys missing
//   - 500 Internal Server Error
func (h *Handler) UpdateCredentials(c *gin.Context) {
	var req dto.CredentialsUpdate
	if err := bind(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}
	found, err := h.orch.UpdateChannelCredentials(c.Request.Context(), c.Param("pid"), c.Param("id"), req.Credentials)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		channelNotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateStatus handles PUT /api/properties/{pid}/channels/{id}/status.
//
// Status Codes:
//   - 204 No Content
//   - 400 Bad Request → Invalid JSON or schema
//   - 404 Not Found
//   - 422 Unprocessable Entity → Unknown status or invalid resulting channel
//   - 500 Internal Server Error
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req dto.StatusUpdate
	if err := bind(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}
	found, err := h.orch.UpdateChannelStatus(c.Request.Context(), c.Param("pid"), c.Param("id"), req.Status, req.Configuration)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		channelNotFound(c)
		return
	}
	h.invalidateSummary()
	c.Status(http.StatusNoContent)
}

// GetMappings handles GET /api/properties/{pid}/channels/{id}/mappings.
//
// Status Codes:
//   - 200 OK → JSON mappings
//   - 404 Not Found
//   - 500 Internal Server Error
func (h *Handler) GetMappings(c *gin.Context) {
	m, found, err := h.orch.GetChannelMappings(c.Request.Context(), c.Param("pid"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		channelNotFound(c)
		return
	}
	if m.Rooms == nil {
		m.Rooms = []channel.RoomMapping{}
	}
	if m.Rates == nil {
		m.Rates = []channel.RateMapping{}
	}
	c.JSON(http.StatusOK, m)
}

// UpdateMappings handles PUT /api/properties/{pid}/channels/{id}/mappings.
// Omitted lists are left unchanged.
//
// Status Codes:
//   - 204 No Content
//   - 400 Bad Request → Invalid JSON or schema
//   - 404 Not Found
//   - 422 Unprocessable Entity → Invalid mappings
//   - 500 Internal Server Error
func (h *Handler) UpdateMappings(c *gin.Context) {
	var req channel.MappingsUpdate
	if err := bind(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}
	found, err := h.orch.UpdateChannelMappings(c.Request.Context(), c.Param("pid"), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !found {
		channelNotFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

// TestConnection handles POST /api/channels/{id}/test.
//
// Behavior:
//   - Tests the given credentials, or the stored ones when the body is empty.
//   - A failed test is still 200; see the result's success flag.
//
// Status Codes:
//   - 200 OK → JSON connection test result
//   - 400 Bad Request → Invalid JSON or schema
//   - 404 Not Found
//   - 500 Internal Server Error
func (h *Handler) TestConnection(c *gin.Context) {
	var req dto.TestConnection
	if err := bindOptional(c.Request, &req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.orch.TestConnection(c.Request.Context(), c.Param("id"), req.Credentials)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
