package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/edirooss/chansync/internal/connector"
	mw "github.com/edirooss/chansync/internal/http/middleware"
	"github.com/edirooss/chansync/internal/repo"
	"github.com/edirooss/chansync/internal/service"
	"github.com/edirooss/chansync/pkg/jsonx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the admin API over the sync orchestrator.
//
// Supported operations:
//   - GET    /api/ping
//   - GET    /api/properties/{pid}/channels                      → List a property's channels
//   - POST   /api/properties/{pid}/channels                      → Create a channel
//   - DELETE /api/properties/{pid}/channels/{id}                 → Remove a channel
//   - PUT    /api/properties/{pid}/channels/{id}/credentials     → Replace credentials
//   - PUT    /api/properties/{pid}/channels/{id}/status          → Set status (+ merge configuration)
//   - GET    /api/properties/{pid}/channels/{id}/mappings        → Get room/rate mappings
//   - PUT    /api/properties/{pid}/channels/{id}/mappings        → Replace room and/or rate mappings
//   - GET    /api/properties/{pid}/channels/{id}/bookings        → Read reservations from the channel
//   - PATCH  /api/properties/{pid}/channels/{id}/bookings/{bid}  → Push a reservation change
//   - POST   /api/properties/{pid}/sync/{type}                   → Run an inventory|rates|availability sync
//   - GET    /api/properties/{pid}/sync/status                   → Status of every channel of a property
//   - GET    /api/channels/summary                               → Status of every channel (cached)
//   - POST   /api/channels/{id}/test                             → Test credentials
//   - GET    /api/channels/{id}/history                          → Recent sync results
//
// Credentials are always masked in responses.
type Handler struct {
	log     *zap.Logger
	orch    *service.Orchestrator
	summary *service.SummaryService
	now     func() time.Time
}

// New constructs a Handler. summary may be nil, which disables the summary
// endpoint.
func New(log *zap.Logger, orch *service.Orchestrator, summary *service.SummaryService) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		log:     log.Named("handler"),
		orch:    orch,
		summary: summary,
		now:     time.Now,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	props := r.Group("/api/properties/:pid", mw.RequireValidIDs("pid"))
	{
		props.GET("/channels", h.ListChannels)
		props.POST("/channels", h.CreateChannel)

		one := props.Group("/channels/:id", mw.RequireValidIDs("id"))
		one.DELETE("", h.DeleteChannel)
		one.PUT("/credentials", h.UpdateCredentials)
		one.PUT("/status", h.UpdateStatus)
		one.GET("/mappings", h.GetMappings)
		one.PUT("/mappings", h.UpdateMappings)
		one.GET("/bookings", h.GetBookings)
		one.PATCH("/bookings/:bid", mw.RequireValidIDs("bid"), h.UpdateBooking)

		props.POST("/sync/:type", h.Sync)
		props.GET("/sync/status", h.SyncStatus)
	}

	chans := r.Group("/api/channels")
	{
		chans.GET("/summary", h.Summary)
		chans.POST("/:id/test", mw.RequireValidIDs("id"), h.TestConnection)
		chans.GET("/:id/history", mw.RequireValidIDs("id"), h.History)
	}
}

// fail records err on the context and answers with the status it maps to.
func (h *Handler) fail(c *gin.Context, err error) {
	c.Error(err)
	c.JSON(statusOf(err), gin.H{"message": err.Error()})
}

// badRequest answers 400 for body/query shape problems.
func badRequest(c *gin.Context, err error) {
	c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
}

func channelNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": repo.ErrChannelNotFound.Error()})
}

func statusOf(err error) int {
	var missing *connector.MissingCredentialsError
	switch {
	case errors.Is(err, service.ErrPropertyNotFound), errors.Is(err, service.ErrChannelNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNoRooms),
		errors.Is(err, service.ErrInvalidRange),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidChannel),
		errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, connector.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, repo.ErrHasHistory):
		return http.StatusConflict
	case errors.Is(err, service.ErrLocked):
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

// bind strictly decodes a required JSON body.
func bind[T any](r *http.Request, dst *T) error {
	return jsonx.ParseStrictJSONBody(r, dst)
}

// bindOptional is bind for bodies that may be omitted.
func bindOptional[T any](r *http.Request, dst *T) error {
	return jsonx.ParseOptionalJSONBody(r, dst)
}

func (h *Handler) invalidateSummary() {
	if h.summary != nil {
		h.summary.Invalidate()
	}
}
