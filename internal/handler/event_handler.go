package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/middleware"
	"github.com/noah-isme/timecapsule-api/internal/models"
	"github.com/noah-isme/timecapsule-api/internal/service"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
	"github.com/noah-isme/timecapsule-api/pkg/response"
)

type eventService interface {
	Featured(ctx context.Context) ([]models.Event, error)
	List(ctx context.Context, query dto.EventListQuery) ([]models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, userID string, payload dto.EventPayload) (*models.Event, error)
	Update(ctx context.Context, userID, id string, payload dto.EventPayload) (*models.Event, error)
	Delete(ctx context.Context, userID, id string) error
}

type eventExporter interface {
	Export(ctx context.Context, query dto.EventExportQuery) (*service.ExportFile, error)
}

// EventHandler serves the event catalog.
type EventHandler struct {
	service  eventService
	exporter eventExporter
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc eventService, exporter eventExporter) *EventHandler {
	return &EventHandler{service: svc, exporter: exporter}
}

// Featured godoc
// @Summary Featured events
// @Description Random sample of events for the landing view
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events/featured [get]
func (h *EventHandler) Featured(c *gin.Context) {
	events, err := h.service.Featured(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, middleware.ResponseMeta(c, len(events)))
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param year query int false "Single year"
// @Param years query string false "Comma separated years, takes precedence over year"
// @Param month query int false "Month 1-12"
// @Param day query int false "Day of month"
// @Param category_id query string false "Category filter, ignores date parameters"
// @Param sort query string false "historical or newest"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var query dto.EventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	events, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, middleware.ResponseMeta(c, len(events)))
}

// Export godoc
// @Summary Export events
// @Description Downloads the filtered listing as CSV, PDF or iCalendar
// @Tags Events
// @Produce text/csv
// @Produce application/pdf
// @Produce text/calendar
// @Param format query string true "csv, pdf or ics"
// @Param years query string false "Comma separated years"
// @Param category_id query string false "Category filter"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /events/export [get]
func (h *EventHandler) Export(c *gin.Context) {
	var query dto.EventExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	file, err := h.exporter.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.Filename, file.Payload)
}

// Get godoc
// @Summary Event detail
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event)
}

// Create godoc
// @Summary Submit an event
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.EventPayload true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var payload dto.EventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	event, err := h.service.Create(c.Request.Context(), userID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Update godoc
// @Summary Edit an event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.EventPayload true "Event payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /events/{id} [patch]
func (h *EventHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var payload dto.EventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	event, err := h.service.Update(c.Request.Context(), userID, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event)
}

// Delete godoc
// @Summary Delete an event
// @Tags Events
// @Param id path string true "Event ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
