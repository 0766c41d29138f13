package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
	"github.com/noah-isme/timecapsule-api/pkg/response"
)

type importService interface {
	Enqueue(ctx context.Context, requestedBy string, req dto.ImportRequest) (*models.ImportJob, error)
	Status(ctx context.Context, id string) (*models.ImportJob, error)
}

// ImportHandler exposes the Wikipedia import queue.
type ImportHandler struct {
	service importService
}

// NewImportHandler constructs an ImportHandler.
func NewImportHandler(svc importService) *ImportHandler {
	return &ImportHandler{service: svc}
}

// Enqueue godoc
// @Summary Queue an "on this day" import
// @Tags Imports
// @Accept json
// @Produce json
// @Param payload body dto.ImportRequest true "Import range"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /imports [post]
func (h *ImportHandler) Enqueue(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}

	job, err := h.service.Enqueue(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Import job status
// @Tags Imports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /imports/{id} [get]
func (h *ImportHandler) Status(c *gin.Context) {
	job, err := h.service.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}
