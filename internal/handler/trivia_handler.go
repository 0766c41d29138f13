package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timecapsule-api/internal/models"
	"github.com/noah-isme/timecapsule-api/pkg/response"
)

type triviaService interface {
	Question(ctx context.Context) (*models.TriviaQuestion, error)
}

// TriviaHandler serves trivia questions.
type TriviaHandler struct {
	service triviaService
}

// NewTriviaHandler constructs a TriviaHandler.
func NewTriviaHandler(svc triviaService) *TriviaHandler {
	return &TriviaHandler{service: svc}
}

// Question godoc
// @Summary Random trivia question
// @Tags Trivia
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /trivia [get]
func (h *TriviaHandler) Question(c *gin.Context) {
	question, err := h.service.Question(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question)
}
