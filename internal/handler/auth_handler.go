package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timecapsule-api/internal/middleware"
	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
	"github.com/noah-isme/timecapsule-api/pkg/response"
)

type authService interface {
	Signup(ctx context.Context, req models.CredentialsRequest) (*models.LoginResponse, error)
	Login(ctx context.Context, req models.CredentialsRequest) (*models.LoginResponse, error)
	CurrentUser(ctx context.Context, claims *models.JWTClaims) (*models.UserInfo, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Signup godoc
// @Summary Register an account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.CredentialsRequest true "Credentials"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signup payload"))
		return
	}

	res, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by username and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.CredentialsRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res)
}

// CheckSession godoc
// @Summary Current session
// @Description Returns the signed-in user, or 204 when the request is anonymous
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Success 204
// @Router /check_session [get]
func (h *AuthHandler) CheckSession(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.NoContent(c)
		return
	}

	user, err := h.service.CurrentUser(c.Request.Context(), claims)
	if err != nil {
		response.NoContent(c)
		return
	}

	response.JSON(c, http.StatusOK, user)
}

// Logout godoc
// @Summary Logout current session
// @Description Tokens are stateless; clients discard theirs
// @Tags Authentication
// @Success 204
// @Router /logout [delete]
func (h *AuthHandler) Logout(c *gin.Context) {
	response.NoContent(c)
}
