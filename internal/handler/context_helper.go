package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timecapsule-api/internal/middleware"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
	"github.com/noah-isme/timecapsule-api/pkg/response"
)

// requireUserID returns the authenticated user id or writes a 401 and reports false.
func requireUserID(c *gin.Context) (string, bool) {
	claims := middleware.Claims(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.UserID, true
}
