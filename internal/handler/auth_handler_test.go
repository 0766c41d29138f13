package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

type fakeAuthSrv struct {
	resp     *models.LoginResponse
	err      error
	user     *models.UserInfo
	userErr  error
	lastCred models.CredentialsRequest
}

func (f *fakeAuthSrv) Signup(_ context.Context, req models.CredentialsRequest) (*models.LoginResponse, error) {
	f.lastCred = req
	return f.resp, f.err
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.CredentialsRequest) (*models.LoginResponse, error) {
	f.lastCred = req
	return f.resp, f.err
}

func (f *fakeAuthSrv) CurrentUser(context.Context, *models.JWTClaims) (*models.UserInfo, error) {
	return f.user, f.userErr
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthHandlerSignup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeAuthSrv{resp: &models.LoginResponse{AccessToken: "token", User: models.UserInfo{ID: "u1", Username: "ada"}}}
	handler := NewAuthHandler(svc)

	rec := httptest.NewRecorder()
	c := authedContext(rec, jsonRequest(http.MethodPost, "/api/signup", `{"username":"ada","password":"secret"}`), "")

	handler.Signup(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ada", svc.lastCred.Username)

	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
	assert.Equal(t, "token", resp.AccessToken)
}

func TestAuthHandlerSignupConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{err: appErrors.Clone(appErrors.ErrConflict, "username already taken")})

	rec := httptest.NewRecorder()
	c := authedContext(rec, jsonRequest(http.MethodPost, "/api/signup", `{"username":"ada","password":"secret"}`), "")

	handler.Signup(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{err: appErrors.ErrInvalidCredentials})

	rec := httptest.NewRecorder()
	c := authedContext(rec, jsonRequest(http.MethodPost, "/api/login", `{"username":"ada","password":"wrong"}`), "")

	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeEnvelope(t, rec).Error["code"])
}

func TestAuthHandlerLoginMalformed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeAuthSrv{}
	handler := NewAuthHandler(svc)

	rec := httptest.NewRecorder()
	c := authedContext(rec, jsonRequest(http.MethodPost, "/api/login", `{`), "")

	handler.Login(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.lastCred.Username)
}

func TestAuthHandlerCheckSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{user: &models.UserInfo{ID: "u1", Username: "ada"}})

	anon := httptest.NewRecorder()
	handler.CheckSession(authedContext(anon, httptest.NewRequest(http.MethodGet, "/api/check_session", nil), ""))
	assert.Equal(t, http.StatusNoContent, anon.Code)

	signed := httptest.NewRecorder()
	handler.CheckSession(authedContext(signed, httptest.NewRequest(http.MethodGet, "/api/check_session", nil), "u1"))
	require.Equal(t, http.StatusOK, signed.Code)

	var user models.UserInfo
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, signed).Data, &user))
	assert.Equal(t, "ada", user.Username)
}

func TestAuthHandlerCheckSessionUnknownUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{userErr: appErrors.ErrNotFound})

	rec := httptest.NewRecorder()
	handler.CheckSession(authedContext(rec, httptest.NewRequest(http.MethodGet, "/api/check_session", nil), "ghost"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthHandlerLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&fakeAuthSrv{})

	rec := httptest.NewRecorder()
	handler.Logout(authedContext(rec, httptest.NewRequest(http.MethodDelete, "/api/logout", nil), "u1"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
