package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	findErr   error
	createErr error
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: map[string]*models.User{}}
	for _, u := range users {
		repo.users[u.Username] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.users[user.Username] = user
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "capsule-test"}
}

func hashedUser(t *testing.T, id, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: id, Username: username, PasswordHash: string(hash)}
}

func TestAuthServiceSignupIssuesToken(t *testing.T) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Signup(context.Background(), models.CredentialsRequest{Username: " ada ", Password: "lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "ada", resp.User.Username)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	stored := repo.users["ada"]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("lovelace")))

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.UserID)
	assert.Equal(t, "ada", claims.Username)
}

func TestAuthServiceSignupDuplicate(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Username: "ada"})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Signup(context.Background(), models.CredentialsRequest{Username: "ada", Password: "pw"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAuthServiceSignupValidation(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), nil, nil, testAuthConfig())

	_, err := svc.Signup(context.Background(), models.CredentialsRequest{Username: "   ", Password: "pw"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo(hashedUser(t, "u1", "grace", "hopper"))
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), models.CredentialsRequest{Username: "grace", Password: "hopper"})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)

	_, err = svc.Login(context.Background(), models.CredentialsRequest{Username: "grace", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.CredentialsRequest{Username: "nobody", Password: "x"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginRepositoryFailure(t *testing.T) {
	repo := newMockAuthRepo()
	repo.findErr = errors.New("db down")
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.CredentialsRequest{Username: "grace", Password: "hopper"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	repo := newMockAuthRepo(hashedUser(t, "u1", "grace", "hopper"))
	issuer := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour})
	resp, err := issuer.Login(context.Background(), models.CredentialsRequest{Username: "grace", Password: "hopper"})
	require.NoError(t, err)

	svc := NewAuthService(repo, nil, nil, testAuthConfig())
	_, err = svc.ValidateToken(resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceCurrentUser(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Username: "grace"})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	info, err := svc.CurrentUser(context.Background(), &models.JWTClaims{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "grace", info.Username)

	_, err = svc.CurrentUser(context.Background(), &models.JWTClaims{UserID: "gone"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.CurrentUser(context.Background(), nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
