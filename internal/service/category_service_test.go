package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

type categoryRepoStub struct {
	items     []models.Category
	listCalls int
	listErr   error
	deleted   string
}

func (r *categoryRepoStub) List(ctx context.Context) ([]models.Category, error) {
	r.listCalls++
	return r.items, r.listErr
}

func (r *categoryRepoStub) FindByID(ctx context.Context, id string) (*models.Category, error) {
	for _, c := range r.items {
		if c.ID == id {
			clone := c
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *categoryRepoStub) FindByName(ctx context.Context, name string) (*models.Category, error) {
	for _, c := range r.items {
		if strings.EqualFold(c.Name, name) {
			clone := c
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *categoryRepoStub) Create(ctx context.Context, category *models.Category) error {
	r.items = append(r.items, *category)
	return nil
}

func (r *categoryRepoStub) Delete(ctx context.Context, id string) error {
	r.deleted = id
	return nil
}

func TestCategoryServiceListCaches(t *testing.T) {
	repo := &categoryRepoStub{items: []models.Category{{ID: catHardware, Name: "Hardware"}}}
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc := NewCategoryService(repo, cache, nil, zap.NewNop(), time.Minute)

	for i := 0; i < 2; i++ {
		categories, err := svc.List(context.Background())
		require.NoError(t, err)
		require.Len(t, categories, 1)
		assert.Equal(t, "Hardware", categories[0].Name)
	}
	assert.Equal(t, 1, repo.listCalls)
}

func TestCategoryServiceListEmptyAndError(t *testing.T) {
	repo := &categoryRepoStub{}
	svc := NewCategoryService(repo, nil, nil, nil, 0)

	categories, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, categories)

	repo.listErr = errors.New("db down")
	_, err = svc.List(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestCategoryServiceCreate(t *testing.T) {
	repo := &categoryRepoStub{items: []models.Category{{ID: catHardware, Name: "Hardware"}}}
	memory := newMemoryCache()
	cache := NewCacheService(memory, nil, time.Minute, nil, true)
	svc := NewCategoryService(repo, cache, nil, nil, time.Minute)

	created, err := svc.Create(context.Background(), "u1", dto.CategoryPayload{Name: "  Space  ", Description: "Rockets"})
	require.NoError(t, err)
	assert.Equal(t, "Space", created.Name)
	assert.Equal(t, "u1", created.UserID)
	assert.NotEmpty(t, created.ID)
	assert.Contains(t, memory.invalidated, cacheKeyCategories)

	_, err = svc.Create(context.Background(), "u1", dto.CategoryPayload{Name: "hardware"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(context.Background(), "u1", dto.CategoryPayload{Name: strings.Repeat("x", 51)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCategoryServiceDelete(t *testing.T) {
	repo := &categoryRepoStub{items: []models.Category{{ID: catHardware, Name: "Hardware", UserID: "u1"}}}
	svc := NewCategoryService(repo, nil, nil, nil, 0)

	err := svc.Delete(context.Background(), "u2", catHardware)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	err = svc.Delete(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	err = svc.Delete(context.Background(), "u1", catInternet)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	require.NoError(t, svc.Delete(context.Background(), "u1", catHardware))
	assert.Equal(t, catHardware, repo.deleted)
}
