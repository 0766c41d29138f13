package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

func TestCacheRepositoryDisabledBehavesAsEmpty(t *testing.T) {
	repo := NewCacheRepository(nil, "capsule", nil)
	ctx := context.Background()

	var dest []string
	assert.ErrorIs(t, repo.Get(ctx, "events:featured", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "events:featured", []string{"a"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "events:*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryKeyPrefix(t *testing.T) {
	assert.Equal(t, "capsule:categories", NewCacheRepository(nil, "capsule", nil).key("categories"))
	assert.Equal(t, "categories", NewCacheRepository(nil, "", nil).key("categories"))
}
