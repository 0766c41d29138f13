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

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

const (
	catHardware = "aaaaaaaa-0000-0000-0000-000000000001"
	catInternet = "aaaaaaaa-0000-0000-0000-000000000002"
	eventID     = "bbbbbbbb-0000-0000-0000-000000000001"
)

type eventRepoStub struct {
	events      map[string]*models.Event
	random      []models.Event
	randomCalls int
	lastFilter  models.EventFilter
	listCalls   int
	created     *models.Event
	updated     *models.Event
	deleted     string
	err         error
}

func newEventRepoStub(events ...*models.Event) *eventRepoStub {
	repo := &eventRepoStub{events: map[string]*models.Event{}}
	for _, e := range events {
		repo.events[e.ID] = e
	}
	return repo
}

func (r *eventRepoStub) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	r.listCalls++
	r.lastFilter = filter
	if r.err != nil {
		return nil, r.err
	}
	return nil, nil
}

func (r *eventRepoStub) Random(ctx context.Context, limit int) ([]models.Event, error) {
	r.randomCalls++
	if r.err != nil {
		return nil, r.err
	}
	if limit < len(r.random) {
		return r.random[:limit], nil
	}
	return r.random, nil
}

func (r *eventRepoStub) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if e, ok := r.events[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (r *eventRepoStub) Create(ctx context.Context, event *models.Event) error {
	if r.err != nil {
		return r.err
	}
	r.created = event
	r.events[event.ID] = event
	return nil
}

func (r *eventRepoStub) Update(ctx context.Context, event *models.Event) error {
	r.updated = event
	r.events[event.ID] = event
	return nil
}

func (r *eventRepoStub) Delete(ctx context.Context, id string) error {
	r.deleted = id
	delete(r.events, id)
	return nil
}

type categoryLookupStub struct {
	categories []models.Category
}

func (s categoryLookupStub) FindByIDs(ctx context.Context, ids []string) ([]models.Category, error) {
	var found []models.Category
	for _, c := range s.categories {
		for _, id := range ids {
			if c.ID == id {
				found = append(found, c)
			}
		}
	}
	return found, nil
}

type memoryCache struct {
	values      map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func newEventServiceForTest(repo *eventRepoStub, cache CacheRepository) *EventService {
	lookup := categoryLookupStub{categories: []models.Category{
		{ID: catHardware, Name: "Hardware"},
		{ID: catInternet, Name: "Internet"},
	}}
	var cacheSvc *CacheService
	if cache != nil {
		cacheSvc = NewCacheService(cache, NewMetricsService(), time.Minute, zap.NewNop(), true)
	}
	return NewEventService(repo, lookup, cacheSvc, NewMetricsService(), nil, zap.NewNop(), EventServiceConfig{FeaturedLimit: 2})
}

func validPayload() dto.EventPayload {
	return dto.EventPayload{
		Title:       "Apple I",
		Description: "Apple Computer releases the Apple I.",
		SourceLink:  "https://example.com/apple-i",
		Year:        1976,
		Month:       7,
		Day:         1,
		Categories: []dto.CategoryAssignmentPayload{
			{CategoryID: catHardware, RelationshipDescription: "First Apple product"},
			{CategoryID: catInternet, RelationshipDescription: " unrelated "},
			{CategoryID: catHardware, RelationshipDescription: "Duplicates are allowed"},
		},
	}
}

func TestParseEventFilter(t *testing.T) {
	t.Run("years wins and drops non numeric items", func(t *testing.T) {
		filter, ok := ParseEventFilter(dto.EventListQuery{Years: "1969, abc,1989,", Year: "2000", Month: "7"})
		require.True(t, ok)
		assert.Equal(t, []int{1969, 1989}, filter.Years)
		assert.Nil(t, filter.Year)
		require.NotNil(t, filter.Month)
		assert.Equal(t, 7, *filter.Month)
		assert.Nil(t, filter.Day)
	})

	t.Run("years items must be plain digits", func(t *testing.T) {
		filter, ok := ParseEventFilter(dto.EventListQuery{Years: "+2007,-1990,2001,1e3"})
		require.True(t, ok)
		assert.Equal(t, []int{2001}, filter.Years)
	})

	t.Run("years without numbers applies no year filter", func(t *testing.T) {
		filter, ok := ParseEventFilter(dto.EventListQuery{Years: "soon", Year: "2000"})
		require.True(t, ok)
		assert.Empty(t, filter.Years)
		assert.Nil(t, filter.Year)
	})

	t.Run("single year with day and newest sort", func(t *testing.T) {
		filter, ok := ParseEventFilter(dto.EventListQuery{Year: "1995", Month: "8", Day: "24", Sort: "newest"})
		require.True(t, ok)
		require.NotNil(t, filter.Year)
		assert.Equal(t, 1995, *filter.Year)
		assert.Equal(t, 24, *filter.Day)
		assert.Equal(t, models.EventSortNewest, filter.Sort)
	})

	t.Run("unknown sort falls back to historical", func(t *testing.T) {
		filter, _ := ParseEventFilter(dto.EventListQuery{Sort: "random"})
		assert.Equal(t, models.EventSortHistorical, filter.Sort)
	})

	t.Run("malformed category matches nothing", func(t *testing.T) {
		_, ok := ParseEventFilter(dto.EventListQuery{CategoryID: "5"})
		assert.False(t, ok)
	})
}

func TestEventServiceListShortCircuitsMalformedCategory(t *testing.T) {
	repo := newEventRepoStub()
	svc := newEventServiceForTest(repo, nil)

	events, err := svc.List(context.Background(), dto.EventListQuery{CategoryID: "not-a-uuid"})
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.Equal(t, 0, repo.listCalls)
}

func TestEventServiceListReturnsEmptySlice(t *testing.T) {
	repo := newEventRepoStub()
	svc := newEventServiceForTest(repo, nil)

	events, err := svc.List(context.Background(), dto.EventListQuery{CategoryID: catHardware, Sort: "newest"})
	require.NoError(t, err)
	assert.Equal(t, []models.Event{}, events)
	assert.Equal(t, catHardware, repo.lastFilter.CategoryID)
	assert.Equal(t, models.EventSortNewest, repo.lastFilter.Sort)
}

func TestEventServiceListWrapsRepositoryErrors(t *testing.T) {
	repo := newEventRepoStub()
	repo.err = errors.New("db down")
	svc := newEventServiceForTest(repo, nil)

	_, err := svc.List(context.Background(), dto.EventListQuery{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestEventServiceFeaturedUsesCache(t *testing.T) {
	repo := newEventRepoStub()
	repo.random = []models.Event{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}, {ID: "3", Title: "c"}}
	svc := newEventServiceForTest(repo, newMemoryCache())

	first, err := svc.Featured(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := svc.Featured(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.randomCalls)
}

func TestEventServiceGet(t *testing.T) {
	repo := newEventRepoStub(&models.Event{ID: eventID, Title: "ARPANET"})
	svc := newEventServiceForTest(repo, nil)

	event, err := svc.Get(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, "ARPANET", event.Title)

	_, err = svc.Get(context.Background(), "42")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Get(context.Background(), "bbbbbbbb-0000-0000-0000-000000000099")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEventServiceCreate(t *testing.T) {
	repo := newEventRepoStub()
	cache := newMemoryCache()
	svc := newEventServiceForTest(repo, cache)

	event, err := svc.Create(context.Background(), "u1", validPayload())
	require.NoError(t, err)
	require.NotNil(t, repo.created)

	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, "https://example.com/apple-i", *event.SourceLink)
	assert.Nil(t, event.ImageURL)
	require.Len(t, event.EventCategories, 3)
	assert.Equal(t, catHardware, event.EventCategories[0].CategoryID)
	assert.Equal(t, "Hardware", event.EventCategories[0].Category.Name)
	assert.Equal(t, "unrelated", event.EventCategories[1].RelationshipDescription)
	assert.Equal(t, 2, event.EventCategories[2].Position)
	assert.Contains(t, cache.invalidated, cachePatternEvents)
}

func TestEventServiceCreateRejectsUnknownCategory(t *testing.T) {
	repo := newEventRepoStub()
	svc := newEventServiceForTest(repo, nil)

	payload := validPayload()
	payload.Categories = append(payload.Categories, dto.CategoryAssignmentPayload{
		CategoryID: "aaaaaaaa-0000-0000-0000-00000000dead", RelationshipDescription: "ghost",
	})
	_, err := svc.Create(context.Background(), "u1", payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "does not exist")
	assert.Nil(t, repo.created)

	payload.Categories = []dto.CategoryAssignmentPayload{{CategoryID: "7", RelationshipDescription: "legacy id"}}
	_, err = svc.Create(context.Background(), "u1", payload)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEventServiceCreateValidatesPayload(t *testing.T) {
	svc := newEventServiceForTest(newEventRepoStub(), nil)

	payload := validPayload()
	payload.Title = ""
	_, err := svc.Create(context.Background(), "u1", payload)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	payload = validPayload()
	payload.Month, payload.Day = 2, 30
	_, err = svc.Create(context.Background(), "u1", payload)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	payload = validPayload()
	payload.Categories[0].RelationshipDescription = ""
	_, err = svc.Create(context.Background(), "u1", payload)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEventServiceUpdate(t *testing.T) {
	repo := newEventRepoStub(&models.Event{ID: eventID, UserID: "u1", Title: "Old"})
	svc := newEventServiceForTest(repo, nil)

	payload := validPayload()
	payload.Categories = payload.Categories[:1]
	image := "https://example.com/apple.png"
	payload.ImageURL = &image

	event, err := svc.Update(context.Background(), "u1", eventID, payload)
	require.NoError(t, err)
	assert.Equal(t, "Apple I", event.Title)
	assert.Equal(t, image, *event.ImageURL)
	assert.Len(t, event.EventCategories, 1)
	require.NotNil(t, repo.updated)
}

func TestEventServiceUpdateRejectsNonOwner(t *testing.T) {
	repo := newEventRepoStub(&models.Event{ID: eventID, UserID: "u1"})
	svc := newEventServiceForTest(repo, nil)

	_, err := svc.Update(context.Background(), "u2", eventID, validPayload())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Nil(t, repo.updated)

	err = svc.Delete(context.Background(), "u2", eventID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Empty(t, repo.deleted)
}

func TestEventServiceDelete(t *testing.T) {
	repo := newEventRepoStub(&models.Event{ID: eventID, UserID: "u1"})
	svc := newEventServiceForTest(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), "u1", eventID))
	assert.Equal(t, eventID, repo.deleted)

	err := svc.Delete(context.Background(), "u1", eventID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
