package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	Random(ctx context.Context, limit int) ([]models.Event, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
}

type categoryLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Category, error)
}

// EventServiceConfig tunes the featured sample.
type EventServiceConfig struct {
	FeaturedLimit int
	FeaturedTTL   time.Duration
}

// EventService implements the event catalog use cases.
type EventService struct {
	events     eventRepository
	categories categoryLookup
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        EventServiceConfig
}

// NewEventService constructs an EventService.
func NewEventService(events eventRepository, categories categoryLookup, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg EventServiceConfig) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FeaturedLimit <= 0 {
		cfg.FeaturedLimit = 20
	}
	return &EventService{
		events:     events,
		categories: categories,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// Featured returns a random sample of events, cached briefly.
func (s *EventService) Featured(ctx context.Context) ([]models.Event, error) {
	s.metrics.RecordListing("featured")
	events, err := remember(ctx, s.cache, cacheKeyFeatured, s.cfg.FeaturedTTL, func(ctx context.Context) ([]models.Event, error) {
		start := time.Now()
		events, err := s.events.Random(ctx, s.cfg.FeaturedLimit)
		s.metrics.ObserveDBQuery("events_featured", time.Since(start))
		return events, err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load featured events")
	}
	return nonNilEvents(events), nil
}

// List returns events matching the raw query parameters.
func (s *EventService) List(ctx context.Context, query dto.EventListQuery) ([]models.Event, error) {
	filter, ok := ParseEventFilter(query)
	if filter.CategoryID != "" {
		s.metrics.RecordListing("by_category")
	} else {
		s.metrics.RecordListing("filtered")
	}
	if !ok {
		return []models.Event{}, nil
	}

	start := time.Now()
	events, err := s.events.List(ctx, filter)
	s.metrics.ObserveDBQuery("events_list", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return nonNilEvents(events), nil
}

// Get returns one event with its assignments.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

// Create stores a new event owned by userID.
func (s *EventService) Create(ctx context.Context, userID string, payload dto.EventPayload) (*models.Event, error) {
	assignments, err := s.validatePayload(ctx, payload)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:              uuid.NewString(),
		UserID:          userID,
		EventCategories: assignments,
	}
	applyPayload(event, payload)

	if err := s.events.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.cache.Invalidate(ctx, cachePatternEvents)
	s.logger.Info("event created", zap.String("event_id", event.ID), zap.String("user_id", userID), zap.Int("categories", len(assignments)))

	return s.Get(ctx, event.ID)
}

// Update replaces the event fields and its full assignment list. Only the owner may update.
func (s *EventService) Update(ctx context.Context, userID, id string, payload dto.EventPayload) (*models.Event, error) {
	event, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	assignments, err := s.validatePayload(ctx, payload)
	if err != nil {
		return nil, err
	}

	applyPayload(event, payload)
	event.EventCategories = assignments

	if err := s.events.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	s.cache.Invalidate(ctx, cachePatternEvents)

	return s.Get(ctx, event.ID)
}

// Delete removes an event. Only the owner may delete.
func (s *EventService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	s.cache.Invalidate(ctx, cachePatternEvents)
	s.logger.Info("event deleted", zap.String("event_id", id), zap.String("user_id", userID))
	return nil
}

func (s *EventService) owned(ctx context.Context, userID, id string) (*models.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only modify your own events")
	}
	return event, nil
}

func (s *EventService) validatePayload(ctx context.Context, payload dto.EventPayload) ([]models.EventCategory, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !validCalendarDay(payload.Year, payload.Month, payload.Day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%04d-%02d-%02d is not a calendar date", payload.Year, payload.Month, payload.Day))
	}

	ids := make([]string, 0, len(payload.Categories))
	seen := make(map[string]struct{}, len(payload.Categories))
	for _, row := range payload.Categories {
		if _, err := uuid.Parse(row.CategoryID); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("category %s does not exist", row.CategoryID))
		}
		if _, dup := seen[row.CategoryID]; !dup {
			seen[row.CategoryID] = struct{}{}
			ids = append(ids, row.CategoryID)
		}
	}

	names := make(map[string]string, len(ids))
	if len(ids) > 0 {
		found, err := s.categories.FindByIDs(ctx, ids)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify categories")
		}
		for _, c := range found {
			names[c.ID] = c.Name
		}
		for _, id := range ids {
			if _, ok := names[id]; !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("category %s does not exist", id))
			}
		}
	}

	assignments := make([]models.EventCategory, 0, len(payload.Categories))
	for i, row := range payload.Categories {
		assignments = append(assignments, models.EventCategory{
			CategoryID:              row.CategoryID,
			RelationshipDescription: strings.TrimSpace(row.RelationshipDescription),
			Position:                i,
			Category:                models.CategoryRef{ID: row.CategoryID, Name: names[row.CategoryID]},
		})
	}
	return assignments, nil
}

func applyPayload(event *models.Event, payload dto.EventPayload) {
	event.Title = strings.TrimSpace(payload.Title)
	event.Description = strings.TrimSpace(payload.Description)
	event.Year = payload.Year
	event.Month = payload.Month
	event.Day = payload.Day
	event.SourceLink = optionalString(payload.SourceLink)
	event.ImageURL = nil
	if payload.ImageURL != nil {
		event.ImageURL = optionalString(*payload.ImageURL)
	}
}

// ParseEventFilter converts raw listing parameters into a repository filter.
// A non-empty years value is the only year filter; items that are not integers are dropped.
// It reports false when the parameters can match nothing, such as a malformed category id.
func ParseEventFilter(query dto.EventListQuery) (models.EventFilter, bool) {
	filter := models.EventFilter{Sort: models.EventSortHistorical}

	if raw := strings.TrimSpace(query.Years); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if !digitsOnly(part) {
				continue
			}
			if year, err := strconv.Atoi(part); err == nil && year > 0 {
				filter.Years = append(filter.Years, year)
			}
		}
	} else {
		filter.Year = positiveInt(query.Year)
	}
	filter.Month = positiveInt(query.Month)
	filter.Day = positiveInt(query.Day)

	if sort := models.EventSort(strings.TrimSpace(query.Sort)); sort.Valid() {
		filter.Sort = sort
	}

	if id := strings.TrimSpace(query.CategoryID); id != "" {
		filter.CategoryID = id
		if _, err := uuid.Parse(id); err != nil {
			return filter, false
		}
	}
	return filter, true
}

// digitsOnly rejects signs and other characters strconv.Atoi would accept.
func digitsOnly(raw string) bool {
	return raw != "" && strings.Trim(raw, "0123456789") == ""
}

func positiveInt(raw string) *int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return nil
	}
	return &value
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validCalendarDay(year, month, day int) bool {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}

func nonNilEvents(events []models.Event) []models.Event {
	if events == nil {
		return []models.Event{}
	}
	return events
}
