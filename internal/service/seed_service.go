package service

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

//go:embed seed_fixture.yaml
var defaultFixture []byte

// SeedFixture is the YAML document loaded by the seeder.
type SeedFixture struct {
	Owner      string         `yaml:"owner"`
	Categories []SeedCategory `yaml:"categories"`
	Events     []SeedEvent    `yaml:"events"`
}

// SeedCategory is one fixture category.
type SeedCategory struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// SeedEvent is one fixture event. Categories refer to fixture or stored categories by name.
type SeedEvent struct {
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	Year        int              `yaml:"year"`
	Month       int              `yaml:"month"`
	Day         int              `yaml:"day"`
	SourceLink  string           `yaml:"source_link"`
	ImageURL    string           `yaml:"image_url"`
	Categories  []SeedAssignment `yaml:"categories"`
}

// SeedAssignment links a fixture event to a category.
type SeedAssignment struct {
	Category     string `yaml:"category"`
	Relationship string `yaml:"relationship"`
}

// SeedResult counts what a seed run stored.
type SeedResult struct {
	Categories int `json:"categories"`
	Events     int `json:"events"`
	Skipped    int `json:"skipped"`
}

// LoadFixture decodes a fixture, rejecting unknown keys.
func LoadFixture(r io.Reader) (*SeedFixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fixture SeedFixture
	if err := dec.Decode(&fixture); err != nil {
		return nil, fmt.Errorf("decode seed fixture: %w", err)
	}
	if strings.TrimSpace(fixture.Owner) == "" {
		fixture.Owner = "Archivist"
	}
	return &fixture, nil
}

// DefaultFixture returns the bundled catalog.
func DefaultFixture() (*SeedFixture, error) {
	return LoadFixture(bytes.NewReader(defaultFixture))
}

type seedCategoryStore interface {
	FindByName(ctx context.Context, name string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
}

// SeedService loads fixtures idempotently: existing categories and (year, title) events are reused.
type SeedService struct {
	users      archivistStore
	categories seedCategoryStore
	events     importEventWriter
	logger     *zap.Logger
}

// NewSeedService constructs a SeedService.
func NewSeedService(users archivistStore, categories seedCategoryStore, events importEventWriter, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{users: users, categories: categories, events: events, logger: logger}
}

// Seed stores the fixture.
func (s *SeedService) Seed(ctx context.Context, fixture *SeedFixture) (SeedResult, error) {
	var result SeedResult

	owner, err := s.owner(ctx, fixture.Owner)
	if err != nil {
		return result, err
	}

	ids := make(map[string]models.CategoryRef, len(fixture.Categories))
	for _, c := range fixture.Categories {
		ref, created, err := s.category(ctx, owner.ID, c)
		if err != nil {
			return result, err
		}
		ids[strings.ToLower(ref.Name)] = ref
		if created {
			result.Categories++
		}
	}

	for _, e := range fixture.Events {
		exists, err := s.events.ExistsByYearTitle(ctx, e.Year, e.Title)
		if err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check seed event")
		}
		if exists {
			result.Skipped++
			continue
		}

		event := &models.Event{
			ID:          uuid.NewString(),
			Title:       e.Title,
			Description: e.Description,
			Year:        e.Year,
			Month:       e.Month,
			Day:         e.Day,
			SourceLink:  optionalString(e.SourceLink),
			ImageURL:    optionalString(e.ImageURL),
			UserID:      owner.ID,
		}
		for i, a := range e.Categories {
			ref, ok := ids[strings.ToLower(a.Category)]
			if !ok {
				ref, _, err = s.category(ctx, owner.ID, SeedCategory{Name: a.Category})
				if err != nil {
					return result, err
				}
				ids[strings.ToLower(ref.Name)] = ref
			}
			event.EventCategories = append(event.EventCategories, models.EventCategory{
				CategoryID:              ref.ID,
				RelationshipDescription: a.Relationship,
				Position:                i,
				Category:                ref,
			})
		}

		if err := s.events.Create(ctx, event); err != nil {
			return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to seed event %q", e.Title))
		}
		result.Events++
	}

	s.logger.Info("seed finished", zap.Int("categories", result.Categories), zap.Int("events", result.Events), zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *SeedService) owner(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seed owner")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash seed owner password")
	}
	user = &models.User{ID: uuid.NewString(), Username: username, PasswordHash: string(hash), CreatedAt: time.Now().UTC()}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create seed owner")
	}
	return user, nil
}

func (s *SeedService) category(ctx context.Context, ownerID string, c SeedCategory) (models.CategoryRef, bool, error) {
	existing, err := s.categories.FindByName(ctx, c.Name)
	if err == nil {
		return models.CategoryRef{ID: existing.ID, Name: existing.Name}, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.CategoryRef{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seed category")
	}
	category := &models.Category{ID: uuid.NewString(), Name: c.Name, Description: c.Description, UserID: ownerID, CreatedAt: time.Now().UTC()}
	if err := s.categories.Create(ctx, category); err != nil {
		return models.CategoryRef{}, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create seed category")
	}
	return models.CategoryRef{ID: category.ID, Name: category.Name}, true, nil
}
