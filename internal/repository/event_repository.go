package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timecapsule-api/internal/models"
)

const (
	eventColumns = `e.id, e.title, e.description, e.year, e.month, e.day, e.image_url, e.source_link, e.user_id, e.created_at, e.updated_at, u.id AS "user.id", u.username AS "user.username"`
	eventFrom    = `FROM events e JOIN users u ON u.id = e.user_id`

	eventCategoryColumns = `ec.id, ec.event_id, ec.category_id, ec.relationship_description, ec.position, c.id AS "category.id", c.name AS "category.name"`
	eventCategoryFrom    = `FROM event_categories ec JOIN categories c ON c.id = ec.category_id`
)

// EventRepository provides database access for events and their category assignments.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new instance of EventRepository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns events matching the filter with their assignments loaded.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	var conditions []string
	var args []interface{}

	if filter.HasYears() {
		conditions = append(conditions, fmt.Sprintf("e.year = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.Years))
	} else if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("e.year = $%d", len(args)+1))
		args = append(args, *filter.Year)
	}
	if filter.Month != nil {
		conditions = append(conditions, fmt.Sprintf("e.month = $%d", len(args)+1))
		args = append(args, *filter.Month)
	}
	if filter.Day != nil {
		conditions = append(conditions, fmt.Sprintf("e.day = $%d", len(args)+1))
		args = append(args, *filter.Day)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM event_categories f WHERE f.event_id = e.id AND f.category_id = $%d)", len(args)+1))
		args = append(args, filter.CategoryID)
	}

	query := "SELECT " + eventColumns + " " + eventFrom
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if filter.Sort == models.EventSortNewest {
		query += " ORDER BY e.created_at DESC"
	} else {
		query += " ORDER BY e.year ASC, e.month ASC, e.day ASC"
	}

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if err := r.attachCategories(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// Random returns up to limit events in random order.
func (r *EventRepository) Random(ctx context.Context, limit int) ([]models.Event, error) {
	query := "SELECT " + eventColumns + " " + eventFrom + " ORDER BY RANDOM() LIMIT $1"
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("random events: %w", err)
	}
	if err := r.attachCategories(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// FindByID returns a single event with its assignments.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := "SELECT " + eventColumns + " " + eventFrom + " WHERE e.id = $1 LIMIT 1"
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find event by id: %w", err)
	}
	events := []models.Event{event}
	if err := r.attachCategories(ctx, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

// ExistsByYearTitle reports whether an event with the same year and title is stored.
func (r *EventRepository) ExistsByYearTitle(ctx context.Context, year int, title string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM events WHERE year = $1 AND title = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, year, title); err != nil {
		return false, fmt.Errorf("check event existence: %w", err)
	}
	return exists, nil
}

// Create inserts the event and its assignments in one transaction.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO events (id, title, description, year, month, day, image_url, source_link, user_id, created_at, updated_at) VALUES (:id, :title, :description, :year, :month, :day, :image_url, :source_link, :user_id, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		return insertAssignments(ctx, tx, event)
	})
}

// Update replaces the mutable fields and the full assignment list.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		const query = `UPDATE events SET title = :title, description = :description, year = :year, month = :month, day = :day, image_url = :image_url, source_link = :source_link, updated_at = :updated_at WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_categories WHERE event_id = $1`, event.ID); err != nil {
			return fmt.Errorf("clear event categories: %w", err)
		}
		return insertAssignments(ctx, tx, event)
	})
}

// Delete removes an event. Assignments cascade.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Count returns the number of stored events.
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM events`); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return total, nil
}

func (r *EventRepository) attachCategories(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, 0, len(events))
	index := make(map[string]int, len(events))
	for i := range events {
		ids = append(ids, events[i].ID)
		index[events[i].ID] = i
		events[i].EventCategories = []models.EventCategory{}
	}

	query := "SELECT " + eventCategoryColumns + " " + eventCategoryFrom + " WHERE ec.event_id = ANY($1) ORDER BY ec.event_id, ec.position"
	var rows []models.EventCategory
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list event categories: %w", err)
	}
	for _, row := range rows {
		if i, ok := index[row.EventID]; ok {
			events[i].EventCategories = append(events[i].EventCategories, row)
		}
	}
	return nil
}

func (r *EventRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertAssignments(ctx context.Context, tx *sqlx.Tx, event *models.Event) error {
	const query = `INSERT INTO event_categories (id, event_id, category_id, relationship_description, position) VALUES (:id, :event_id, :category_id, :relationship_description, :position)`
	for i := range event.EventCategories {
		ec := &event.EventCategories[i]
		if ec.ID == "" {
			ec.ID = uuid.NewString()
		}
		ec.EventID = event.ID
		ec.Position = i
		if _, err := tx.NamedExecContext(ctx, query, ec); err != nil {
			return fmt.Errorf("create event category: %w", err)
		}
	}
	return nil
}
