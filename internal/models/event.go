package models

import "time"

// EventSort selects the listing order.
type EventSort string

const (
	// EventSortHistorical orders by the event's own date.
	EventSortHistorical EventSort = "historical"
	// EventSortNewest orders by record creation time, latest first.
	EventSortNewest EventSort = "newest"
)

// Valid reports whether the sort is one of the known orders.
func (s EventSort) Valid() bool {
	return s == EventSortHistorical || s == EventSortNewest
}

// Event is a dated entry in the time capsule.
type Event struct {
	ID              string          `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Year            int             `db:"year" json:"year"`
	Month           int             `db:"month" json:"month"`
	Day             int             `db:"day" json:"day"`
	ImageURL        *string         `db:"image_url" json:"image_url,omitempty"`
	SourceLink      *string         `db:"source_link" json:"source_link,omitempty"`
	UserID          string          `db:"user_id" json:"user_id"`
	User            EventOwner      `db:"user" json:"user"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	EventCategories []EventCategory `db:"-" json:"event_categories"`
}

// EventOwner is the public projection of the submitting user.
type EventOwner struct {
	ID       string `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}

// EventCategory links an event to a category with a described relationship.
type EventCategory struct {
	ID                      string      `db:"id" json:"id"`
	EventID                 string      `db:"event_id" json:"event_id"`
	CategoryID              string      `db:"category_id" json:"category_id"`
	RelationshipDescription string      `db:"relationship_description" json:"relationship_description"`
	Position                int         `db:"position" json:"-"`
	Category                CategoryRef `db:"category" json:"category"`
}

// EventFilter narrows the event listing. Years takes precedence over Year.
type EventFilter struct {
	Year       *int
	Years      []int
	Month      *int
	Day        *int
	CategoryID string
	Sort       EventSort
}

// HasYears reports whether the multi-year filter is active.
func (f EventFilter) HasYears() bool {
	return len(f.Years) > 0
}
