package models

import "time"

// Category groups events by topic.
type Category struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	UserID      string    `db:"user_id" json:"user_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CategoryRef is the compact form nested inside event payloads.
type CategoryRef struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
