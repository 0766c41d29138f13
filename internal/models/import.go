package models

import "time"

// ImportStatus tracks a queued "on this day" ingestion.
type ImportStatus string

const (
	ImportStatusQueued    ImportStatus = "QUEUED"
	ImportStatusRunning   ImportStatus = "RUNNING"
	ImportStatusCompleted ImportStatus = "COMPLETED"
	ImportStatusFailed    ImportStatus = "FAILED"
)

// ImportJob describes one ingestion run over a year, a month or a single day.
// A zero Year with Month and Day set imports that calendar day across all years.
type ImportJob struct {
	ID          string       `db:"id" json:"id"`
	Year        int          `db:"year" json:"year"`
	Month       *int         `db:"month" json:"month,omitempty"`
	Day         *int         `db:"day" json:"day,omitempty"`
	Fast        bool         `db:"fast" json:"fast"`
	Status      ImportStatus `db:"status" json:"status"`
	DaysFetched int          `db:"days_fetched" json:"days_fetched"`
	Created     int          `db:"created" json:"created"`
	Skipped     int          `db:"skipped" json:"skipped"`
	Failed      int          `db:"failed" json:"failed"`
	Error       *string      `db:"error" json:"error,omitempty"`
	RequestedBy *string      `db:"requested_by" json:"requested_by,omitempty"`
	EnqueuedAt  time.Time    `db:"enqueued_at" json:"enqueued_at"`
	FinishedAt  *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}

// ImportResult summarises a finished ingestion.
type ImportResult struct {
	DaysFetched int `json:"days_fetched"`
	Created     int `json:"created"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}
