package dto

// CategoryAssignmentPayload is one row of the categories array in an event body.
type CategoryAssignmentPayload struct {
	CategoryID              string `json:"category_id" validate:"required"`
	RelationshipDescription string `json:"relationship_description" validate:"required,max=255"`
}

// EventPayload is the create/update body for events.
type EventPayload struct {
	Title       string                      `json:"title" validate:"required,max=200"`
	Description string                      `json:"description" validate:"required"`
	SourceLink  string                      `json:"source_link" validate:"omitempty,url,max=500"`
	Year        int                         `json:"year" validate:"required,min=1,max=9999"`
	Month       int                         `json:"month" validate:"required,min=1,max=12"`
	Day         int                         `json:"day" validate:"required,min=1,max=31"`
	ImageURL    *string                     `json:"image_url,omitempty" validate:"omitempty,url,max=500"`
	Categories  []CategoryAssignmentPayload `json:"categories" validate:"dive"`
}

// EventListQuery carries the raw listing parameters as they arrive on the wire.
type EventListQuery struct {
	Year       string `form:"year"`
	Years      string `form:"years"`
	Month      string `form:"month"`
	Day        string `form:"day"`
	CategoryID string `form:"category_id"`
	Sort       string `form:"sort"`
}

// EventExportQuery extends the listing parameters with an output format.
type EventExportQuery struct {
	EventListQuery
	Format string `form:"format"`
}
