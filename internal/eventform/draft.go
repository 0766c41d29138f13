package eventform

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
)

const minYear = 1800

// FieldError is a validation message attached to one form control.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field-scoped messages. A non-empty value blocks submission.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// For returns the messages attached to field.
func (v ValidationErrors) For(field string) []string {
	var messages []string
	for _, fe := range v {
		if fe.Field == field {
			messages = append(messages, fe.Message)
		}
	}
	return messages
}

// Draft is the event authoring form.
type Draft struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	SourceLink  string `json:"source_link" validate:"omitempty,url"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Year        int    `json:"year" validate:"min=1800,notfuture"`
	Month       int    `json:"month" validate:"min=1,max=12"`
	Day         int    `json:"day" validate:"min=1,max=31"`

	Categories *AssignmentSet `json:"-" validate:"-"`
}

// DraftFromEvent fills a draft with an existing event.
func DraftFromEvent(event *models.Event) Draft {
	draft := Draft{
		Title:       event.Title,
		Description: event.Description,
		Year:        event.Year,
		Month:       event.Month,
		Day:         event.Day,
		Categories:  AssignmentsFromEvent(event),
	}
	if event.SourceLink != nil {
		draft.SourceLink = *event.SourceLink
	}
	if event.ImageURL != nil {
		draft.ImageURL = *event.ImageURL
	}
	return draft
}

var fieldMessages = map[string]map[string]string{
	"title":       {"required": "Title is required"},
	"description": {"required": "Description is required"},
	"source_link": {"url": "Source link must be a valid URL"},
	"image_url":   {"url": "Image URL must be a valid URL"},
	"year":        {"min": "Year must be 1800 or later", "notfuture": "Year cannot be in the future"},
	"month":       {"min": "Month must be between 1 and 12", "max": "Month must be between 1 and 12"},
	"day":         {"min": "Day must be between 1 and 31", "max": "Day must be between 1 and 31"},
}

// Validator checks drafts. The zero value is not usable; use NewValidator.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewValidator returns a draft validator using now for the future-year check.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(), now: now}
	v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.validate.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= int64(v.now().Year())
	})
	return v
}

// Validate checks the draft fields and every assignment row. Each failing control gets its own message
// and one failure never hides another.
func (v *Validator) Validate(d Draft, catalog []models.Category) ValidationErrors {
	var out ValidationErrors

	if err := v.validate.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return ValidationErrors{{Field: "form", Message: err.Error()}}
		}
		for _, fe := range fieldErrs {
			out = append(out, FieldError{Field: fe.Field(), Message: messageFor(fe)})
		}
	}

	if d.Categories != nil {
		for _, r := range d.Categories.Validate(catalog) {
			out = append(out, r.Errors...)
		}
	}
	return out
}

// Validate checks d with a validator using the wall clock.
func (d Draft) Validate(catalog []models.Category) ValidationErrors {
	return NewValidator(nil).Validate(d, catalog)
}

// Payload converts the draft into the request body accepted by the event endpoints.
func (d Draft) Payload() dto.EventPayload {
	payload := dto.EventPayload{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		SourceLink:  strings.TrimSpace(d.SourceLink),
		Year:        d.Year,
		Month:       d.Month,
		Day:         d.Day,
		Categories:  []dto.CategoryAssignmentPayload{},
	}
	if image := strings.TrimSpace(d.ImageURL); image != "" {
		payload.ImageURL = &image
	}
	if d.Categories != nil {
		payload.Categories = d.Categories.Payload()
	}
	return payload
}

func messageFor(fe validator.FieldError) string {
	if byTag, ok := fieldMessages[fe.Field()]; ok {
		if msg, ok := byTag[fe.Tag()]; ok {
			return msg
		}
	}
	return fe.Field() + " is invalid"
}
