package eventform

import (
	"fmt"
	"strings"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
)

const (
	msgCategoryRequired    = "Category is required"
	msgCategoryUnknown     = "Category does not exist"
	msgDescriptionRequired = "Relationship description is required"
	msgDescriptionTooLong  = "Relationship description must be at most 255 characters"
	maxDescriptionLength   = 255
)

// Assignment is one editable (category, relationship) row of the form.
type Assignment struct {
	CategoryID              string
	RelationshipDescription string
}

// AssignmentResult is the validation outcome for one row.
type AssignmentResult struct {
	Index  int
	Errors ValidationErrors
}

// OK reports whether the row passed validation.
func (r AssignmentResult) OK() bool {
	return len(r.Errors) == 0
}

// AssignmentSet is an ordered list of rows. Duplicates are allowed and rows are addressed by position.
type AssignmentSet struct {
	items []Assignment
}

// NewAssignmentSet copies rows into a new set.
func NewAssignmentSet(rows ...Assignment) *AssignmentSet {
	return &AssignmentSet{items: append([]Assignment(nil), rows...)}
}

// AssignmentsFromEvent builds the rows of an existing event, keeping their order.
func AssignmentsFromEvent(event *models.Event) *AssignmentSet {
	set := &AssignmentSet{}
	if event == nil {
		return set
	}
	for _, ec := range event.EventCategories {
		categoryID := ec.CategoryID
		if categoryID == "" {
			categoryID = ec.Category.ID
		}
		set.items = append(set.items, Assignment{CategoryID: categoryID, RelationshipDescription: ec.RelationshipDescription})
	}
	return set
}

// Add appends an empty row and returns its index.
func (s *AssignmentSet) Add() int {
	s.items = append(s.items, Assignment{})
	return len(s.items) - 1
}

// RemoveAt deletes the row at i, shifting later rows up.
func (s *AssignmentSet) RemoveAt(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// Set replaces the row at i.
func (s *AssignmentSet) Set(i int, categoryID, description string) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.items[i] = Assignment{CategoryID: categoryID, RelationshipDescription: description}
	return nil
}

// Len returns the number of rows.
func (s *AssignmentSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the rows.
func (s *AssignmentSet) Items() []Assignment {
	if s == nil {
		return nil
	}
	return append([]Assignment(nil), s.items...)
}

// Validate checks every row against the loaded category catalog.
func (s *AssignmentSet) Validate(catalog []models.Category) []AssignmentResult {
	known := make(map[string]struct{}, len(catalog))
	for _, c := range catalog {
		known[c.ID] = struct{}{}
	}

	results := make([]AssignmentResult, 0, s.Len())
	for i, row := range s.Items() {
		result := AssignmentResult{Index: i}
		prefix := fmt.Sprintf("categories[%d]", i)

		switch _, ok := known[row.CategoryID]; {
		case strings.TrimSpace(row.CategoryID) == "":
			result.Errors = append(result.Errors, FieldError{Field: prefix + ".category_id", Message: msgCategoryRequired})
		case !ok:
			result.Errors = append(result.Errors, FieldError{Field: prefix + ".category_id", Message: msgCategoryUnknown})
		}

		description := strings.TrimSpace(row.RelationshipDescription)
		switch {
		case description == "":
			result.Errors = append(result.Errors, FieldError{Field: prefix + ".relationship_description", Message: msgDescriptionRequired})
		case len(description) > maxDescriptionLength:
			result.Errors = append(result.Errors, FieldError{Field: prefix + ".relationship_description", Message: msgDescriptionTooLong})
		}

		results = append(results, result)
	}
	return results
}

// Valid reports whether every row passes. An empty set is valid.
func (s *AssignmentSet) Valid(catalog []models.Category) bool {
	for _, r := range s.Validate(catalog) {
		if !r.OK() {
			return false
		}
	}
	return true
}

// Payload serialises the rows in order for the event endpoints.
func (s *AssignmentSet) Payload() []dto.CategoryAssignmentPayload {
	payload := make([]dto.CategoryAssignmentPayload, 0, s.Len())
	for _, row := range s.Items() {
		payload = append(payload, dto.CategoryAssignmentPayload{
			CategoryID:              row.CategoryID,
			RelationshipDescription: strings.TrimSpace(row.RelationshipDescription),
		})
	}
	return payload
}

func (s *AssignmentSet) check(i int) error {
	if i < 0 || i >= s.Len() {
		return fmt.Errorf("assignment index %d out of range [0,%d)", i, s.Len())
	}
	return nil
}
