package dto

// CategoryPayload creates a category.
type CategoryPayload struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description"`
}
