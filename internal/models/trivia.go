package models

// TriviaQuestion asks for the year of a random event.
type TriviaQuestion struct {
	Description string `json:"description"`
	CorrectYear int    `json:"correct_year"`
}
