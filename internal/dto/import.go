package dto

// ImportRequest asks for an "on this day" ingestion. Month and Day narrow the range.
// Year may be omitted only when both Month and Day are set.
type ImportRequest struct {
	Year  int  `json:"year" validate:"omitempty,min=1,max=9999"`
	Month *int `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
	Day   *int `json:"day,omitempty" validate:"omitempty,min=1,max=31"`
	Fast  bool `json:"fast"`
}
