// Package discovery resolves the event browser's filter controls into a single listing query and keeps the
// URL, the controls and the remote listing consistent across edits.
package discovery

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/noah-isme/timecapsule-api/internal/models"
)

// Mode selects between the server-chosen sample and explicit query results.
type Mode string

const (
	ModeFeatured Mode = "featured"
	ModeFiltered Mode = "filtered"
)

// Granularity selects which date control is active.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
)

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	return g == GranularityDaily || g == GranularityMonthly
}

var singleYearPattern = regexp.MustCompile(`^\d{4}$`)

// Date is a calendar date as shown by the date picker.
type Date struct {
	Year  int
	Month int
	Day   int
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// ParseDate reads a YYYY-MM-DD picker value.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// withYear moves the date into another year, clamping Feb 29 on non-leap years.
func (d Date) withYear(year int) Date {
	d.Year = year
	if last := daysIn(year, d.Month); d.Day > last {
		d.Day = last
	}
	return d
}

// YearMonth is the value of the month picker.
type YearMonth struct {
	Year  int
	Month int
}

// ParseYearMonth reads a YYYY-MM picker value.
func ParseYearMonth(raw string) (YearMonth, error) {
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month %q, expected YYYY-MM", raw)
	}
	return YearMonth{Year: t.Year(), Month: int(t.Month())}, nil
}

func (m YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FilterState is everything the discovery controls hold. It is a plain comparable value; only Apply
// produces successor states.
type FilterState struct {
	Mode        Mode
	Granularity Granularity
	Date        Date
	Month       YearMonth
	YearsText   string
	CategoryID  string
	Sort        models.EventSort
}

// NewFilterState returns the state of a fresh page without deep-link parameters.
func NewFilterState(now time.Time) FilterState {
	today := DateOf(now)
	return FilterState{
		Mode:        ModeFeatured,
		Granularity: GranularityDaily,
		Date:        today,
		Month:       YearMonth{Year: today.Year, Month: today.Month},
		Sort:        models.EventSortHistorical,
	}
}

// singleYear reports whether text is exactly one four digit year.
func singleYear(text string) (int, bool) {
	if !singleYearPattern.MatchString(text) {
		return 0, false
	}
	year, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return year, true
}

// Update is a partial FilterState. Nil fields are left untouched.
type Update struct {
	Granularity *Granularity
	Date        *Date
	Month       *YearMonth
	YearsText   *string
	CategoryID  *string
	Sort        *models.EventSort
}

func (u Update) WithGranularity(g Granularity) Update { u.Granularity = &g; return u }
func (u Update) WithDate(d Date) Update               { u.Date = &d; return u }
func (u Update) WithMonth(m YearMonth) Update         { u.Month = &m; return u }
func (u Update) WithYearsText(text string) Update     { u.YearsText = &text; return u }
func (u Update) WithSort(s models.EventSort) Update   { u.Sort = &s; return u }

// WithCategory selects a category; an empty id clears the selection.
func (u Update) WithCategory(id string) Update { u.CategoryID = &id; return u }

// Empty reports whether the update carries no field at all.
func (u Update) Empty() bool {
	return u.Granularity == nil && u.Date == nil && u.Month == nil && u.YearsText == nil &&
		u.CategoryID == nil && u.Sort == nil
}

// Apply returns the successor of s after u.
//
// Any non-empty update leaves featured mode for good. Editing the date, the month or entering year text
// drops the category selection; selecting a category clears the year text but keeps the pickers. A
// single four digit year is copied into both pickers without touching granularity.
func (s FilterState) Apply(u Update) FilterState {
	if u.Empty() {
		return s
	}
	next := s

	if u.Granularity != nil && u.Granularity.Valid() {
		next.Granularity = *u.Granularity
	}
	if u.Date != nil {
		next.Date = *u.Date
		next.CategoryID = ""
	}
	if u.Month != nil {
		next.Month = *u.Month
		next.CategoryID = ""
	}
	if u.YearsText != nil {
		next.YearsText = *u.YearsText
		if next.YearsText != "" {
			next.CategoryID = ""
		}
		if year, ok := singleYear(next.YearsText); ok {
			next.Date = next.Date.withYear(year)
			next.Month.Year = year
		}
	}
	if u.Sort != nil && u.Sort.Valid() {
		next.Sort = *u.Sort
	}
	if u.CategoryID != nil {
		next.CategoryID = *u.CategoryID
		if next.CategoryID != "" {
			next.YearsText = ""
		}
	}

	next.Mode = ModeFiltered
	return next
}
