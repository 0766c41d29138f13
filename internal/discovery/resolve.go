package discovery

import (
	"net/url"
	"strconv"

	"github.com/noah-isme/timecapsule-api/internal/models"
)

// QueryKind discriminates the three shapes a listing request can take.
type QueryKind string

const (
	KindFeatured   QueryKind = "featured"
	KindByCategory QueryKind = "by_category"
	KindFiltered   QueryKind = "filtered"
)

const (
	featuredPath = "/api/events/featured"
	eventsPath   = "/api/events"
)

// Query is the resolved listing request. Zero numeric fields are absent.
type Query struct {
	Kind       QueryKind
	CategoryID string
	Year       int
	Years      string
	Month      int
	Day        int
	Sort       models.EventSort
}

// Path returns the endpoint the query is sent to.
func (q Query) Path() string {
	if q.Kind == KindFeatured {
		return featuredPath
	}
	return eventsPath
}

// Values encodes the query parameters. Featured queries carry none.
func (q Query) Values() url.Values {
	values := url.Values{}
	switch q.Kind {
	case KindFeatured:
		return values
	case KindByCategory:
		values.Set("category_id", q.CategoryID)
	default:
		if q.Years != "" {
			values.Set("years", q.Years)
		} else if q.Year != 0 {
			values.Set("year", strconv.Itoa(q.Year))
		}
		if q.Month != 0 {
			values.Set("month", strconv.Itoa(q.Month))
		}
		if q.Day != 0 {
			values.Set("day", strconv.Itoa(q.Day))
		}
	}
	if q.Sort != "" {
		values.Set("sort", string(q.Sort))
	}
	return values
}

// String renders the request target, e.g. /api/events?day=9&month=1&year=2007.
func (q Query) String() string {
	encoded := q.Values().Encode()
	if encoded == "" {
		return q.Path()
	}
	return q.Path() + "?" + encoded
}

// yearDimension is what the first matching year rule contributes to the query.
type yearDimension struct {
	categoryID string
	year       int
	years      string
}

type yearRule struct {
	name  string
	match func(FilterState) (yearDimension, bool)
}

// yearRules are evaluated in order and the first match wins. The last rule always matches.
var yearRules = []yearRule{
	{
		name: "category",
		match: func(s FilterState) (yearDimension, bool) {
			return yearDimension{categoryID: s.CategoryID}, s.CategoryID != ""
		},
	},
	{
		name: "years_text",
		match: func(s FilterState) (yearDimension, bool) {
			if s.YearsText == "" {
				return yearDimension{}, false
			}
			if year, ok := singleYear(s.YearsText); ok {
				return yearDimension{year: year}, true
			}
			return yearDimension{years: s.YearsText}, true
		},
	},
	{
		name: "picker",
		match: func(s FilterState) (yearDimension, bool) {
			if s.Granularity == GranularityMonthly {
				return yearDimension{year: s.Month.Year}, true
			}
			return yearDimension{year: s.Date.Year}, true
		},
	},
}

func resolveYear(s FilterState) (yearDimension, string) {
	for _, rule := range yearRules {
		if dim, ok := rule.match(s); ok {
			return dim, rule.name
		}
	}
	return yearDimension{}, ""
}

// Resolve maps a filter state onto exactly one listing query.
func Resolve(s FilterState) Query {
	if s.Mode != ModeFiltered {
		return Query{Kind: KindFeatured}
	}

	var sort models.EventSort
	if s.Sort.Valid() && s.Sort != models.EventSortHistorical {
		sort = s.Sort
	}

	dim, _ := resolveYear(s)
	if dim.categoryID != "" {
		return Query{Kind: KindByCategory, CategoryID: dim.categoryID, Sort: sort}
	}

	q := Query{Kind: KindFiltered, Year: dim.year, Years: dim.years, Sort: sort}
	if s.Granularity == GranularityMonthly {
		q.Month = s.Month.Month
	} else {
		q.Month = s.Date.Month
		q.Day = s.Date.Day
	}
	return q
}
