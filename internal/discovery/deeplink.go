package discovery

import (
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/timecapsule-api/internal/models"
)

const (
	paramCategoryID = "category_id"
	paramSort       = "sort"
)

// Entry is the part of the filter state carried by the page URL.
type Entry struct {
	CategoryID string
	Sort       models.EventSort
}

// Present reports whether the entry should suppress featured mode.
func (e Entry) Present() bool {
	return e.CategoryID != "" || e.Sort != ""
}

// ParseDeepLink reads category_id and sort from a query string. Unknown sort values are ignored.
func ParseDeepLink(values url.Values) Entry {
	var entry Entry
	if values == nil {
		return entry
	}
	entry.CategoryID = strings.TrimSpace(values.Get(paramCategoryID))
	if sort := models.EventSort(strings.TrimSpace(values.Get(paramSort))); sort.Valid() {
		entry.Sort = sort
	}
	return entry
}

// EncodeDeepLink is the inverse of ParseDeepLink. Date controls are not persisted and the default sort is omitted.
func EncodeDeepLink(s FilterState) url.Values {
	values := url.Values{}
	if s.Mode != ModeFiltered {
		return values
	}
	if s.CategoryID != "" {
		values.Set(paramCategoryID, s.CategoryID)
	}
	if s.Sort.Valid() && s.Sort != models.EventSortHistorical {
		values.Set(paramSort, string(s.Sort))
	}
	return values
}

// InitialState builds the state for a page opened with the given entry parameters.
func InitialState(now time.Time, entry Entry) FilterState {
	state := NewFilterState(now)
	if !entry.Present() {
		return state
	}
	state.Mode = ModeFiltered
	state.CategoryID = entry.CategoryID
	if entry.Sort != "" {
		state.Sort = entry.Sort
	}
	return state
}
