package export

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// CalendarEntry is one all-day anniversary in an iCalendar export.
type CalendarEntry struct {
	UID         string
	Summary     string
	Description string
	Date        time.Time
	URL         string
	Categories  []string
}

// ICSExporter renders entries as a calendar of yearly recurring all-day events.
type ICSExporter struct {
	productID string
	now       func() time.Time
}

// NewICSExporter builds an iCalendar exporter.
func NewICSExporter(productID string) *ICSExporter {
	if productID == "" {
		productID = "-//Tech Time Capsule//Events//EN"
	}
	return &ICSExporter{productID: productID, now: time.Now}
}

// Render serialises entries into an iCalendar document.
func (e *ICSExporter) Render(entries []CalendarEntry, name string) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	stamp := e.now().UTC()
	for _, entry := range entries {
		if entry.UID == "" {
			return nil, fmt.Errorf("calendar entry %q has no uid", entry.Summary)
		}
		start := time.Date(entry.Date.Year(), entry.Date.Month(), entry.Date.Day(), 0, 0, 0, 0, time.UTC)
		rule, err := yearlyRule(start)
		if err != nil {
			return nil, fmt.Errorf("build recurrence for %s: %w", entry.UID, err)
		}

		event := cal.AddEvent(entry.UID)
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(start)
		event.SetAllDayEndAt(start.AddDate(0, 0, 1))
		event.SetSummary(entry.Summary)
		description := entry.Description
		if next := rule.After(stamp, true); !next.IsZero() {
			description = strings.TrimSpace(fmt.Sprintf("%s\n\nNext anniversary: %s", description, next.Format("2006-01-02")))
		}
		event.SetDescription(description)
		event.AddRrule(rule.OrigOptions.RRuleString())
		if entry.URL != "" {
			event.SetURL(entry.URL)
		}
		if len(entry.Categories) > 0 {
			event.AddProperty(ical.ComponentPropertyCategories, strings.Join(entry.Categories, ","))
		}
	}

	return []byte(cal.Serialize()), nil
}

func yearlyRule(start time.Time) (*rrule.RRule, error) {
	return rrule.NewRRule(rrule.ROption{
		Freq:       rrule.YEARLY,
		Dtstart:    start,
		Bymonth:    []int{int(start.Month())},
		Bymonthday: []int{start.Day()},
	})
}
