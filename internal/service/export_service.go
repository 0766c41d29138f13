package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
	"github.com/noah-isme/timecapsule-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
	ExportFormatICS = "ics"
)

var exportHeaders = []string{"Date", "Title", "Categories", "Submitted By", "Source"}

type eventLister interface {
	List(ctx context.Context, query dto.EventListQuery) ([]models.Event, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type icsRenderer interface {
	Render(entries []export.CalendarEntry, name string) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders listing results as files.
type ExportService struct {
	events eventLister
	csv    csvRenderer
	pdf    pdfRenderer
	ics    icsRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(events eventLister, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, ics icsRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if ics == nil {
		ics = export.NewICSExporter("")
	}
	return &ExportService{events: events, csv: csv, pdf: pdf, ics: ics, logger: logger, now: time.Now}
}

// Export lists events with the query filters and renders them in the requested format.
func (s *ExportService) Export(ctx context.Context, query dto.EventExportQuery) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF && format != ExportFormatICS {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", query.Format))
	}

	events, err := s.events.List(ctx, query.EventListQuery)
	if err != nil {
		return nil, err
	}

	title := exportTitle(query.EventListQuery)
	file := &ExportFile{Filename: s.filename(format)}
	switch format {
	case ExportFormatCSV:
		file.ContentType = "text/csv"
		file.Payload, err = s.csv.Render(eventDataset(events))
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Payload, err = s.pdf.Render(eventDataset(events), title)
	case ExportFormatICS:
		file.ContentType = "text/calendar"
		file.Payload, err = s.ics.Render(calendarEntries(events), title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("events exported", zap.String("format", format), zap.Int("events", len(events)), zap.Int("bytes", len(file.Payload)))
	return file, nil
}

func (s *ExportService) filename(format string) string {
	return fmt.Sprintf("time-capsule-%s.%s", s.now().UTC().Format("20060102-150405"), format)
}

func eventDataset(events []models.Event) export.Dataset {
	rows := make([]map[string]string, 0, len(events))
	for _, event := range events {
		source := ""
		if event.SourceLink != nil {
			source = *event.SourceLink
		}
		rows = append(rows, map[string]string{
			"Date":         fmt.Sprintf("%04d-%02d-%02d", event.Year, event.Month, event.Day),
			"Title":        event.Title,
			"Categories":   strings.Join(categoryNames(event), ", "),
			"Submitted By": event.User.Username,
			"Source":       source,
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows, Widths: []float64{1, 3, 2, 1.2, 3}}
}

func calendarEntries(events []models.Event) []export.CalendarEntry {
	entries := make([]export.CalendarEntry, 0, len(events))
	for _, event := range events {
		entry := export.CalendarEntry{
			UID:         event.ID + "@timecapsule",
			Summary:     fmt.Sprintf("%s (%d)", event.Title, event.Year),
			Description: event.Description,
			Date:        time.Date(event.Year, time.Month(event.Month), event.Day, 0, 0, 0, 0, time.UTC),
			Categories:  categoryNames(event),
		}
		if event.SourceLink != nil {
			entry.URL = *event.SourceLink
		}
		entries = append(entries, entry)
	}
	return entries
}

func categoryNames(event models.Event) []string {
	names := make([]string, 0, len(event.EventCategories))
	for _, ec := range event.EventCategories {
		names = append(names, ec.Category.Name)
	}
	return names
}

func exportTitle(query dto.EventListQuery) string {
	parts := []string{"Tech Time Capsule"}
	switch {
	case strings.TrimSpace(query.Years) != "":
		parts = append(parts, "years "+strings.TrimSpace(query.Years))
	case query.Year != "":
		parts = append(parts, query.Year)
	}
	if month, err := strconv.Atoi(query.Month); err == nil && month >= 1 && month <= 12 {
		parts = append(parts, time.Month(month).String())
	}
	if query.Day != "" {
		parts = append(parts, "day "+query.Day)
	}
	return strings.Join(parts, " - ")
}
