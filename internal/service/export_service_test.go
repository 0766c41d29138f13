package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

type eventListerStub struct {
	events []models.Event
	err    error
	last   dto.EventListQuery
}

func (s *eventListerStub) List(ctx context.Context, query dto.EventListQuery) ([]models.Event, error) {
	s.last = query
	return s.events, s.err
}

func exportFixture() []models.Event {
	link := "https://example.com/www"
	return []models.Event{{
		ID:          "11111111-1111-1111-1111-111111111111",
		Title:       "World Wide Web proposal",
		Description: "Tim Berners-Lee submits his proposal.",
		Year:        1989, Month: 3, Day: 12,
		SourceLink: &link,
		User:       models.EventOwner{ID: "u1", Username: "archivist"},
		EventCategories: []models.EventCategory{
			{CategoryID: "c1", Category: models.CategoryRef{ID: "c1", Name: "Internet"}},
			{CategoryID: "c2", Category: models.CategoryRef{ID: "c2", Name: "Standards"}},
		},
	}}
}

func newExportServiceForTest(lister eventLister) *ExportService {
	svc := NewExportService(lister, zap.NewNop(), nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestExportServiceCSV(t *testing.T) {
	lister := &eventListerStub{events: exportFixture()}
	svc := newExportServiceForTest(lister)

	file, err := svc.Export(context.Background(), dto.EventExportQuery{EventListQuery: dto.EventListQuery{Year: "1989"}})
	require.NoError(t, err)

	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "time-capsule-20240615-100000.csv", file.Filename)
	assert.Equal(t, "1989", lister.last.Year)

	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Title,Categories,Submitted By,Source", lines[0])
	assert.Equal(t, `1989-03-12,World Wide Web proposal,"Internet, Standards",archivist,https://example.com/www`, lines[1])
}

func TestExportServicePDFAndICS(t *testing.T) {
	svc := newExportServiceForTest(&eventListerStub{events: exportFixture()})

	pdf, err := svc.Export(context.Background(), dto.EventExportQuery{Format: "PDF"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, strings.HasPrefix(string(pdf.Payload), "%PDF"))

	ics, err := svc.Export(context.Background(), dto.EventExportQuery{Format: "ics"})
	require.NoError(t, err)
	assert.Equal(t, "text/calendar", ics.ContentType)
	assert.True(t, strings.HasSuffix(ics.Filename, ".ics"))
	assert.Contains(t, string(ics.Payload), "World Wide Web proposal (1989)")
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	lister := &eventListerStub{}
	svc := newExportServiceForTest(lister)

	_, err := svc.Export(context.Background(), dto.EventExportQuery{Format: "xlsx"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportServicePropagatesListErrors(t *testing.T) {
	svc := newExportServiceForTest(&eventListerStub{err: appErrors.Wrap(errors.New("boom"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed")})

	_, err := svc.Export(context.Background(), dto.EventExportQuery{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestExportTitle(t *testing.T) {
	assert.Equal(t, "Tech Time Capsule - years 1969, 1989 - March", exportTitle(dto.EventListQuery{Years: "1969, 1989", Year: "2000", Month: "3"}))
	assert.Equal(t, "Tech Time Capsule - 2007 - day 9", exportTitle(dto.EventListQuery{Year: "2007", Day: "9"}))
	assert.Equal(t, "Tech Time Capsule", exportTitle(dto.EventListQuery{Month: "13"}))
}
