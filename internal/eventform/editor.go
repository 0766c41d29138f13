package eventform

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

// ErrNotOwner is returned when loading an event submitted by someone else. The form must not be shown.
var ErrNotOwner = appErrors.Clone(appErrors.ErrForbidden, "you can only edit your own events")

// Backend is the subset of the API the editor needs.
type Backend interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CreateEvent(ctx context.Context, payload dto.EventPayload) (*models.Event, error)
	UpdateEvent(ctx context.Context, id string, payload dto.EventPayload) (*models.Event, error)
}

// Form is a loaded authoring form.
type Form struct {
	EventID string
	Catalog []models.Category
	Draft   Draft
}

// Editing reports whether the form edits an existing event.
func (f *Form) Editing() bool {
	return f.EventID != ""
}

// Editor loads and submits event forms on behalf of one user.
type Editor struct {
	backend   Backend
	userID    string
	validator *Validator
	logger    *zap.Logger
}

// NewEditor constructs an editor for the given user.
func NewEditor(backend Backend, userID string, now func() time.Time, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Editor{backend: backend, userID: userID, validator: NewValidator(now), logger: logger}
}

// Load fetches the category catalog and, when eventID is set, the event being edited. Both requests run
// concurrently and the form is returned only once both have completed.
func (e *Editor) Load(ctx context.Context, eventID string) (*Form, error) {
	form := &Form{EventID: eventID, Draft: Draft{Categories: NewAssignmentSet()}}

	var event *models.Event
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		catalog, err := e.backend.ListCategories(gctx)
		if err != nil {
			return err
		}
		form.Catalog = catalog
		return nil
	})
	if eventID != "" {
		g.Go(func() error {
			found, err := e.backend.GetEvent(gctx, eventID)
			if err != nil {
				return err
			}
			event = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if event != nil {
		if event.UserID != e.userID {
			e.logger.Warn("refusing to edit event owned by another user", zap.String("event_id", eventID), zap.String("owner_id", event.UserID))
			return nil, ErrNotOwner
		}
		form.Draft = DraftFromEvent(event)
	}
	return form, nil
}

// Validate runs the draft validation against the form's catalog.
func (e *Editor) Validate(form *Form) ValidationErrors {
	return e.validator.Validate(form.Draft, form.Catalog)
}

// Submit validates the form and creates or updates the event. Validation failures are returned as
// ValidationErrors and nothing is sent.
func (e *Editor) Submit(ctx context.Context, form *Form) (*models.Event, error) {
	if errs := e.Validate(form); len(errs) > 0 {
		return nil, errs
	}

	payload := form.Draft.Payload()
	if form.Editing() {
		event, err := e.backend.UpdateEvent(ctx, form.EventID, payload)
		if err != nil {
			return nil, err
		}
		return event, nil
	}
	event, err := e.backend.CreateEvent(ctx, payload)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// IsValidation reports whether err carries field-scoped validation messages.
func IsValidation(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}
