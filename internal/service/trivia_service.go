package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

type randomEventSource interface {
	Random(ctx context.Context, limit int) ([]models.Event, error)
}

// TriviaService picks a random event and asks for its year.
type TriviaService struct {
	events randomEventSource
	logger *zap.Logger
}

// NewTriviaService constructs a TriviaService.
func NewTriviaService(events randomEventSource, logger *zap.Logger) *TriviaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriviaService{events: events, logger: logger}
}

// Question returns a new trivia question.
func (s *TriviaService) Question(ctx context.Context) (*models.TriviaQuestion, error) {
	events, err := s.events.Random(ctx, 1)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to pick trivia event")
	}
	if len(events) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no events available for trivia")
	}
	return &models.TriviaQuestion{Description: events[0].Description, CorrectYear: events[0].Year}, nil
}
