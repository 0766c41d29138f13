package trivia

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/models"
)

const (
	MsgInvalidGuess = "Please enter a valid year."
	MsgLoadFailed   = "Could not load a question. Please try again."
)

// Source hands out trivia questions.
type Source interface {
	Trivia(ctx context.Context) (*models.TriviaQuestion, error)
}

// Outcome describes the result of one guess.
type Outcome struct {
	Correct  bool
	Valid    bool
	Feedback string
	Score    int
}

// Game keeps the current question and a running score for one player.
type Game struct {
	source Source
	logger *zap.Logger

	mu       sync.Mutex
	question *models.TriviaQuestion
	answered bool
	score    int
	feedback string
}

// NewGame returns a game drawing questions from source.
func NewGame(source Source, logger *zap.Logger) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Game{source: source, logger: logger}
}

// Next replaces the current question. On failure the feedback explains that no question could be loaded.
func (g *Game) Next(ctx context.Context) (*models.TriviaQuestion, error) {
	question, err := g.source.Trivia(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.answered = false
	if err != nil {
		g.question = nil
		g.feedback = MsgLoadFailed
		g.logger.Warn("failed to load trivia question", zap.Error(err))
		return nil, err
	}
	g.question = question
	g.feedback = ""
	return question, nil
}

// Guess checks a free-text year against the current question. Only the first valid guess per question
// can change the score.
func (g *Game) Guess(input string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.question == nil {
		return Outcome{Score: g.score}, fmt.Errorf("no question loaded")
	}

	year, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		g.feedback = MsgInvalidGuess
		return Outcome{Feedback: g.feedback, Score: g.score}, nil
	}

	outcome := Outcome{Valid: true, Correct: year == g.question.CorrectYear}
	if outcome.Correct {
		g.feedback = fmt.Sprintf("Correct! The year was %d.", g.question.CorrectYear)
		if !g.answered {
			g.score++
		}
	} else {
		g.feedback = fmt.Sprintf("Not quite. The correct year was %d.", g.question.CorrectYear)
	}
	g.answered = true

	outcome.Feedback = g.feedback
	outcome.Score = g.score
	return outcome, nil
}

// Question returns the current question, if any.
func (g *Game) Question() *models.TriviaQuestion {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.question
}

// Score returns the running score.
func (g *Game) Score() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.score
}

// Feedback returns the message for the last action.
func (g *Game) Feedback() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.feedback
}
