package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	"github.com/noah-isme/timecapsule-api/internal/wikipedia"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
	"github.com/noah-isme/timecapsule-api/pkg/jobs"
)

const (
	importJobType  = "wikipedia_on_this_day"
	maxImportTitle = 120
)

type onThisDayFeed interface {
	OnThisDay(ctx context.Context, month, day int) ([]wikipedia.OnThisDayEvent, error)
}

type importEventWriter interface {
	ExistsByYearTitle(ctx context.Context, year int, title string) (bool, error)
	Create(ctx context.Context, event *models.Event) error
}

type archivistStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type importJobStore interface {
	Create(ctx context.Context, job *models.ImportJob) error
	FindByID(ctx context.Context, id string) (*models.ImportJob, error)
	MarkRunning(ctx context.Context, id string) error
	Finish(ctx context.Context, id string, status models.ImportStatus, result models.ImportResult, message *string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type importRunner interface {
	Run(ctx context.Context, req dto.ImportRequest) (models.ImportResult, error)
}

// ImporterConfig tunes the "on this day" ingestion.
type ImporterConfig struct {
	Archivist string
	Keywords  []string
	Delay     time.Duration
	FastDelay time.Duration
}

// Importer pulls Wikipedia "on this day" entries into the catalog.
type Importer struct {
	feed    onThisDayFeed
	events  importEventWriter
	users   archivistStore
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ImporterConfig
	sleep   func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	archivistID string
}

// NewImporter constructs an Importer.
func NewImporter(feed onThisDayFeed, events importEventWriter, users archivistStore, metrics *MetricsService, logger *zap.Logger, cfg ImporterConfig) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Archivist == "" {
		cfg.Archivist = "Archivist"
	}
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, k := range cfg.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	cfg.Keywords = keywords
	return &Importer{feed: feed, events: events, users: users, metrics: metrics, logger: logger, cfg: cfg, sleep: sleepContext}
}

// Run imports every matching entry for the requested range. A day whose feed cannot be
// fetched is counted as failed and skipped; the run fails only when no day could be read.
func (i *Importer) Run(ctx context.Context, req dto.ImportRequest) (models.ImportResult, error) {
	var result models.ImportResult
	if err := checkImportRange(req); err != nil {
		return result, err
	}

	ownerID, err := i.archivist(ctx)
	if err != nil {
		return result, err
	}

	delay := i.cfg.Delay
	if req.Fast {
		delay = i.cfg.FastDelay
	}

	days := importDays(req)
	for n, d := range days {
		if n > 0 && delay > 0 {
			if err := i.sleep(ctx, delay); err != nil {
				return result, err
			}
		}

		entries, err := i.feed.OnThisDay(ctx, d.month, d.day)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			i.logger.Warn("skipping day", zap.Int("month", d.month), zap.Int("day", d.day), zap.Error(err))
			continue
		}
		result.DaysFetched++

		for _, entry := range entries {
			if entry.Year <= 0 || (req.Year != 0 && entry.Year != req.Year) || !i.matches(entry.Text) {
				continue
			}
			created, err := i.store(ctx, ownerID, d, entry)
			if err != nil {
				return result, err
			}
			if created {
				result.Created++
			} else {
				result.Skipped++
			}
		}
	}

	i.metrics.RecordImport(result.Created, result.Skipped)
	i.logger.Info("import finished",
		zap.Int("year", req.Year),
		zap.Int("days_fetched", result.DaysFetched),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)

	if result.DaysFetched == 0 && result.Failed > 0 {
		return result, appErrors.Clone(appErrors.ErrUnavailable, "on this day feed unavailable")
	}
	return result, nil
}

func (i *Importer) matches(text string) bool {
	if len(i.cfg.Keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, k := range i.cfg.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func (i *Importer) store(ctx context.Context, ownerID string, d calendarDay, entry wikipedia.OnThisDayEvent) (bool, error) {
	text := strings.TrimSpace(entry.Text)
	title := importTitle(text)

	exists, err := i.events.ExistsByYearTitle(ctx, entry.Year, title)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate event")
	}
	if exists {
		return false, nil
	}

	event := &models.Event{
		ID:          uuid.NewString(),
		Title:       title,
		Description: text,
		Year:        entry.Year,
		Month:       d.month,
		Day:         d.day,
		UserID:      ownerID,
	}
	if len(entry.Pages) > 0 {
		event.SourceLink = optionalString(entry.Pages[0].URL())
		event.ImageURL = optionalString(entry.Pages[0].ImageURL())
	}
	if err := i.events.Create(ctx, event); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store imported event")
	}
	return true, nil
}

// archivist resolves, creating on first use, the account that owns imported events.
func (i *Importer) archivist(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.archivistID != "" {
		return i.archivistID, nil
	}

	user, err := i.users.FindByUsername(ctx, i.cfg.Archivist)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
		if hashErr != nil {
			return "", appErrors.Wrap(hashErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash archivist password")
		}
		user = &models.User{ID: uuid.NewString(), Username: i.cfg.Archivist, PasswordHash: string(hash), CreatedAt: time.Now().UTC()}
		if err := i.users.Create(ctx, user); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create archivist")
		}
		i.logger.Info("archivist account created", zap.String("username", user.Username))
	default:
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archivist")
	}

	i.archivistID = user.ID
	return user.ID, nil
}

type calendarDay struct {
	month int
	day   int
}

func importDays(req dto.ImportRequest) []calendarDay {
	if req.Month != nil && req.Day != nil {
		return []calendarDay{{month: *req.Month, day: *req.Day}}
	}
	months := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if req.Month != nil {
		months = []int{*req.Month}
	}
	var days []calendarDay
	for _, m := range months {
		for d := 1; d <= daysInMonth(req.Year, m); d++ {
			days = append(days, calendarDay{month: m, day: d})
		}
	}
	return days
}

func checkImportRange(req dto.ImportRequest) error {
	if req.Day != nil && req.Month == nil {
		return appErrors.Clone(appErrors.ErrValidation, "day requires month")
	}
	if req.Year == 0 && (req.Month == nil || req.Day == nil) {
		return appErrors.Clone(appErrors.ErrValidation, "year is required unless month and day are both set")
	}
	if req.Month != nil && req.Day != nil {
		year := req.Year
		if year == 0 {
			year = 2000
		}
		if *req.Day > daysInMonth(year, *req.Month) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("month %d has no day %d", *req.Month, *req.Day))
		}
	}
	return nil
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func importTitle(text string) string {
	if utf8.RuneCountInString(text) <= maxImportTitle {
		return text
	}
	runes := []rune(text)
	cut := strings.TrimSpace(string(runes[:maxImportTitle-3]))
	if idx := strings.LastIndex(cut, " "); idx > maxImportTitle/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ImportService queues importer runs and reports their status.
type ImportService struct {
	repo      importJobStore
	queue     jobDispatcher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewImportService constructs an ImportService.
func NewImportService(repo importJobStore, queue jobDispatcher, validate *validator.Validate, logger *zap.Logger) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{repo: repo, queue: queue, validator: validate, logger: logger, now: time.Now}
}

// Enqueue validates and queues an import. requestedBy is empty for scheduled runs.
func (s *ImportService) Enqueue(ctx context.Context, requestedBy string, req dto.ImportRequest) (*models.ImportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	if err := checkImportRange(req); err != nil {
		return nil, err
	}

	job := &models.ImportJob{
		ID:         uuid.NewString(),
		Year:       req.Year,
		Month:      req.Month,
		Day:        req.Day,
		Fast:       req.Fast,
		Status:     models.ImportStatusQueued,
		EnqueuedAt: s.now().UTC(),
	}
	if requestedBy != "" {
		job.RequestedBy = &requestedBy
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create import job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: importJobType, Payload: req}); err != nil {
		msg := "failed to enqueue job"
		if finishErr := s.repo.Finish(ctx, job.ID, models.ImportStatusFailed, models.ImportResult{}, &msg); finishErr != nil {
			s.logger.Warn("failed to mark import job failed", zap.String("job_id", job.ID), zap.Error(finishErr))
		}
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "import queue is full, try again later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue import job")
	}

	s.logger.Info("import queued", zap.String("job_id", job.ID), zap.Int("year", job.Year), zap.Bool("fast", job.Fast))
	return job, nil
}

// Status returns the stored state of a job.
func (s *ImportService) Status(ctx context.Context, id string) (*models.ImportJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import job")
	}
	return job, nil
}

// Schedule registers a cron entry that queues today's calendar day across all years.
func (s *ImportService) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		today := s.now()
		month, day := int(today.Month()), today.Day()
		if _, err := s.Enqueue(context.Background(), "", dto.ImportRequest{Month: &month, Day: &day}); err != nil {
			s.logger.Error("scheduled import failed to queue", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid import schedule %q: %w", spec, err)
	}
	return c, nil
}

// ImportWorker bridges queue jobs to the Importer.
type ImportWorker struct {
	repo     importJobStore
	importer importRunner
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewImportWorker constructs a worker.
func NewImportWorker(repo importJobStore, importer importRunner, metrics *MetricsService, logger *zap.Logger) *ImportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportWorker{repo: repo, importer: importer, metrics: metrics, logger: logger}
}

// Handle processes a queue job. Errors are returned so the queue can retry.
func (w *ImportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if err := w.repo.MarkRunning(ctx, job.ID); err != nil {
		w.logger.Warn("failed to mark import running", zap.String("job_id", job.ID), zap.Error(err))
	}

	result, err := w.importer.Run(ctx, dto.ImportRequest{Year: record.Year, Month: record.Month, Day: record.Day, Fast: record.Fast})
	if err != nil {
		return err
	}
	if err := w.repo.Finish(ctx, job.ID, models.ImportStatusCompleted, result, nil); err != nil {
		w.logger.Warn("failed to mark import completed", zap.String("job_id", job.ID), zap.Error(err))
	}
	return nil
}

// OnResult records the final outcome once the queue stops retrying.
func (w *ImportWorker) OnResult(job jobs.Job, err error) {
	if err == nil {
		w.metrics.RecordImportJob(string(models.ImportStatusCompleted))
		return
	}
	w.metrics.RecordImportJob(string(models.ImportStatusFailed))
	msg := err.Error()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if finishErr := w.repo.Finish(ctx, job.ID, models.ImportStatusFailed, models.ImportResult{}, &msg); finishErr != nil {
		w.logger.Warn("failed to mark import failed", zap.String("job_id", job.ID), zap.Error(finishErr))
	}
}
