package discovery

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

const (
	// NoticeEmpty is shown when a query succeeds without results.
	NoticeEmpty = "No events found for this selection."
	// defaultFetchError is used when the failure carries no readable message.
	defaultFetchError = "An error occurred while fetching events."
)

// Lister executes listing queries against the catalog.
type Lister interface {
	ListEvents(ctx context.Context, q Query) ([]models.Event, error)
}

// View is a snapshot of what the discovery page shows.
type View struct {
	State   FilterState
	Query   Query
	Events  []models.Event
	Loading bool
	Err     string
	Notice  string
	// Seq is the sequence number of the response currently displayed.
	Seq uint64
}

// Option customises a Session.
type Option func(*Session)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for the default picker values.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers a callback invoked after every view change. Observers run on a delivery
// goroutine in commit order and may call back into the session.
func WithObserver(fn func(View)) Option {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// Session owns one filter state and keeps the listing in sync with it.
type Session struct {
	lister    Lister
	logger    *zap.Logger
	now       func() time.Time
	observers []func(View)

	mu          sync.Mutex
	initialized bool
	state       FilterState
	held        []Update
	issued      uint64
	view        View
	outbox      []View
	delivering  bool

	inflight sync.WaitGroup
}

// NewSession constructs a session backed by lister.
func NewSession(lister Lister, opts ...Option) *Session {
	s := &Session{
		lister: lister,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initialises the state from the entry query string, applies any updates given here or committed
// before Start, and issues a single fetch for the result. Calling Start after a fetch was already issued is a
// no-op returning 0.
func (s *Session) Start(ctx context.Context, entry url.Values, updates ...Update) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued > 0 {
		return 0
	}
	s.initLocked(entry)
	for _, u := range append(s.held, updates...) {
		s.state = s.state.Apply(u)
	}
	s.held = nil
	return s.issueLocked(ctx)
}

// ApplyUpdate commits a partial change. It returns the sequence number of the fetch it issued, or 0
// when the state did not change. Updates committed before Start are held and fetched by Start.
func (s *Session) ApplyUpdate(ctx context.Context, u Update) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued == 0 {
		if !s.initialized {
			s.initLocked(nil)
		}
		s.state = s.state.Apply(u)
		s.held = append(s.held, u)
		return 0
	}
	next := s.state.Apply(u)
	if next == s.state {
		return 0
	}
	s.state = next
	return s.issueLocked(ctx)
}

// SetCategoryFromExternal selects a category coming from outside the filter controls, such as a
// category link on another page.
func (s *Session) SetCategoryFromExternal(ctx context.Context, categoryID string) uint64 {
	return s.ApplyUpdate(ctx, Update{}.WithCategory(categoryID))
}

// Reset reinitialises the session as if the page had been opened with entry, re-enabling featured mode.
func (s *Session) Reset(ctx context.Context, entry url.Values) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(entry)
	s.held = nil
	s.view.Events = nil
	s.view.Err = ""
	s.view.Notice = ""
	return s.issueLocked(ctx)
}

// State returns the current filter state.
func (s *Session) State() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns the current view snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// QueryString returns the deep link for the current state.
func (s *Session) QueryString() string {
	return EncodeDeepLink(s.State()).Encode()
}

// Wait blocks until every issued fetch has returned and its view has been delivered.
func (s *Session) Wait() {
	s.inflight.Wait()
}

func (s *Session) initLocked(entry url.Values) {
	s.state = InitialState(s.now(), ParseDeepLink(entry))
	s.initialized = true
}

func (s *Session) issueLocked(ctx context.Context) uint64 {
	s.issued++
	seq := s.issued
	query := Resolve(s.state)

	s.view.State = s.state
	s.view.Query = query
	s.view.Loading = true

	s.inflight.Add(1)
	go s.fetch(ctx, seq, query)

	s.logger.Debug("discovery fetch issued", zap.Uint64("seq", seq), zap.String("query", query.String()))
	s.publishLocked()
	return seq
}

func (s *Session) fetch(ctx context.Context, seq uint64, query Query) {
	defer s.inflight.Done()

	events, err := s.lister.ListEvents(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.issued {
		s.logger.Debug("discarding stale discovery response", zap.Uint64("seq", seq))
		return
	}

	s.view.Loading = false
	s.view.Seq = seq
	if err != nil {
		s.view.Err = errorMessage(err)
		s.view.Notice = ""
		s.logger.Warn("discovery fetch failed", zap.String("query", query.String()), zap.Error(err))
	} else {
		s.view.Events = events
		s.view.Err = ""
		s.view.Notice = ""
		if len(events) == 0 {
			s.view.Notice = NoticeEmpty
		}
	}
	s.publishLocked()
}

func (s *Session) snapshotLocked() View {
	view := s.view
	if view.Events != nil {
		view.Events = append([]models.Event(nil), view.Events...)
	}
	return view
}

// publishLocked queues the current view for observers. Views are queued in the order the state changed
// and delivered one at a time by a single goroutine, so an observer never sees an older view after a newer one.
func (s *Session) publishLocked() {
	if len(s.observers) == 0 {
		return
	}
	s.outbox = append(s.outbox, s.snapshotLocked())
	if s.delivering {
		return
	}
	s.delivering = true
	s.inflight.Add(1)
	go s.deliver()
}

func (s *Session) deliver() {
	defer s.inflight.Done()
	for {
		s.mu.Lock()
		if len(s.outbox) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		view := s.outbox[0]
		s.outbox = s.outbox[1:]
		s.mu.Unlock()

		for _, fn := range s.observers {
			fn(view)
		}
	}
}

func errorMessage(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return defaultFetchError
}
