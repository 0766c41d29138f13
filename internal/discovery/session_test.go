package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timecapsule-api/internal/models"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

type listerResult struct {
	events []models.Event
	err    error
}

// listerStub answers by encoded query. Queries with a gate block until the gate is closed.
type listerStub struct {
	mu      sync.Mutex
	calls   []Query
	results map[string]listerResult
	gates   map[string]chan struct{}
}

func newListerStub() *listerStub {
	return &listerStub{results: map[string]listerResult{}, gates: map[string]chan struct{}{}}
}

func (l *listerStub) on(q string, events []models.Event, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[q] = listerResult{events: events, err: err}
}

func (l *listerStub) gate(q string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan struct{})
	l.gates[q] = ch
	return ch
}

func (l *listerStub) ListEvents(ctx context.Context, q Query) ([]models.Event, error) {
	l.mu.Lock()
	l.calls = append(l.calls, q)
	gate := l.gates[q.String()]
	result := l.results[q.String()]
	l.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return result.events, result.err
}

func (l *listerStub) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func newTestSession(l Lister, opts ...Option) *Session {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewSession(l, opts...)
}

func TestSessionStartIssuesSingleFeaturedFetch(t *testing.T) {
	lister := newListerStub()
	featured := []models.Event{{ID: "e1", Title: "ARPANET"}}
	lister.on("/api/events/featured", featured, nil)

	s := newTestSession(lister)
	seq := s.Start(context.Background(), nil)
	assert.Equal(t, uint64(1), seq)
	assert.Zero(t, s.Start(context.Background(), nil), "second start must not fetch again")
	s.Wait()

	assert.Equal(t, 1, lister.callCount())
	view := s.View()
	assert.Equal(t, featured, view.Events)
	assert.False(t, view.Loading)
	assert.Empty(t, view.Err)
	assert.Empty(t, s.QueryString())
}

func TestSessionStartFromDeepLink(t *testing.T) {
	lister := newListerStub()
	s := newTestSession(lister)

	s.Start(context.Background(), url.Values{"category_id": {"5"}, "sort": {"newest"}})
	s.Wait()

	require.Equal(t, 1, lister.callCount())
	assert.Equal(t, Query{Kind: KindByCategory, CategoryID: "5", Sort: models.EventSortNewest}, lister.calls[0])
	assert.Equal(t, "category_id=5&sort=newest", s.QueryString())
}

func TestSessionUnchangedStateIssuesNoFetch(t *testing.T) {
	lister := newListerStub()
	s := newTestSession(lister)
	s.Start(context.Background(), nil)

	first := s.ApplyUpdate(context.Background(), Update{}.WithSort(models.EventSortNewest))
	second := s.ApplyUpdate(context.Background(), Update{}.WithSort(models.EventSortNewest))
	s.Wait()

	assert.NotZero(t, first)
	assert.Zero(t, second)
	assert.Equal(t, 2, lister.callCount())
}

func TestSessionUpdateBeforeStartCoalesces(t *testing.T) {
	lister := newListerStub()
	s := newTestSession(lister)

	assert.Zero(t, s.ApplyUpdate(context.Background(), Update{}.WithCategory("3")))
	assert.Equal(t, uint64(1), s.Start(context.Background(), url.Values{"sort": {"newest"}}))
	s.Wait()

	require.Equal(t, 1, lister.callCount())
	assert.Equal(t, Query{Kind: KindByCategory, CategoryID: "3", Sort: models.EventSortNewest}, lister.calls[0])
}

func TestSessionStartWithUpdateIssuesOneFetch(t *testing.T) {
	lister := newListerStub()
	s := newTestSession(lister)

	update := Update{}.WithDate(Date{Year: 1969, Month: 7, Day: 20}).WithYearsText("1969")
	seq := s.Start(context.Background(), url.Values{"sort": {"newest"}}, update)
	s.Wait()

	assert.Equal(t, uint64(1), seq)
	require.Equal(t, 1, lister.callCount())
	assert.Equal(t, "/api/events?day=20&month=7&sort=newest&year=1969", lister.calls[0].String())
	assert.Equal(t, "sort=newest", s.QueryString())
}

func TestSessionDiscardsStaleResponse(t *testing.T) {
	lister := newListerStub()
	s := newTestSession(lister)
	ctx := context.Background()

	s.Start(ctx, nil)
	s.Wait()

	slowQuery := "/api/events?day=9&month=1&year=2007"
	fastQuery := "/api/events?day=9&month=1&year=2010"
	slowEvents := []models.Event{{ID: "slow", Year: 2007}}
	fastEvents := []models.Event{{ID: "fast", Year: 2010}}
	lister.on(slowQuery, slowEvents, nil)
	lister.on(fastQuery, fastEvents, nil)
	slowGate := lister.gate(slowQuery)

	first := s.ApplyUpdate(ctx, Update{}.WithGranularity(GranularityDaily).WithDate(Date{Year: 2007, Month: 1, Day: 9}))
	second := s.ApplyUpdate(ctx, Update{}.WithYearsText("2010"))
	require.Greater(t, second, first)

	require.Eventually(t, func() bool { return s.View().Seq == second }, time.Second, 5*time.Millisecond)
	close(slowGate)
	s.Wait()

	view := s.View()
	assert.Equal(t, second, view.Seq)
	assert.Equal(t, fastEvents, view.Events)
	assert.False(t, view.Loading)
}

func TestSessionFailureKeepsPreviousEvents(t *testing.T) {
	lister := newListerStub()
	previous := []models.Event{{ID: "e1"}}
	lister.on("/api/events/featured", previous, nil)
	lister.on("/api/events?category_id=8", nil, appErrors.New("BAD_GATEWAY", http.StatusBadGateway, "catalog unavailable"))

	s := newTestSession(lister)
	s.Start(context.Background(), nil)
	s.Wait()
	s.SetCategoryFromExternal(context.Background(), "8")
	s.Wait()

	view := s.View()
	assert.Equal(t, "catalog unavailable", view.Err)
	assert.Empty(t, view.Notice)
	assert.Equal(t, previous, view.Events)
	assert.Equal(t, "8", view.State.CategoryID)
}

func TestSessionGenericFailureMessage(t *testing.T) {
	lister := newListerStub()
	lister.on("/api/events/featured", nil, errors.New("dial tcp: connection refused"))

	s := newTestSession(lister)
	s.Start(context.Background(), nil)
	s.Wait()

	assert.Equal(t, "An error occurred while fetching events.", s.View().Err)
}

func TestSessionEmptyResultIsNotice(t *testing.T) {
	lister := newListerStub()
	lister.on("/api/events/featured", []models.Event{}, nil)

	s := newTestSession(lister)
	s.Start(context.Background(), nil)
	s.Wait()

	view := s.View()
	assert.Equal(t, NoticeEmpty, view.Notice)
	assert.Empty(t, view.Err)
}

func TestSessionResetReturnsToFeatured(t *testing.T) {
	lister := newListerStub()
	s := newTestSession(lister)
	s.Start(context.Background(), nil)
	s.ApplyUpdate(context.Background(), Update{}.WithYearsText("1984"))
	s.Wait()
	require.Equal(t, ModeFiltered, s.State().Mode)

	s.Reset(context.Background(), nil)
	s.Wait()

	assert.Equal(t, ModeFeatured, s.State().Mode)
	assert.Equal(t, 3, lister.callCount())
	assert.Equal(t, KindFeatured, lister.calls[2].Kind)
}

func TestSessionNotifiesObservers(t *testing.T) {
	lister := newListerStub()
	var (
		mu    sync.Mutex
		views []View
	)
	s := newTestSession(lister, WithObserver(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		views = append(views, v)
	}))

	s.Start(context.Background(), nil)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, views, 2)
	assert.True(t, views[0].Loading)
	assert.False(t, views[1].Loading)
	assert.Equal(t, uint64(1), views[1].Seq)
	assert.False(t, s.View().Loading)
}

func TestSessionObserverNeverSeesOlderView(t *testing.T) {
	lister := newListerStub()
	lister.on("/api/events/featured", []models.Event{{ID: "featured"}}, nil)
	lister.on("/api/events?category_id=7", []models.Event{{ID: "cat7"}}, nil)

	release := make(chan struct{})
	var (
		mu      sync.Mutex
		views   []View
		blocked bool
	)
	s := newTestSession(lister, WithObserver(func(v View) {
		mu.Lock()
		views = append(views, v)
		hold := !blocked && v.Seq == 1 && !v.Loading
		if hold {
			blocked = true
		}
		mu.Unlock()
		if hold {
			<-release
		}
	}))

	ctx := context.Background()
	s.Start(ctx, nil)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return blocked
	}, time.Second, 5*time.Millisecond)

	second := s.ApplyUpdate(ctx, Update{}.WithCategory("7"))
	require.Eventually(t, func() bool {
		v := s.View()
		return v.Seq == second && !v.Loading
	}, time.Second, 5*time.Millisecond)
	close(release)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	last := views[len(views)-1]
	assert.Equal(t, second, last.Seq)
	assert.False(t, last.Loading)
	assert.Equal(t, ModeFiltered, last.State.Mode)
	assert.Equal(t, []models.Event{{ID: "cat7"}}, last.Events)
	for i := 1; i < len(views); i++ {
		assert.GreaterOrEqual(t, views[i].Seq, views[i-1].Seq)
	}
}

func TestSessionResetClearsErrorAndNotice(t *testing.T) {
	lister := newListerStub()
	lister.on("/api/events?category_id=8", nil, errors.New("boom"))
	gate := lister.gate("/api/events/featured")

	var (
		mu    sync.Mutex
		views []View
	)
	s := newTestSession(lister, WithObserver(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		views = append(views, v)
	}))
	ctx := context.Background()
	s.Start(ctx, url.Values{"category_id": {"8"}})
	s.Wait()
	require.NotEmpty(t, s.View().Err)

	s.Reset(ctx, nil)
	loading := s.View()
	assert.True(t, loading.Loading)
	assert.Empty(t, loading.Err)
	assert.Empty(t, loading.Notice)
	assert.Nil(t, loading.Events)
	close(gate)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, v := range views {
		if v.State.Mode == ModeFeatured {
			assert.Empty(t, v.Err)
		}
	}
}
