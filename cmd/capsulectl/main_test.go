package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	"github.com/noah-isme/timecapsule-api/pkg/config"
)

// fakeAPI records requests and serves canned envelopes.
type fakeAPI struct {
	mu       sync.Mutex
	requests []string
	created  *dto.EventPayload
	owner    string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, status int, data any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
	}
	mux.HandleFunc("/api/events/featured", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		write(w, http.StatusOK, []models.Event{{ID: "f1", Title: "ENIAC unveiled", Year: 1946, Month: 2, Day: 14}})
	})
	mux.HandleFunc("/api/events/export", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="time-capsule-19690720-000000.csv"`)
		_, _ = io.WriteString(w, "Date,Title\n1969-07-20,Apollo 11\n")
	})
	mux.HandleFunc("/api/events/evt-1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		write(w, http.StatusOK, models.Event{ID: "evt-1", Title: "Linux", Year: 1991, Month: 8, Day: 25, UserID: f.owner})
	})
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.Method == http.MethodPost {
			var payload dto.EventPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			f.mu.Lock()
			f.created = &payload
			f.mu.Unlock()
			write(w, http.StatusCreated, models.Event{ID: "new-1", Title: payload.Title, Year: payload.Year, Month: payload.Month, Day: payload.Day})
			return
		}
		if r.URL.Query().Get("year") == "1800" {
			write(w, http.StatusOK, []models.Event{})
			return
		}
		write(w, http.StatusOK, []models.Event{{
			ID: "e1", Title: "Apollo 11", Year: 1969, Month: 7, Day: 20,
			EventCategories: []models.EventCategory{{Category: models.CategoryRef{ID: "c1", Name: "Space"}}},
		}})
	})
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		write(w, http.StatusOK, []models.Category{{ID: "c1", Name: "Space"}})
	})
	mux.HandleFunc("/api/check_session", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		write(w, http.StatusOK, models.UserInfo{ID: "user-1", Username: "ada"})
	})
	mux.HandleFunc("/api/trivia", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		write(w, http.StatusOK, models.TriviaQuestion{Description: "Apollo 11 lands", CorrectYear: 1969})
	})
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		write(w, http.StatusOK, models.LoginResponse{AccessToken: "tok-123", User: models.UserInfo{ID: "user-1", Username: "ada"}})
	})
	return mux
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	f.requests = append(f.requests, target)
}

func (f *fakeAPI) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func run(t *testing.T, api *fakeAPI, stdin string, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	a := &app{
		cfg:    &config.Config{Client: config.ClientConfig{Timeout: 5 * time.Second}},
		logger: zap.NewNop(),
	}
	var out bytes.Buffer
	root := newRootCommand(a, strings.NewReader(stdin), &out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--api", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	return -1
}

func TestDiscoverStartsFeatured(t *testing.T) {
	api := &fakeAPI{}
	out, err := run(t, api, "", "discover")
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /api/events/featured"}, api.seen())
	assert.Contains(t, out, "ENIAC unveiled")
	assert.NotContains(t, out, "link:")
}

func TestDiscoverDeepLinkAndYears(t *testing.T) {
	api := &fakeAPI{}
	out, err := run(t, api, "", "discover", "--link", "?sort=newest", "--date", "1969-07-20", "--years", "1969")
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /api/events?day=20&month=7&sort=newest&year=1969"}, api.seen())
	assert.Contains(t, out, "1969-07-20  Apollo 11  Space")
	assert.Contains(t, out, "link:  ?sort=newest")
}

func TestDiscoverCategoryIgnoresDates(t *testing.T) {
	api := &fakeAPI{}
	out, err := run(t, api, "", "discover", "--category", "c1")
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /api/events?category_id=c1"}, api.seen())
	assert.Contains(t, out, "link:  ?category_id=c1")
}

func TestDiscoverEmptyNotice(t *testing.T) {
	api := &fakeAPI{}
	out, err := run(t, api, "", "discover", "--years", "1800")
	require.NoError(t, err)
	require.Len(t, api.seen(), 1)
	assert.Contains(t, out, "No events found for this selection.")
}

func TestDiscoverRejectsBadDate(t *testing.T) {
	_, err := run(t, &fakeAPI{}, "", "discover", "--date", "20-07-1969")
	assert.Equal(t, 3, exitCode(err))
}

func TestTriviaKeepsScore(t *testing.T) {
	api := &fakeAPI{}
	out, err := run(t, api, "abc\n1969\n1970\n", "trivia", "--rounds", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "Please enter a valid year.")
	assert.Contains(t, out, "Correct! The year was 1969.")
	assert.Contains(t, out, "Not quite. The correct year was 1969.")
	assert.Contains(t, out, "Final score: 1")
}

func TestLoginPrintsToken(t *testing.T) {
	out, err := run(t, &fakeAPI{}, "", "login", "--username", "ada", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "export CAPSULE_API_TOKEN=tok-123")
}

func TestSubmitRequiresSession(t *testing.T) {
	_, err := run(t, &fakeAPI{}, "", "submit", "--title", "x")
	assert.Equal(t, 3, exitCode(err))
}

func TestSubmitCreatesWithCategoryName(t *testing.T) {
	api := &fakeAPI{}
	out, err := run(t, api, "", "--token", "tok", "submit",
		"--title", "Apollo 11", "--description", "Landing", "--year", "1969", "--month", "7", "--day", "20",
		"--category", "space=Guidance computer")
	require.NoError(t, err)

	require.NotNil(t, api.created)
	require.Len(t, api.created.Categories, 1)
	assert.Equal(t, "c1", api.created.Categories[0].CategoryID)
	assert.Equal(t, "Guidance computer", api.created.Categories[0].RelationshipDescription)
	assert.Contains(t, out, "created event new-1")
}

func TestSubmitShowsValidationErrors(t *testing.T) {
	api := &fakeAPI{}
	out, err := run(t, api, "", "--token", "tok", "submit", "--title", "Apollo", "--year", "1969", "--month", "13", "--day", "1",
		"--category", "missing=Something")
	assert.Equal(t, 3, exitCode(err))

	assert.Nil(t, api.created)
	assert.Contains(t, out, "description: Description is required")
	assert.Contains(t, out, "categories[0].category_id: Category does not exist")
}

func TestSubmitRefusesForeignEvent(t *testing.T) {
	api := &fakeAPI{owner: "someone-else"}
	_, err := run(t, api, "", "--token", "tok", "submit", "--edit", "evt-1", "--title", "Linux 1.0")
	assert.Equal(t, 3, exitCode(err))
	assert.Nil(t, api.created)
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "old.csv")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	api := &fakeAPI{}
	out, err := run(t, api, "", "export", "--format", "csv", "--out", dir, "--keep", "24h", "--years", "1969")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "time-capsule-19690720-000000.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Apollo 11")
	assert.NoFileExists(t, stale)
	assert.Contains(t, out, "removed old.csv")

	seen := api.seen()
	require.Len(t, seen, 1)
	assert.Contains(t, seen[0], "format=csv")
	assert.Contains(t, seen[0], "year=1969")
}
