package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/discovery"
	"github.com/noah-isme/timecapsule-api/internal/dto"
	"github.com/noah-isme/timecapsule-api/internal/models"
	"github.com/noah-isme/timecapsule-api/pkg/breaker"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

// Config configures the API client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the time capsule REST API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// New constructs a client for cfg.BaseURL.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker.New(breaker.DefaultConfig("capsule-api"), logger),
		logger:  logger,
		token:   cfg.Token,
	}, nil
}

// SetToken replaces the bearer token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ListEvents runs a resolved discovery query.
func (c *Client) ListEvents(ctx context.Context, q discovery.Query) ([]models.Event, error) {
	var events []models.Event
	if err := c.do(ctx, http.MethodGet, q.Path(), q.Values(), nil, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// GetEvent fetches one event with its category assignments.
func (c *Client) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := c.do(ctx, http.MethodGet, "/api/events/"+url.PathEscape(id), nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateEvent submits a new event.
func (c *Client) CreateEvent(ctx context.Context, payload dto.EventPayload) (*models.Event, error) {
	var event models.Event
	if err := c.do(ctx, http.MethodPost, "/api/events", nil, payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// UpdateEvent replaces an event owned by the current user.
func (c *Client) UpdateEvent(ctx context.Context, id string, payload dto.EventPayload) (*models.Event, error) {
	var event models.Event
	if err := c.do(ctx, http.MethodPatch, "/api/events/"+url.PathEscape(id), nil, payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// DeleteEvent removes an event owned by the current user.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(id), nil, nil, nil)
}

// ListCategories returns the category catalog sorted by name.
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateCategory adds a category.
func (c *Client) CreateCategory(ctx context.Context, payload dto.CategoryPayload) (*models.Category, error) {
	var category models.Category
	if err := c.do(ctx, http.MethodPost, "/api/categories", nil, payload, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory removes a category owned by the current user.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/categories/"+url.PathEscape(id), nil, nil, nil)
}

// Trivia fetches a random question.
func (c *Client) Trivia(ctx context.Context) (*models.TriviaQuestion, error) {
	var question models.TriviaQuestion
	if err := c.do(ctx, http.MethodGet, "/api/trivia", nil, nil, &question); err != nil {
		return nil, err
	}
	return &question, nil
}

// Signup registers an account and stores the issued token.
func (c *Client) Signup(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	return c.authenticate(ctx, "/api/signup", username, password)
}

// Login authenticates and stores the issued token.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	return c.authenticate(ctx, "/api/login", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	body := models.CredentialsRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.AccessToken)
	return &resp, nil
}

// CheckSession returns the authenticated user or nil when the token is missing or no longer valid.
func (c *Client) CheckSession(ctx context.Context) (*models.UserInfo, error) {
	var user models.UserInfo
	found := false
	err := c.do(ctx, http.MethodGet, "/api/check_session", nil, nil, func(raw json.RawMessage) error {
		found = true
		return json.Unmarshal(raw, &user)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

// Logout ends the session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodDelete, "/api/logout", nil, nil, nil)
	c.SetToken("")
	return err
}

// EnqueueImport schedules an "on this day" import on the server.
func (c *Client) EnqueueImport(ctx context.Context, req dto.ImportRequest) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := c.do(ctx, http.MethodPost, "/api/imports", nil, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Export downloads the events matched by q in the given format and returns the payload and file name.
func (c *Client) Export(ctx context.Context, q discovery.Query, format string) ([]byte, string, error) {
	values := q.Values()
	values.Set("format", format)
	req, err := c.newRequest(ctx, http.MethodGet, "/api/events/export", values, nil)
	if err != nil {
		return nil, "", err
	}

	var (
		payload  []byte
		filename string
	)
	err = c.execute(req, func(resp *http.Response) error {
		if resp.StatusCode >= http.StatusBadRequest {
			return decodeError(resp)
		}
		payload, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if _, params, perr := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); perr == nil {
			filename = params["filename"]
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return payload, filename, nil
}

// do sends a JSON request and decodes the envelope data into out. out may be nil, a pointer, or a
// func(json.RawMessage) error invoked only when the response has a body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	return c.execute(req, func(resp *http.Response) error {
		if resp.StatusCode >= http.StatusBadRequest {
			return decodeError(resp)
		}
		if resp.StatusCode == http.StatusNoContent || out == nil {
			return nil
		}

		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusBadGateway, "malformed response from API")
		}
		if fn, ok := out.(func(json.RawMessage) error); ok {
			return fn(env.Data)
		}
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusBadGateway, "malformed response from API")
		}
		return nil
	})
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	target := *c.baseURL
	target.Path = c.baseURL.Path + path
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) execute(req *http.Request, handle func(*http.Response) error) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return nil, handle(resp)
	})

	c.logger.Debug("api request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)
	return breaker.Translate(err)
}

func decodeError(resp *http.Response) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Error != nil {
		env.Error.Status = resp.StatusCode
		return env.Error
	}
	return appErrors.New("HTTP_ERROR", resp.StatusCode, http.StatusText(resp.StatusCode))
}
