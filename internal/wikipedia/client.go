package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/pkg/breaker"
	appErrors "github.com/noah-isme/timecapsule-api/pkg/errors"
)

// Config points the client at a REST v1 endpoint.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Page is an article linked from an "on this day" entry.
type Page struct {
	Title       string `json:"title"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
	Thumbnail *struct {
		Source string `json:"source"`
	} `json:"thumbnail,omitempty"`
}

// URL returns the desktop article link.
func (p Page) URL() string {
	return p.ContentURLs.Desktop.Page
}

// ImageURL returns the thumbnail source, if any.
func (p Page) ImageURL() string {
	if p.Thumbnail == nil {
		return ""
	}
	return p.Thumbnail.Source
}

// OnThisDayEvent is one entry of the events feed.
type OnThisDayEvent struct {
	Text  string `json:"text"`
	Year  int    `json:"year"`
	Pages []Page `json:"pages"`
}

type feed struct {
	Events []OnThisDayEvent `json:"events"`
}

// Client reads the "on this day" feed.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient constructs a feed client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker.New(breaker.DefaultConfig("wikipedia"), logger),
		logger:  logger,
	}
}

// OnThisDay returns every event listed for the given month and day across all years.
func (c *Client) OnThisDay(ctx context.Context, month, day int) ([]OnThisDayEvent, error) {
	endpoint := fmt.Sprintf("%s/feed/onthisday/events/%d/%d", c.cfg.BaseURL, month, day)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", c.cfg.UserAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, appErrors.New("UPSTREAM_ERROR", resp.StatusCode, fmt.Sprintf("wikipedia returned %s", resp.Status))
		}

		var body feed
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode on this day feed: %w", err)
		}
		return body.Events, nil
	})
	if err != nil {
		c.logger.Warn("on this day request failed", zap.Int("month", month), zap.Int("day", day), zap.Error(err))
		return nil, breaker.Translate(err)
	}
	return result.([]OnThisDayEvent), nil
}
