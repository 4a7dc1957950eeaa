package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/air-quality-aqi/internal/domain"
	"github.com/couchcryptid/air-quality-aqi/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrNotFound is returned when the monitoring API has no data for a request.
var ErrNotFound = errors.New("upstream: no data")

// Client reads air quality records from the monitoring API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
	clock      clockwork.Clock // stamps ReceivedAt and times requests
}

// NewClient creates a monitoring API client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
	}
}

// LatestReading fetches the most recent record for a source.
func (c *Client) LatestReading(ctx context.Context, source domain.Source) (domain.Reading, error) {
	var r domain.Reading
	if err := c.get(ctx, fmt.Sprintf("/%s/latest", source), "latest", &r); err != nil {
		return domain.Reading{}, err
	}
	r.Source = source
	r.ReceivedAt = c.clock.Now().UTC()
	return r, nil
}

// ReadingsByDate fetches every record a source collected on the given day.
func (c *Client) ReadingsByDate(ctx context.Context, source domain.Source, day time.Time) ([]domain.Reading, error) {
	var rs []domain.Reading
	path := fmt.Sprintf("/%s/date/%s", source, day.Format(time.DateOnly))
	if err := c.get(ctx, path, "date", &rs); err != nil {
		return nil, err
	}
	now := c.clock.Now().UTC()
	for i := range rs {
		rs[i].Source = source
		rs[i].ReceivedAt = now
	}
	return rs, nil
}

func (c *Client) get(ctx context.Context, path, endpoint string, out any) error {
	start := c.clock.Now()
	outcome := "error"
	defer func() {
		c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(c.clock.Since(start).Seconds())
		c.metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		outcome = "not_found"
		return fmt.Errorf("%s %s: %w", endpoint, path, ErrNotFound)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("upstream API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	outcome = "success"
	c.logger.Debug("upstream request", "path", path, "duration", c.clock.Since(start))
	return nil
}
