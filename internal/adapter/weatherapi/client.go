package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/courier-delay-etl/internal/domain"
	"github.com/couchcryptid/courier-delay-etl/internal/observability"
)

// DefaultBaseURL is the weatherapi.com history endpoint.
const DefaultBaseURL = "http://api.weatherapi.com/v1/history.json"

// Client implements domain.WeatherSource using the weatherapi.com history API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a weather history client.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// HourlyConditions fetches the hourly condition text for location on date.
// Client errors other than 429 and undecodable or malformed payloads are
// returned as permanent so the caller does not retry them. A well-formed day
// with no hours yields no conditions and no error.
func (c *Client) HourlyConditions(ctx context.Context, location, date string) ([]domain.HourlyCondition, error) {
	params := url.Values{
		"key": {c.apiKey},
		"q":   {location},
		"dt":  {date},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("weather history request %s: %w", date, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("weather API error: status %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var hist historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}

	conditions, err := hist.conditions(c.logger)
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return nil, backoff.Permanent(fmt.Errorf("weather history %s: %w", date, err))
	}
	if len(conditions) == 0 {
		c.metrics.WeatherRequests.WithLabelValues("empty").Inc()
		return nil, nil
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()
	return conditions, nil
}

// weatherapi.com history response types.

type historyResponse struct {
	Forecast struct {
		ForecastDay []forecastDay `json:"forecastday"`
	} `json:"forecast"`
}

type forecastDay struct {
	Date string `json:"date"`
	Hour []hour `json:"hour"`
}

type hour struct {
	Time      string `json:"time"` // "2025-08-01 14:00"
	Condition struct {
		Text string `json:"text"`
	} `json:"condition"`
}

// ErrMalformedResponse is returned for payloads without forecast.forecastday[0].hour.
var ErrMalformedResponse = errors.New("malformed weather response")

// conditions flattens the first forecast day into hourly observations.
func (h historyResponse) conditions(logger *slog.Logger) ([]domain.HourlyCondition, error) {
	if len(h.Forecast.ForecastDay) == 0 {
		return nil, fmt.Errorf("%w: no forecast days", ErrMalformedResponse)
	}
	hours := h.Forecast.ForecastDay[0].Hour
	if hours == nil {
		return nil, fmt.Errorf("%w: no hourly data", ErrMalformedResponse)
	}
	out := make([]domain.HourlyCondition, 0, len(hours))
	for _, hr := range hours {
		t, err := time.Parse("2006-01-02 15:04", hr.Time)
		if err != nil {
			logger.Debug("skipping weather hour with unparsable time", "time", hr.Time)
			continue
		}
		out = append(out, domain.HourlyCondition{Hour: t.Hour(), Condition: hr.Condition.Text})
	}
	return out, nil
}
