// Package provider is the HTTP client for the upstream sports data API.
// Every call carries an explicit timeout and a bounded retry budget; 4xx
// responses fail immediately, 5xx and transport errors back off and retry.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fairwaygames/clubhouse-backend/pkg/config"
	pkgerrors "github.com/fairwaygames/clubhouse-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

// CalendarEvent is one tournament entry from the provider schedule.
type CalendarEvent struct {
	ID        string
	Label     string
	StartDate time.Time
	EndDate   time.Time
}

// Calendar is the provider schedule for one league season.
type Calendar struct {
	Events []CalendarEvent
}

// API is the surface the ingestion orchestrator depends on.
type API interface {
	FetchCalendar(ctx context.Context, leagueID string, seasonYear int) (*Calendar, error)
	FetchLeaderboard(ctx context.Context, eventID string) (json.RawMessage, error)
}

// Client implements API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	baseDelay  time.Duration
}

// NewClient builds a provider client from configuration.
func NewClient(cfg config.ProviderConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider base url required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: uint64(maxRetries),
		baseDelay:  baseDelay,
	}, nil
}

type calendarResponse struct {
	Events []struct {
		ID        string `json:"id"`
		Label     string `json:"label"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"events"`
}

// FetchCalendar returns the season schedule for a league.
func (c *Client) FetchCalendar(ctx context.Context, leagueID string, seasonYear int) (*Calendar, error) {
	if leagueID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "league id required")
	}
	endpoint := fmt.Sprintf("%s/v1/calendar?league=%s&season=%d",
		c.baseURL, url.QueryEscape(leagueID), seasonYear)

	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var decoded calendarResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProviderFatal, err, "calendar response malformed")
	}

	calendar := &Calendar{Events: make([]CalendarEvent, 0, len(decoded.Events))}
	for _, raw := range decoded.Events {
		start, err := time.Parse(dateLayout, raw.StartDate)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeProviderFatal, err,
				fmt.Sprintf("calendar event %s has invalid start date", raw.ID))
		}
		end, err := time.Parse(dateLayout, raw.EndDate)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeProviderFatal, err,
				fmt.Sprintf("calendar event %s has invalid end date", raw.ID))
		}
		calendar.Events = append(calendar.Events, CalendarEvent{
			ID:        raw.ID,
			Label:     raw.Label,
			StartDate: start,
			EndDate:   end,
		})
	}
	return calendar, nil
}

// FetchLeaderboard returns the raw leaderboard payload for one event. The
// payload is opaque here; shape validation happens in the ingestion layer.
func (c *Client) FetchLeaderboard(ctx context.Context, eventID string) (json.RawMessage, error) {
	if eventID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	endpoint := fmt.Sprintf("%s/v1/leaderboard?event=%s", c.baseURL, url.QueryEscape(eventID))
	return c.getWithRetry(ctx, endpoint)
}

func (c *Client) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	// A rate-limited response names its own wait; the next delay is whichever
	// is longer, the exponential step or the provider's Retry-After.
	var retryAfter time.Duration
	exponential := retry.NewExponential(c.baseDelay)
	backoff := retry.WithMaxRetries(c.maxRetries, retry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := exponential.Next()
		if stop {
			return 0, true
		}
		if retryAfter > delay {
			delay = retryAfter
		}
		retryAfter = 0
		return delay, false
	}))

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, wait, attemptErr := c.get(ctx, endpoint)
		if attemptErr != nil {
			if pkgerrors.IsCode(attemptErr, pkgerrors.CodeProviderTransient) {
				retryAfter = wait
				return retry.RetryableError(attemptErr)
			}
			return attemptErr
		}
		body = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// get performs one attempt. The returned duration is the wait a 429 response
// demanded via Retry-After, zero for every other outcome.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build provider request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeProviderTransient, err, "provider request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		seconds := retryAfterSeconds(resp)
		return nil, time.Duration(seconds) * time.Second,
			pkgerrors.New(pkgerrors.CodeProviderTransient, "provider rate limited").
				WithDetails(map[string]any{"retry_after_seconds": seconds})
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, 0, pkgerrors.New(pkgerrors.CodeProviderTransient,
			fmt.Sprintf("provider returned %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, 0, pkgerrors.New(pkgerrors.CodeProviderFatal,
			fmt.Sprintf("provider returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeProviderTransient, err, "read provider response")
	}
	return body, 0, nil
}

func retryAfterSeconds(resp *http.Response) int {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return seconds
}
