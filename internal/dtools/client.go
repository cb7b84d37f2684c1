// Package dtools wraps the D-Tools cloud REST API behind a quota-tracked,
// paced client.
package dtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	perrors "github.com/excelcw/dtools-pull/internal/errors"
	"github.com/excelcw/dtools-pull/internal/metrics"
	"github.com/excelcw/dtools-pull/internal/model"
	"github.com/excelcw/dtools-pull/internal/quota"
)

// DefaultBaseURL is the production D-Tools cloud API host.
const DefaultBaseURL = "https://dtcloudapi.d-tools.cloud"

const apiPrefix = "/api/v1"

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps the D-Tools cloud API. Every call is checked against the
// daily quota, paced by a fixed-interval throttle, and counted into the
// persisted call ledger. Calls are never retried; callers decide whether a
// failure is fatal or skippable.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	auth       Authenticator
	tracker    *quota.Tracker
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewClient creates a D-Tools API client. pacing is the minimum interval
// between calls.
func NewClient(baseURL string, auth Authenticator, tracker *quota.Tracker, pacing time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(pacing), 1)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		auth:       auth,
		tracker:    tracker,
		limiter:    limiter,
		metrics:    m,
		logger:     logger.With().Str("component", "dtools").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// BaseURL returns the configured API host.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get issues a quota-checked, paced GET against an API path and decodes the
// JSON response into v.
func (c *Client) get(ctx context.Context, endpoint, path string, v any) error {
	if !c.tracker.Allow() {
		c.logger.Debug().Str("endpoint", endpoint).Msg("daily quota reached, declining call")
		c.metrics.RecordAPICall(endpoint, "quota_exceeded")
		return perrors.ErrQuotaExceeded
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing wait: %w", err)
	}

	c.tracker.Note()
	c.logger.Info().Str("endpoint", endpoint).Int("calls_today", c.tracker.UsedToday()).Msg("pulling api")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPrefix+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if err := c.auth.Apply(req); err != nil {
		return fmt.Errorf("applying auth: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPICall(endpoint, "transport_error")
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		c.metrics.RecordAPICall(endpoint, fmt.Sprintf("%d", resp.StatusCode))
		return perrors.NewAPIError(endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		c.metrics.RecordAPICall(endpoint, "decode_error")
		return fmt.Errorf("decoding response: %w", err)
	}
	c.metrics.RecordAPICall(endpoint, "ok")
	return nil
}

// GetTimeEntries pulls the bulk time entry snapshot.
func (c *Client) GetTimeEntries(ctx context.Context) ([]model.TimeEntry, error) {
	var list model.TimeEntryList
	path := "/TimeEntries/GetTimeEntries?page=1&pageSize=6000"
	if err := c.get(ctx, "GetTimeEntries", path, &list); err != nil {
		return nil, err
	}
	return list.TimeEntries, nil
}

// GetOpportunities pulls the opportunity list, filtered to the pipeline
// stages and sorted by price descending.
func (c *Client) GetOpportunities(ctx context.Context) ([]model.Opportunity, error) {
	q := url.Values{}
	for _, stage := range model.PipelineStages {
		q.Add("stages", stage)
	}
	q.Set("sort", "Price DESC")
	q.Set("page", "1")
	q.Set("pageSize", "3000")

	var list model.OpportunityList
	path := "/Opportunities/GetOpportunities?" + q.Encode()
	if err := c.get(ctx, "GetOpportunities", path, &list); err != nil {
		return nil, err
	}
	return list.Opportunities, nil
}

// GetOpportunity pulls detail for a not-yet-won opportunity.
func (c *Client) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	var opp model.Opportunity
	path := "/Opportunities/GetOpportunity?id=" + url.QueryEscape(id)
	if err := c.get(ctx, "GetOpportunity", path, &opp); err != nil {
		return nil, err
	}
	return &opp, nil
}

// GetProject pulls detail for a won opportunity through the project
// endpoint; the payload shares the opportunity shape.
func (c *Client) GetProject(ctx context.Context, id string) (*model.Opportunity, error) {
	var opp model.Opportunity
	path := "/Projects/GetProject?id=" + url.QueryEscape(id)
	if err := c.get(ctx, "GetProject", path, &opp); err != nil {
		return nil, err
	}
	return &opp, nil
}

// GetQuote pulls a single quote.
func (c *Client) GetQuote(ctx context.Context, id string) (*model.Quote, error) {
	var quote model.Quote
	path := "/Quotes/GetQuote?id=" + url.QueryEscape(id)
	if err := c.get(ctx, "GetQuote", path, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// GetChangeOrder pulls a single change order.
func (c *Client) GetChangeOrder(ctx context.Context, id string) (*model.ChangeOrder, error) {
	var co model.ChangeOrder
	path := "/ChangeOrders/GetChangeOrder?id=" + url.QueryEscape(id)
	if err := c.get(ctx, "GetChangeOrder", path, &co); err != nil {
		return nil, err
	}
	return &co, nil
}
