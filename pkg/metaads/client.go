// Package metaads provides a client for the Meta Graph API ad insights
// endpoint.
package metaads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/echelon-media/centerboard/internal/resilience"
)

// insightFields is the fixed field set requested from the insights endpoint.
const insightFields = "ctr,cpm,spend,conversions,actions,video_30_sec_watched_actions,impressions,inline_link_clicks"

// Client defines the ad-platform read operations.
type Client interface {
	// Insights fetches the aggregated insights of an ad account over an
	// inclusive date range.
	Insights(ctx context.Context, accountID string, since, until time.Time) (*Insights, error)
}

// Action is one action-type counter from the insights payload.
type Action struct {
	ActionType string      `json:"action_type"`
	Value      json.Number `json:"value"`
}

// Count parses the action value, returning 0 for absent or malformed values.
func (a Action) Count() int {
	n, err := a.Value.Int64()
	if err != nil {
		if f, ferr := a.Value.Float64(); ferr == nil {
			return int(f)
		}
		return 0
	}
	return int(n)
}

// Insights is the raw per-account insight record. The Graph API serializes
// numbers as strings, hence json.Number throughout.
type Insights struct {
	Spend            json.Number `json:"spend"`
	CPM              json.Number `json:"cpm"`
	CTR              json.Number `json:"ctr"`
	Impressions      json.Number `json:"impressions"`
	InlineLinkClicks json.Number `json:"inline_link_clicks"`
	Conversions      []Action    `json:"conversions"`
	Actions          []Action    `json:"actions"`
	Video30sActions  []Action    `json:"video_30_sec_watched_actions"`
}

// Option configures the Meta ads client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate limit.
func WithRateLimit(rps rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rps, burst)
	}
}

type httpClient struct {
	accessToken string
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a Meta Graph API insights client.
func NewClient(accessToken string, opts ...Option) Client {
	c := &httpClient{
		accessToken: accessToken,
		baseURL:     "https://graph.facebook.com/v21.0",
		limiter:     rate.NewLimiter(5, 5),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Insights implements Client. Non-2xx statuses come back as typed
// resilience errors carrying the first 200 bytes of the body verbatim.
func (c *httpClient) Insights(ctx context.Context, accountID string, since, until time.Time) (*Insights, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "metaads: rate limiter wait")
	}

	q := url.Values{}
	q.Set("fields", insightFields)
	q.Set("time_range", fmt.Sprintf("{'since':'%s','until':'%s'}",
		since.Format("2006-01-02"), until.Format("2006-01-02")))
	q.Set("access_token", c.accessToken)

	u := fmt.Sprintf("%s/%s/insights?%s", c.baseURL, url.PathEscape(accountID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "metaads: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "metaads: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, resilience.FromStatus(
			eris.Errorf("metaads: HTTP %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}

	var payload struct {
		Data []Insights `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, eris.Wrap(err, "metaads: decode response")
	}

	// An account with no delivery in the range returns an empty data array;
	// treat it as all-zero insights rather than an error.
	if len(payload.Data) == 0 {
		return &Insights{}, nil
	}
	return &payload.Data[0], nil
}
