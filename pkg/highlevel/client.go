// Package highlevel provides a client for the HighLevel CRM REST API
// (pipelines, opportunities, appointments).
package highlevel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/echelon-media/centerboard/internal/resilience"
)

// Credentials identify one CRM sub-account (location).
type Credentials struct {
	APIKey     string
	LocationID string
}

// Client defines the CRM read operations the reporting engine needs.
type Client interface {
	// Pipelines lists the pipelines of a location, with their stages.
	Pipelines(ctx context.Context, creds Credentials) ([]Pipeline, error)
	// Opportunities fetches every opportunity of a pipeline, following
	// pagination until the upstream reports no next page.
	Opportunities(ctx context.Context, creds Credentials, pipelineID string) ([]Opportunity, error)
	// Appointments lists a calendar's appointments inside [start, end].
	Appointments(ctx context.Context, creds Credentials, calendarID string, start, end time.Time) ([]Appointment, error)
}

// Pipeline is a CRM pipeline with its ordered stages.
type Pipeline struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Stages []Stage `json:"stages"`
}

// Stage is one pipeline stage.
type Stage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StageNames returns the stage id → name mapping for the pipeline.
func (p Pipeline) StageNames() map[string]string {
	m := make(map[string]string, len(p.Stages))
	for _, s := range p.Stages {
		m[s.ID] = s.Name
	}
	return m
}

// Opportunity is one CRM opportunity record.
type Opportunity struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	PipelineStageID string    `json:"pipelineStageId"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Appointment is one calendar appointment. The upstream payload carries the
// status under either "appointmentStatus" or "status" depending on API
// version; Status() resolves the alias.
type Appointment struct {
	ID                string `json:"id"`
	CalendarID        string `json:"calendarId"`
	StartTime         string `json:"startTime"`
	AppointmentStatus string `json:"appointmentStatus"`
	LegacyStatus      string `json:"status"`
}

// Status returns the appointment status, preferring the modern field name.
func (a Appointment) Status() string {
	if a.AppointmentStatus != "" {
		return a.AppointmentStatus
	}
	return a.LegacyStatus
}

// Day returns the YYYY-MM-DD part of the appointment start time, or
// "unknown" when the start time is absent or malformed.
func (a Appointment) Day() string {
	if len(a.StartTime) >= 10 {
		if _, err := time.Parse("2006-01-02", a.StartTime[:10]); err == nil {
			return a.StartTime[:10]
		}
	}
	return "unknown"
}

// Option configures the HighLevel client.
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
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a HighLevel REST client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://rest.gohighlevel.com/v1",
		limiter: rate.NewLimiter(10, 10),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 30,
				MaxConnsPerHost:     100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs an authenticated GET and decodes the JSON body into out.
// Non-2xx statuses come back as typed resilience errors so callers can
// distinguish throttling from permanent failures.
func (c *httpClient) get(ctx context.Context, creds Credentials, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "highlevel: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "highlevel: create request")
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	req.Header.Set("Location-Id", creds.LocationID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "highlevel: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return resilience.FromStatus(
			eris.Errorf("highlevel: HTTP %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "highlevel: decode response")
	}
	return nil
}

// Pipelines implements Client.
func (c *httpClient) Pipelines(ctx context.Context, creds Credentials) ([]Pipeline, error) {
	var payload struct {
		Pipelines []Pipeline `json:"pipelines"`
	}
	url := fmt.Sprintf("%s/pipelines/", c.baseURL)
	if err := c.get(ctx, creds, url, &payload); err != nil {
		return nil, err
	}
	return payload.Pipelines, nil
}
