package highlevel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// opportunityPageSize is the upstream maximum page size.
const opportunityPageSize = 100

// maxOpportunityPages bounds pagination so a broken upstream cursor cannot
// loop forever. 500 pages is 50k opportunities, far beyond any real pipeline.
const maxOpportunityPages = 500

// Opportunities implements Client. It walks the cursor-based pagination
// (startAfterId/startAfter from the page meta) until no next page remains.
func (c *httpClient) Opportunities(ctx context.Context, creds Credentials, pipelineID string) ([]Opportunity, error) {
	var all []Opportunity
	var startAfterID, startAfter string

	for page := 0; page < maxOpportunityPages; page++ {
		u := fmt.Sprintf("%s/pipelines/%s/opportunities?limit=%d",
			c.baseURL, url.PathEscape(pipelineID), opportunityPageSize)
		if startAfterID != "" && startAfter != "" {
			u += "&startAfterId=" + url.QueryEscape(startAfterID) +
				"&startAfter=" + url.QueryEscape(startAfter)
		}

		var payload struct {
			Opportunities []Opportunity `json:"opportunities"`
			Meta          struct {
				NextPageURL  string      `json:"nextPageUrl"`
				StartAfterID string      `json:"startAfterId"`
				StartAfter   json.Number `json:"startAfter"`
			} `json:"meta"`
		}
		if err := c.get(ctx, creds, u, &payload); err != nil {
			return nil, err
		}

		all = append(all, payload.Opportunities...)

		if payload.Meta.NextPageURL == "" {
			break
		}
		startAfterID = payload.Meta.StartAfterID
		startAfter = payload.Meta.StartAfter.String()
	}

	return all, nil
}

// Appointments implements Client. The upstream filters by epoch-millisecond
// bounds; end is extended to the last instant of its day so the range is
// inclusive in calendar terms.
func (c *httpClient) Appointments(ctx context.Context, creds Credentials, calendarID string, start, end time.Time) ([]Appointment, error) {
	startMs := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
	endMs := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999_000_000, time.UTC).UnixMilli()

	u := fmt.Sprintf("%s/appointments/?startDate=%d&endDate=%d&calendarId=%s&includeAll=true",
		c.baseURL, startMs, endMs, url.QueryEscape(calendarID))

	var payload struct {
		Appointments []Appointment `json:"appointments"`
	}
	if err := c.get(ctx, creds, u, &payload); err != nil {
		return nil, err
	}
	return payload.Appointments, nil
}
